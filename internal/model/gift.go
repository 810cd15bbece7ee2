package model

import "time"

// Gift is what a giver submitted for their assigned receiver.
//
// There is intentionally no ReceiverID field. The receiver is always derived
// through the giver's Pairing, so a reset + regenerate can never leave a gift
// pointing at a stale receiver.
type Gift struct {
	ID          string    `json:"id"`
	GiverID     string    `json:"giverId"`
	Name        string    `json:"giftName"`
	Message     string    `json:"message"`
	ImageRef    string    `json:"imageUrl"`
	SubmittedAt time.Time `json:"submittedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GiftDetail is a gift joined with its giver's identity (admin listing).
type GiftDetail struct {
	Gift
	Giver Identity `json:"giver"`
}
