package model

import "time"

// Pairing is a single giver → receiver edge.
//
// Only the notified flag ever changes after creation. A whole generation is
// created in one bulk insert and removed in one bulk delete.
type Pairing struct {
	ID         string     `json:"id"`
	GiverID    string     `json:"giverId"`
	ReceiverID string     `json:"receiverId"`
	Notified   bool       `json:"isNotified"`
	NotifiedAt *time.Time `json:"notifiedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// PairingDetail is a pairing joined with both participants' identities.
// Used by the admin listing and the CSV export.
type PairingDetail struct {
	ID         string     `json:"id"`
	Giver      Identity   `json:"giver"`
	Receiver   Identity   `json:"receiver"`
	Notified   bool       `json:"isNotified"`
	NotifiedAt *time.Time `json:"notifiedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}
