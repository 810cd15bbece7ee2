package model

import "time"

// Settings is the single event-wide configuration row.
//
// The two lock flags form the event state machine:
//
//	(pairing unlocked, reveal locked)  → initial, admin may generate
//	(pairing locked,   reveal locked)  → assignments visible, gifts accepted
//	(pairing locked,   reveal unlocked) → participants may reveal
//
// RevealDate is informational only: nothing unlocks the reveal automatically.
type Settings struct {
	RevealDate             time.Time  `json:"revealDate"`
	PairingLocked          bool       `json:"pairingLocked"`
	RevealLocked           bool       `json:"revealLocked"`
	PairingGeneratedAt     *time.Time `json:"pairingGeneratedAt"`
	MaxParticipants        int        `json:"maxParticipants"`
	GiftSubmissionDeadline *time.Time `json:"giftSubmissionDeadline"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// DeadlinePassed reports whether gift changes are closed at time now.
// A nil deadline never passes.
func (s *Settings) DeadlinePassed(now time.Time) bool {
	return s.GiftSubmissionDeadline != nil && now.After(*s.GiftSubmissionDeadline)
}
