package model

import "time"

// LoginCode is a pending one-time login code. Only the bcrypt hash is stored.
type LoginCode struct {
	ParticipantID string
	CodeHash      string
	ExpiresAt     time.Time
	Attempts      int
}
