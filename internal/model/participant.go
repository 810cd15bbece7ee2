// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. They play the role classes play in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Role decides which API surface a participant may use.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleAdmin
}

// Participant is a person taking part in the gift exchange.
//
// SOFT DELETE:
// Participants are never removed from the database. Deactivating someone flips
// Active to false, and every "current participants" query filters on it. This
// keeps old pairings and gifts pointing at a real row.
//
// WHY *time.Time FOR RevealedAt AND LastLogin?
// Both are "not yet happened" until the first reveal/login. A nil pointer maps
// to SQL NULL and to JSON null, which is clearer than a zero time of 0001-01-01.
type Participant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"` // always stored lower-cased
	Department  string     `json:"department"`
	Role        Role       `json:"role"`
	Active      bool       `json:"isActive"`
	HasLoggedIn bool       `json:"hasLoggedIn"`
	LastLogin   *time.Time `json:"lastLogin"`
	HasRevealed bool       `json:"hasRevealed"`
	RevealedAt  *time.Time `json:"revealedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the participant may use the admin API.
func (p *Participant) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Identity is the public projection of a participant shown to other participants.
// It deliberately leaves out flags like HasRevealed.
type Identity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// Identity returns the public projection of p.
func (p *Participant) Identity() Identity {
	return Identity{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Department: p.Department,
	}
}
