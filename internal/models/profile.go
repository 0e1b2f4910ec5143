package models

import (
	"time"
)

// DefaultCredits is the balance a profile starts with on first login.
const DefaultCredits = 3

// Profile represents a user profile in the system
type Profile struct {
	ID        string    `json:"id" db:"id"`           // Identity provider user id
	Credits   int       `json:"credits" db:"credits"` // Never negative, enforced by the store
	Language  string    `json:"language" db:"language"`
	IsLawyer  bool      `json:"isLawyer" db:"is_lawyer"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProfileResponse is returned when a session starts
type ProfileResponse struct {
	Profile Profile `json:"profile"`
	Created bool    `json:"created"`
}
