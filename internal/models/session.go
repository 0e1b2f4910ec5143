package models

// Session is the minimal user record sealed into the session cookie.
type Session struct {
	UserID string `json:"user_id"`
}
