package models

// LoginRequest asks the identity provider to email a magic link
type LoginRequest struct {
	Email string `json:"email" form:"email" example:"user@example.com"`
}

// AdminLoginRequest represents operator credentials
type AdminLoginRequest struct {
	Email    string `json:"email" example:"ops@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the admin login response
type LoginResponse struct {
	// JWT token for the admin API
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string `json:"type" example:"Bearer"`
}

// CheckoutRequest is submitted by the refill form
type CheckoutRequest struct {
	PriceID string `json:"priceId" form:"priceId"`
	Credits int    `json:"credits" form:"credits"`
	UserID  string `json:"userId" form:"userId"`
}

// ChatMessageRequest is a single chat message; each one costs a credit
type ChatMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// ChatMessageResponse carries the persisted balance after the debit
type ChatMessageResponse struct {
	Message string `json:"message"`
	Credits int    `json:"credits"`
}
