package models

import "time"

// Reconciliation sources
const (
	SourceWebhook     = "webhook"
	SourceSuccessPage = "success_page"
	SourceWorker      = "worker"
	SourceAdmin       = "admin"
)

// Metadata keys attached to checkout sessions
const (
	MetadataUserID  = "userId"
	MetadataCredits = "credits"
)

// CheckoutMetadata is the parsed form of the metadata attached to a
// checkout session. Credits is 0 when the raw value is absent or unparseable.
type CheckoutMetadata struct {
	UserID  string `json:"userId"`
	Credits int    `json:"credits"`
}

// Valid reports whether the metadata may be applied to a balance.
func (m CheckoutMetadata) Valid() bool {
	return m.UserID != "" && m.Credits > 0
}

// Purchase is one confirmed payment to be applied to a profile.
type Purchase struct {
	SessionID string
	EventID   string
	UserID    string
	Credits   int
	Source    string
}

// ProcessedPayment is the idempotency marker for an applied payment
type ProcessedPayment struct {
	SessionID   string    `json:"sessionId" db:"session_id"`
	EventID     string    `json:"eventId" db:"event_id"`
	UserID      string    `json:"userId" db:"user_id"`
	Credits     int       `json:"credits" db:"credits"`
	Source      string    `json:"source" db:"source"`
	ProcessedAt time.Time `json:"processedAt" db:"processed_at"`
}

// Failure reasons
const (
	ReasonProfileMissing = "profile_missing"
	ReasonStoreError     = "store_error"
	ReasonInFlight       = "in_flight"
)

// ReconciliationFailure is published when a confirmed payment could not be
// applied. Operators and the retry worker consume it.
type ReconciliationFailure struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	EventID    string    `json:"event_id,omitempty"`
	UserID     string    `json:"user_id"`
	Credits    int       `json:"credits"`
	Source     string    `json:"source"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
