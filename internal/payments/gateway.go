package payments

import (
	"context"
	"errors"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Checkout session statuses and payment states reported by the processor.
const (
	StatusOpen     = "open"
	StatusComplete = "complete"
	StatusExpired  = "expired"

	PaymentPaid              = "paid"
	PaymentUnpaid            = "unpaid"
	PaymentNoPaymentRequired = "no_payment_required"
)

// Event types that carry a finalized checkout session.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

type CheckoutRequest struct {
	PriceID    string
	Credits    int
	UserID     string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	CustomerEmail string
	Metadata      map[string]string
}

// Settled reports whether the session's payment is final.
func (s *CheckoutSession) Settled() bool {
	return s.Status == StatusComplete &&
		(s.PaymentStatus == PaymentPaid || s.PaymentStatus == PaymentNoPaymentRequired)
}

// Event is a verified webhook event. Session is set for checkout events.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// Gateway is the payment processor boundary.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	// ConstructEvent verifies the signature header before decoding anything.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
