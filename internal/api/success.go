package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/models"
	"github.com/illegalcall/avocatel/internal/payments"
)

const (
	successCredited = "credited"
	successPending  = "pending"
)

// SuccessPageProps is what the post-checkout page renders.
type SuccessPageProps struct {
	CustomerEmail string `json:"customerEmail"`
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	Credits       int    `json:"credits"`
	Balance       int    `json:"balance,omitempty"`
}

// handleSuccessPage reports whether a finished checkout has been credited.
// It waits briefly for the webhook and only writes to the ledger when
// SUCCESS_PAGE_RECONCILE is enabled.
func (s *Server) handleSuccessPage(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Redirect("/", fiber.StatusTemporaryRedirect)
	}

	ctx := c.UserContext()
	checkout, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to retrieve checkout session", "session_id", sessionID, "error", err)
		return c.Redirect("/", fiber.StatusTemporaryRedirect)
	}
	if checkout.Status == payments.StatusOpen {
		return c.Redirect("/", fiber.StatusTemporaryRedirect)
	}

	meta := ledger.ParseMetadata(checkout.Metadata)
	props := SuccessPageProps{
		CustomerEmail: checkout.CustomerEmail,
		SessionID:     checkout.ID,
		Status:        successPending,
		Credits:       meta.Credits,
	}
	if !checkout.Settled() {
		return c.JSON(props)
	}

	if s.cfg.Ledger.ReconcileOnSuccess {
		res, err := s.reconciler.Reconcile(ctx, ledger.Confirmation{
			SessionID: checkout.ID,
			Source:    models.SourceSuccessPage,
			Metadata:  checkout.Metadata,
		})
		if err == nil && (res.Outcome == ledger.OutcomeApplied || res.Outcome == ledger.OutcomeDuplicate) {
			props.Status = successCredited
			props.Balance = res.Balance
			return c.JSON(props)
		}
	}

	if payment := s.waitForCredit(ctx, checkout.ID); payment != nil {
		props.Status = successCredited
		props.Credits = payment.Credits
		if profile, err := s.store.GetProfile(ctx, payment.UserID); err == nil {
			props.Balance = profile.Credits
		} else {
			s.logger.Warn("Failed to load balance for success page", "user_id", payment.UserID, "error", err)
		}
	}
	return c.JSON(props)
}

// waitForCredit polls the reconciliation status until the payment shows up
// or SUCCESS_PAGE_WAIT elapses.
func (s *Server) waitForCredit(ctx context.Context, sessionID string) *models.ProcessedPayment {
	poll := s.cfg.Ledger.SuccessPoll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.NewTimer(s.cfg.Ledger.SuccessWait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		payment, err := s.reconciler.Status(ctx, sessionID)
		if err != nil {
			s.logger.Warn("Failed to read reconciliation status", "session_id", sessionID, "error", err)
		} else if payment != nil {
			return payment
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
}
