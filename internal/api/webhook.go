package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/models"
	"github.com/illegalcall/avocatel/internal/payments"
)

const statusIgnored = "ignored"

// handleWebhook verifies a payment processor event and applies finalized
// checkouts. Every verified event is acknowledged with 200; reconciliation
// failures go to the failure notifier instead of the response.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	event, err := s.gateway.ConstructEvent(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", "error", err)
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %v", err))
	}

	log := s.logger.With("event_id", event.ID, "event_type", event.Type)
	if !creditsEvent(event) {
		log.Info("Unhandled event type")
		return c.JSON(fiber.Map{"received": true, "status": statusIgnored})
	}

	res, err := s.reconciler.Reconcile(c.UserContext(), ledger.Confirmation{
		SessionID: event.Session.ID,
		EventID:   event.ID,
		Source:    models.SourceWebhook,
		Metadata:  event.Session.Metadata,
	})
	if err != nil {
		log.Error("Reconciliation failed", "session_id", event.Session.ID, "error", err)
	}

	return c.JSON(fiber.Map{"received": true, "status": res.Outcome})
}

// creditsEvent reports whether an event confirms a paid checkout.
func creditsEvent(event *payments.Event) bool {
	if event.Session == nil {
		return false
	}
	switch event.Type {
	case payments.EventCheckoutCompleted:
		return event.Session.PaymentStatus != payments.PaymentUnpaid
	case payments.EventAsyncPaymentSucceeded:
		return true
	}
	return false
}
