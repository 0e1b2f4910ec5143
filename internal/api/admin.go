package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/models"
)

func (s *Server) handleAdminProfile(c *fiber.Ctx) error {
	userID := c.Params("id")
	ctx := c.UserContext()

	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ledger.ErrProfileNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}
	if err != nil {
		s.logger.Error("Failed to fetch profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}

	payments, err := s.store.ListProcessedPayments(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list payments", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list payments",
		})
	}

	return c.JSON(fiber.Map{
		"profile":  profile,
		"payments": payments,
	})
}

// handleReplay re-fetches a checkout session and runs it through the
// reconciler again. Applied payments come back as duplicates.
func (s *Server) handleReplay(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	ctx := c.UserContext()

	checkout, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to retrieve checkout session", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": s.upstreamMessage("Failed to retrieve checkout session", err),
		})
	}
	if !checkout.Settled() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Checkout session is not paid",
		})
	}

	res, err := s.reconciler.Reconcile(ctx, ledger.Confirmation{
		SessionID: checkout.ID,
		Source:    models.SourceAdmin,
		Metadata:  checkout.Metadata,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "Reconciliation failed",
			"result": res,
		})
	}

	s.logger.Info("Reconciliation replayed", "session_id", sessionID, "outcome", res.Outcome)
	return c.JSON(res)
}
