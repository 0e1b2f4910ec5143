package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/models"
	"github.com/illegalcall/avocatel/internal/session"
)

// handleGetProfile returns the caller's profile, creating it with the
// starting balance on first login.
func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	userID := session.UserID(c)

	profile, created, err := s.store.GetOrCreateProfile(c.UserContext(), models.Profile{
		ID:       userID,
		Credits:  s.cfg.Ledger.DefaultCredits,
		Language: s.cfg.Ledger.DefaultLanguage,
		IsLawyer: false,
	})
	if err != nil {
		s.logger.Error("Failed to load profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}

	if created {
		s.logger.Info("Profile created", "user_id", userID, "credits", profile.Credits)
	}

	return c.JSON(models.ProfileResponse{
		Profile: *profile,
		Created: created,
	})
}

// handleChatMessage charges one credit per message. The response carries
// the balance persisted by the store.
func (s *Server) handleChatMessage(c *fiber.Ctx) error {
	var req models.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	userID := session.UserID(c)
	credits, err := s.store.DebitCredit(c.UserContext(), userID)
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "No credits left",
			"credits": 0,
		})
	case errors.Is(err, ledger.ErrProfileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	case err != nil:
		s.logger.Error("Failed to debit credit", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to debit credit",
		})
	}

	return c.JSON(models.ChatMessageResponse{
		Message: req.Message,
		Credits: credits,
	})
}
