package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/avocatel/internal/models"
	"github.com/illegalcall/avocatel/internal/payments"
)

func (s *Server) handleCreditPackages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"packages": s.catalog.Packages(),
	})
}

// handleCheckoutSession creates a hosted checkout for a credit package and
// redirects the browser to it.
func (s *Server) handleCheckoutSession(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
			"error": "Method Not Allowed",
		})
	}

	var req models.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.PriceID = strings.TrimSpace(req.PriceID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		if sess, err := s.sessions.Current(c); err == nil {
			req.UserID = sess.UserID
		}
	}

	if req.PriceID == "" || req.UserID == "" || req.Credits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "priceId, credits and userId are required",
		})
	}
	pkg, ok := s.catalog.Lookup(req.PriceID)
	if !ok {
		s.logger.Warn("Checkout requested for unknown price", "user_id", req.UserID, "price_id", req.PriceID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown credit package",
		})
	}
	if pkg.Credits != req.Credits {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Credits do not match the selected package",
		})
	}

	origin := strings.TrimRight(c.Get(fiber.HeaderOrigin), "/")
	if origin == "" {
		origin = strings.TrimRight(s.cfg.Server.PublicURL, "/")
	}

	checkout, err := s.gateway.CreateCheckoutSession(c.UserContext(), payments.CheckoutRequest{
		PriceID:    req.PriceID,
		Credits:    req.Credits,
		UserID:     req.UserID,
		SuccessURL: origin + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  origin + "/?canceled=true",
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session", "user_id", req.UserID, "price_id", req.PriceID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": s.upstreamMessage("Failed to create checkout session", err),
		})
	}
	if checkout.URL == "" {
		s.logger.Error("Checkout session has no redirect URL", "session_id", checkout.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Checkout session has no redirect URL",
		})
	}

	s.logger.Info("Checkout session created",
		"session_id", checkout.ID, "user_id", req.UserID, "credits", req.Credits)
	return c.Redirect(checkout.URL, fiber.StatusSeeOther)
}
