package api

import (
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/illegalcall/avocatel/internal/models"
)

// StatusAuthenticationFailed is answered when a magic link cannot be
// exchanged for a session.
const StatusAuthenticationFailed = 469

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	if err := s.identity.SendMagicLink(email); err != nil {
		s.logger.Error("Failed to send magic link", "email", email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": s.upstreamMessage("Failed to send magic link", err),
		})
	}

	s.logger.Info("Magic link sent", "email", email)
	return c.JSON(fiber.Map{
		"data": fiber.Map{"email": email},
	})
}

func (s *Server) handleAuthenticate(c *fiber.Ctx) error {
	token := c.Query("token")
	email := c.Query("email")
	if token == "" || email == "" {
		return c.Status(StatusAuthenticationFailed).JSON(fiber.Map{
			"error": "Missing token or email",
		})
	}

	userID, err := s.identity.ExchangeToken(token, email)
	if err != nil {
		s.logger.Warn("Magic link verification failed", "email", email, "error", err)
		return c.Status(StatusAuthenticationFailed).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.sessions.Destroy(c)
	if err := s.sessions.Issue(c, userID); err != nil {
		s.logger.Error("Failed to issue session", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	s.logger.Info("User authenticated", "user_id", userID)
	return c.Redirect("/", fiber.StatusFound)
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	s.sessions.Destroy(c)
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleAdminLogin(c *fiber.Ctx) error {
	var req models.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Admin authentication attempt", "email", req.Email)

	if !slices.Contains(s.cfg.Admin.Emails, strings.ToLower(strings.TrimSpace(req.Email))) {
		s.logger.Warn("Admin login for address outside allowlist", "email", req.Email)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	valid, err := s.identity.ValidateCredentials(req.Email, req.Password)
	if err != nil {
		s.logger.Error("Authentication error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": s.upstreamMessage("Authentication service error", err),
		})
	}

	if !valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": req.Email,
		"role":  "admin",
		"exp":   now.Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.logger.Info("Admin successfully authenticated", "email", req.Email)

	return c.JSON(models.LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
	})
}
