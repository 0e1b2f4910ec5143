package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/illegalcall/avocatel/internal/config"
	"github.com/illegalcall/avocatel/internal/models"
)

var ErrNoSession = errors.New("no session")

const localsKey = "session_user_id"

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager issues and reads the session cookie. The cookie value is a signed
// token; sealing of the cookie itself is left to the encryptcookie middleware.
type Manager struct {
	cookieName string
	secret     []byte
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(cfg config.SessionConfig, secure bool) *Manager {
	return &Manager{
		cookieName: cfg.CookieName,
		secret:     []byte(cfg.Secret),
		maxAge:     cfg.MaxAge,
		secure:     secure,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Seal signs a session for userID.
func (m *Manager) Seal(userID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	})
	return token.SignedString(m.secret)
}

// Open validates a sealed session and returns its user id.
func (m *Manager) Open(raw string) (models.Session, error) {
	if raw == "" {
		return models.Session{}, ErrNoSession
	}
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if cl.UserID == "" {
		return models.Session{}, ErrNoSession
	}
	return models.Session{UserID: cl.UserID}, nil
}

// Issue replaces any existing session with one for userID.
func (m *Manager) Issue(c *fiber.Ctx, userID string) error {
	value, err := m.Seal(userID)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  m.now().Add(m.maxAge),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (m *Manager) Destroy(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Current reads the session from the request cookie.
func (m *Manager) Current(c *fiber.Ctx) (models.Session, error) {
	return m.Open(c.Cookies(m.cookieName))
}

// Require rejects requests without a valid session and exposes the user id
// to later handlers through UserID.
func (m *Manager) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := m.Current(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}
		c.Locals(localsKey, sess.UserID)
		return c.Next()
	}
}

// UserID returns the user id stored by Require, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsKey).(string)
	return id
}
