package session

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/avocatel/internal/config"
)

func newTestManager() *Manager {
	return NewManager(config.SessionConfig{
		CookieName: "avocatel-auth",
		Secret:     "test-secret-at-least-32-characters-long",
		MaxAge:     time.Hour,
	}, false)
}

func TestSealAndOpen(t *testing.T) {
	m := newTestManager()

	token, err := m.Seal("u1")
	require.NoError(t, err)

	sess, err := m.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	t.Run("empty", func(t *testing.T) {
		_, err := m.Open("")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := m.Open(token + "x")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewManager(config.SessionConfig{CookieName: "avocatel-auth", Secret: "another-secret", MaxAge: time.Hour}, false)
		_, err := other.Open(token)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("expired", func(t *testing.T) {
		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { m.now = time.Now }()
		_, err := m.Open(token)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestRequire(t *testing.T) {
	m := newTestManager()
	app := fiber.New()
	app.Get("/me", m.Require(), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})
	app.Post("/login", func(c *fiber.Ctx) error {
		return m.Issue(c, "u1")
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		m.Destroy(c)
		return c.SendStatus(fiber.StatusOK)
	})

	t.Run("without cookie", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("issued cookie authenticates", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		require.NoError(t, err)
		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "avocatel-auth", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		req := httptest.NewRequest("GET", "/me", nil)
		req.AddCookie(cookies[0])
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "u1", string(body))
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("POST", "/logout", nil))
		require.NoError(t, err)
		header := resp.Header.Get("Set-Cookie")
		assert.True(t, strings.HasPrefix(header, "avocatel-auth=;"), header)
	})
}
