package supabase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var ErrNotConfigured = errors.New("supabase is not configured")

// Provider is the slice of the identity service the API depends on.
type Provider interface {
	// SendMagicLink emails a one-time login link, creating the user if needed.
	SendMagicLink(email string) error
	// ExchangeToken verifies a magic link token and returns the user id.
	ExchangeToken(token, email string) (string, error)
	ValidateCredentials(email, password string) (bool, error)
}

type Client struct {
	auth   gotrue.Client
	logger *slog.Logger
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, ".")
	return parts[0]
}

// NewClient builds the auth client. It does not contact Supabase.
func NewClient(supabaseURL, supabaseKey string, logger *slog.Logger) (*Client, error) {
	if supabaseURL == "" || supabaseKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	projectRef := extractProjectRef(supabaseURL)
	logger.Info("Initializing Supabase client", "project_ref", projectRef, "api_key", truncateKey(supabaseKey))

	return &Client{
		auth:   gotrue.New(projectRef, supabaseKey),
		logger: logger,
	}, nil
}

// Ping checks the connection by fetching the auth settings.
func (c *Client) Ping() error {
	if _, err := c.auth.GetSettings(); err != nil {
		return fmt.Errorf("failed to connect to Supabase: %w", err)
	}
	return nil
}

func (c *Client) SendMagicLink(email string) error {
	err := c.auth.OTP(types.OTPRequest{
		Email:      email,
		CreateUser: true,
	})
	if err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

func (c *Client) ExchangeToken(token, email string) (string, error) {
	resp, err := c.auth.VerifyForUser(types.VerifyForUserRequest{
		Type:  types.VerificationTypeMagiclink,
		Token: token,
		Email: email,
	})
	if err != nil {
		return "", fmt.Errorf("verify magic link: %w", err)
	}
	if resp.User.ID == uuid.Nil {
		return "", errors.New("verify magic link: no user in session")
	}
	return resp.User.ID.String(), nil
}

// ValidateCredentials checks if the provided credentials are valid
func (c *Client) ValidateCredentials(email, password string) (bool, error) {
	c.logger.Info("Attempting authentication", "email", email)

	res, err := c.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		c.logger.Warn("Authentication error", "email", email, "error", err)
		return false, fmt.Errorf("authentication failed: %w", err)
	}

	isValid := res != nil && res.AccessToken != ""
	c.logger.Info("Authentication result", "email", email, "valid", isValid)
	return isValid, nil
}

// truncateKey keeps API keys out of the logs.
func truncateKey(key string) string {
	if len(key) > 10 {
		return key[:10] + "..."
	}
	return ""
}
