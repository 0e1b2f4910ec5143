package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const underConstructionPage = `<!DOCTYPE html>
<html lang="ro">
<head><meta charset="utf-8"><title>Avocatel</title></head>
<body>
<h1>Under construction</h1>
<p>Avocatel is being upgraded. Please come back soon.</p>
</body>
</html>`

// maintenance serves the under construction page for every route except
// the payment webhook and metrics, so paid checkouts are still credited.
func maintenance(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled {
			return c.Next()
		}
		path := c.Path()
		if path == "/metrics" || strings.HasPrefix(path, "/api/webhook") {
			return c.Next()
		}
		c.Set(fiber.HeaderRetryAfter, "3600")
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(fiber.StatusServiceUnavailable).SendString(underConstructionPage)
	}
}
