// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/logger"
)

// Locals keys set by UserContextMiddleware.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// UserContextMiddleware extracts the user identity and roles set by the Gateway.
// Routes it guards require X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			logger.Infof("[USER_CTX] X-User-ID required but missing: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, ParseRoles(c.Get("X-User-Roles")))
		return c.Next()
	}
}

// ParseRoles splits the comma-separated roles header, lower-casing each entry.
func ParseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// RequireRole lets the request through when the caller holds any of roles.
// It must run after UserContextMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		have, _ := c.Locals(LocalUserRoles).([]string)
		for _, h := range have {
			for _, want := range roles {
				if h == want {
					return c.Next()
				}
			}
		}
		logger.Infof("[USER_CTX] %v denied %s %s (roles=%v)", c.Locals(LocalUserID), c.Method(), c.Path(), have)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}
