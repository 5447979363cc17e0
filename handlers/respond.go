package handlers

import (
	"errors"
	"strings"

	"event-platform/middleware"
	"event-platform/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/logger"
)

// respondError maps an engine error onto a status code. Internal failures are logged
// and reported without detail.
func respondError(c *fiber.Ctx, err error) error {
	var e *services.Error
	if !errors.As(err, &e) {
		logger.Errorf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	status := fiber.StatusInternalServerError
	switch e.Kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindStateConflict:
		status = fiber.StatusConflict
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindConcurrency:
		status = fiber.StatusServiceUnavailable
		c.Set(fiber.HeaderRetryAfter, "1")
	case services.KindForbidden:
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{
		"error": e.Message,
		"code":  e.Code,
	})
}

// actorFrom builds the caller identity from the gateway context. Public routes run
// without UserContextMiddleware, so the headers are read directly as a fallback.
func actorFrom(c *fiber.Ctx) services.Actor {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	roles, ok := c.Locals(middleware.LocalUserRoles).([]string)
	if id == "" {
		id = strings.TrimSpace(c.Get("X-User-ID"))
	}
	if !ok {
		roles = middleware.ParseRoles(c.Get("X-User-Roles"))
	}
	actor := services.Actor{ID: id}
	if id == "" {
		return actor
	}
	for _, r := range roles {
		actor.Roles = append(actor.Roles, services.Role(r))
	}
	return actor
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body: " + err.Error(),
		"code":  "validation_error",
	})
}
