package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/logger"
	"gorm.io/gorm"
)

// SetupHealthRoutes registers GET /health, which reports database reachability.
func SetupHealthRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logger.Errorf("[HEALTH] database unreachable: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": "unreachable",
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
