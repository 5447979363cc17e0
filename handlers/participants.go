package handlers

import (
	"event-platform/middleware"
	"event-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupParticipantRoutes(app *fiber.App, participants *services.ParticipantService) {
	app.Get("/participants/search",
		middleware.UserContextMiddleware(),
		middleware.RequireRole(string(services.RoleOrganizer), string(services.RoleAdmin)),
		func(c *fiber.Ctx) error {
			res, err := participants.Search(c.UserContext(), c.Query("q"), c.QueryInt("limit", 0), actorFrom(c))
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(res)
		})
}
