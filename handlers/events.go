package handlers

import (
	"event-platform/middleware"
	"event-platform/models"
	"event-platform/services"

	"github.com/gofiber/fiber/v2"
)

// EventHandler exposes event administration, registration and round progression.
type EventHandler struct {
	Events       *services.EventService
	Ledger       *services.LedgerService
	Rounds       *services.RoundService
	Certificates *services.CertificateService
}

type advanceRequest struct {
	// FromRound guards against double advances; omitted means the current round.
	FromRound *int `json:"from_round"`
}

type advanceResponse struct {
	Event    services.EventView `json:"event"`
	Advanced bool               `json:"advanced"`
}

type outcomeRequest struct {
	SequenceNumber *int   `json:"sequence_number"`
	Outcome        string `json:"outcome"`
}

type outcomeResponse struct {
	Registration *models.Registration `json:"registration"`
	Certificate  *CertificateResponse `json:"certificate,omitempty"`
	Advanced     bool                 `json:"advanced"`
}

func SetupEventRoutes(app *fiber.App, h *EventHandler) {
	auth := middleware.UserContextMiddleware()
	organizer := middleware.RequireRole(string(services.RoleOrganizer), string(services.RoleAdmin))

	// 🔓 Public
	app.Get("/events/published", h.listPublished)
	app.Get("/events/:id", h.getEvent)

	// 🔐 Participants
	app.Post("/events/:id/register", auth, h.register)
	app.Get("/events/:id/registrations/me", auth, h.myRegistration)

	// 🔒 Organizer / admin
	app.Post("/events", auth, organizer, h.createEvent)
	app.Get("/events", auth, organizer, h.listManaged)
	app.Post("/events/:id/publish", auth, organizer, h.publish)
	app.Post("/events/:id/cancel", auth, organizer, h.cancel)
	app.Post("/events/:id/rounds/advance", auth, organizer, h.advance)
	app.Post("/events/:id/rounds/rollback", auth, organizer, h.rollback)
	app.Get("/events/:id/registrations", auth, organizer, h.listRegistrations)
	app.Post("/registrations/:id/outcomes", auth, organizer, h.recordOutcome)
}

func (h *EventHandler) views(events []models.Event) []services.EventView {
	out := make([]services.EventView, 0, len(events))
	for i := range events {
		out = append(out, h.Events.View(&events[i]))
	}
	return out
}

func (h *EventHandler) listPublished(c *fiber.Ctx) error {
	events, err := h.Events.ListPublished(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.views(events))
}

func (h *EventHandler) listManaged(c *fiber.Ctx) error {
	events, err := h.Events.ListManaged(c.UserContext(), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.views(events))
}

func (h *EventHandler) getEvent(c *fiber.Ctx) error {
	event, err := h.Events.GetVisible(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Events.View(event))
}

func (h *EventHandler) createEvent(c *fiber.Ctx) error {
	var in services.CreateEventInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	event, err := h.Events.Create(c.UserContext(), in, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.Events.View(event))
}

func (h *EventHandler) publish(c *fiber.Ctx) error {
	event, err := h.Events.Publish(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Events.View(event))
}

func (h *EventHandler) cancel(c *fiber.Ctx) error {
	event, err := h.Events.Cancel(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Events.View(event))
}

func (h *EventHandler) advance(c *fiber.Ctx) error {
	var req advanceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	eventID := c.Params("id")
	if req.FromRound == nil {
		current, err := h.Events.Get(c.UserContext(), eventID)
		if err != nil {
			return respondError(c, err)
		}
		req.FromRound = &current.CurrentRoundIndex
	}

	event, advanced, err := h.Rounds.Advance(c.UserContext(), eventID, *req.FromRound, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(advanceResponse{Event: h.Events.View(event), Advanced: advanced})
}

func (h *EventHandler) rollback(c *fiber.Ctx) error {
	event, err := h.Rounds.Rollback(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Events.View(event))
}

func (h *EventHandler) register(c *fiber.Ctx) error {
	actor := actorFrom(c)
	reg, err := h.Ledger.Register(c.UserContext(), c.Params("id"), actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reg)
}

func (h *EventHandler) myRegistration(c *fiber.Ctx) error {
	reg, err := h.Ledger.GetForParticipant(c.UserContext(), c.Params("id"), actorFrom(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reg)
}

func (h *EventHandler) listRegistrations(c *fiber.Ctx) error {
	regs, err := h.Ledger.ListByEvent(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(regs)
}

func (h *EventHandler) recordOutcome(c *fiber.Ctx) error {
	var req outcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.SequenceNumber == nil {
		return respondError(c, &services.Error{Kind: services.KindValidation, Code: services.ErrValidation.Code, Message: "sequence_number is required"})
	}
	outcome, ok := models.ParseOutcome(req.Outcome)
	if !ok || !outcome.Resolved() {
		return respondError(c, services.ErrInvalidOutcome)
	}

	res, err := h.Ledger.RecordOutcome(c.UserContext(), c.Params("id"), *req.SequenceNumber, outcome, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := outcomeResponse{Registration: res.Registration, Advanced: res.Advanced}
	if res.Certificate != nil {
		out.Certificate = certificateResponse(h.Certificates, res.Certificate)
	}
	return c.JSON(out)
}
