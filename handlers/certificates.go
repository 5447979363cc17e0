package handlers

import (
	"event-platform/middleware"
	"event-platform/models"
	"event-platform/services"

	"github.com/gofiber/fiber/v2"
)

// CertificateHandler exposes issuance, lookup, revocation and public verification.
type CertificateHandler struct {
	Certificates *services.CertificateService
	VerifyLimit  fiber.Handler // optional rate limiter for the public verify route
}

// CertificateResponse is a certificate as shown to its holder or the organizer.
type CertificateResponse struct {
	models.Certificate
	VerificationURL string `json:"verification_url"`
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func certificateResponse(svc *services.CertificateService, cert *models.Certificate) *CertificateResponse {
	return &CertificateResponse{Certificate: *cert, VerificationURL: svc.VerificationURL(cert)}
}

func SetupCertificateRoutes(app *fiber.App, h *CertificateHandler) {
	auth := middleware.UserContextMiddleware()

	verify := []fiber.Handler{h.verify}
	if h.VerifyLimit != nil {
		verify = append([]fiber.Handler{h.VerifyLimit}, verify...)
	}
	app.Get("/certificates/verify/:identifier", verify...)

	app.Get("/certificates/me", auth, h.mine)
	app.Get("/certificates/:id", auth, h.get)
	app.Post("/registrations/:id/certificate", auth,
		middleware.RequireRole(string(services.RoleOrganizer), string(services.RoleAdmin)), h.issue)
	app.Post("/certificates/:id/revoke", auth, middleware.RequireRole(string(services.RoleAdmin)), h.revoke)
}

func (h *CertificateHandler) verify(c *fiber.Ctx) error {
	res, err := h.Certificates.Verify(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *CertificateHandler) mine(c *fiber.Ctx) error {
	certs, err := h.Certificates.ListForParticipant(c.UserContext(), actorFrom(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*CertificateResponse, 0, len(certs))
	for i := range certs {
		out = append(out, certificateResponse(h.Certificates, &certs[i]))
	}
	return c.JSON(out)
}

func (h *CertificateHandler) get(c *fiber.Ctx) error {
	cert, err := h.Certificates.Get(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(certificateResponse(h.Certificates, cert))
}

// issue mints (or returns) the certificate of a completed registration. The caller must
// be able to manage the registration's event.
func (h *CertificateHandler) issue(c *fiber.Ctx) error {
	cert, err := h.Certificates.Issue(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(certificateResponse(h.Certificates, cert))
}

func (h *CertificateHandler) revoke(c *fiber.Ctx) error {
	var req revokeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	cert, err := h.Certificates.Revoke(c.UserContext(), c.Params("id"), req.Reason, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(certificateResponse(h.Certificates, cert))
}
