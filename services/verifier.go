package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-platform/models"

	"github.com/google/logger"
	"gorm.io/gorm"
)

// maxIdentifierLen bounds the public lookup input. Certificate numbers are
// EVT-<uuid>-<seq> and verification codes are 32 hex characters.
const maxIdentifierLen = 128

// VerifiedCertificate is the public view of a certificate. It never carries the
// verification code.
type VerifiedCertificate struct {
	ID                string     `json:"id"`
	CertificateNumber string     `json:"certificate_number"`
	IssuedDate        time.Time  `json:"issued_date"`
	Revoked           bool       `json:"revoked"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

type VerifiedEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type VerifiedParticipant struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name,omitempty"`
	PictureURL  *string `json:"profile_picture_url,omitempty"`
}

// VerificationResult answers a public verification lookup. Valid is false both for
// unknown identifiers and for revoked certificates; Revoked tells them apart.
type VerificationResult struct {
	Valid       bool                 `json:"valid"`
	Revoked     bool                 `json:"revoked,omitempty"`
	Certificate *VerifiedCertificate `json:"certificate,omitempty"`
	Event       *VerifiedEvent       `json:"event,omitempty"`
	Participant *VerifiedParticipant `json:"participant,omitempty"`
}

// Verify looks a certificate up by number or verification code. Both columns carry a
// unique index. Nothing is written.
func (s *CertificateService) Verify(ctx context.Context, identifier string) (VerificationResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || len(identifier) > maxIdentifierLen {
		return VerificationResult{}, nil
	}

	db := s.DB.WithContext(ctx)
	var cert models.Certificate
	err := db.Where("certificate_number = ? OR verification_code = ?", identifier, identifier).
		Take(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VerificationResult{}, nil
	}
	if err != nil {
		return VerificationResult{}, notFoundOr(err, ErrCertificateNotFound, "verify certificate")
	}

	res := VerificationResult{
		Valid:   !cert.Revoked,
		Revoked: cert.Revoked,
		Certificate: &VerifiedCertificate{
			ID:                cert.ID,
			CertificateNumber: cert.CertificateNumber,
			IssuedDate:        cert.IssuedDate,
			Revoked:           cert.Revoked,
			RevokedAt:         cert.RevokedAt,
		},
		Participant: &VerifiedParticipant{ID: cert.ParticipantID},
	}

	var event models.Event
	err = db.Select("id", "name", "start_date", "end_date").
		Take(&event, "id = ?", cert.EventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warningf("[VERIFY] certificate %s references missing event %s", cert.ID, cert.EventID)
		return VerificationResult{}, nil
	}
	if err != nil {
		return VerificationResult{}, fmt.Errorf("verify certificate event: %w", err)
	}
	res.Event = &VerifiedEvent{ID: event.ID, Name: event.Name, StartDate: event.StartDate, EndDate: event.EndDate}

	// The profile snapshot is optional; a participant not yet synced still verifies.
	var p models.Participant
	err = db.Where("external_user_id = ?", cert.ParticipantID).Limit(1).Find(&p).Error
	switch {
	case err != nil:
		logger.Warningf("[VERIFY] participant snapshot for %s unavailable: %v", cert.ParticipantID, err)
	case p.ID != "":
		res.Participant.DisplayName = p.PublicName()
		res.Participant.PictureURL = p.ProfilePictureURL
	}
	return res, nil
}
