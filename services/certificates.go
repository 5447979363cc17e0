package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"event-platform/clock"
	"event-platform/models"

	"github.com/google/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// verificationCodeBytes is 128 bits of entropy.
const verificationCodeBytes = 16

// FormatCertificateNumber builds the human-presentable number for the seq-th certificate
// of an event.
func FormatCertificateNumber(eventID string, seq int64) string {
	return fmt.Sprintf("EVT-%s-%06d", eventID, seq)
}

// newVerificationCode returns a random token that shares nothing with the certificate number.
func newVerificationCode() (string, error) {
	b := make([]byte, verificationCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CertificateService mints and answers lookups for completion certificates.
type CertificateService struct {
	DB            *gorm.DB
	Clock         clock.Clock
	PublicBaseURL string
}

func NewCertificateService(db *gorm.DB, clk clock.Clock, publicBaseURL string) *CertificateService {
	return &CertificateService{DB: db, Clock: clk, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// VerificationURL is the shareable link handed to the rendering collaborator. It carries
// the verification code so the sequential number is never needed to verify.
func (s *CertificateService) VerificationURL(cert *models.Certificate) string {
	return s.PublicBaseURL + "/certificates/verify/" + cert.VerificationCode
}

// Issue mints the certificate for a completed registration. Calling it again for the same
// registration returns the certificate minted the first time. The actor must be able to
// manage the event.
func (s *CertificateService) Issue(ctx context.Context, registrationID string, actor Actor) (*models.Certificate, error) {
	if registrationID == "" {
		return nil, validationError("registration id is required")
	}
	var cert *models.Certificate
	err := inTx(ctx, s.DB, "issue certificate", func(tx *gorm.DB) error {
		var ref models.Registration
		if err := tx.Select("id", "event_id").Where("id = ?", registrationID).First(&ref).Error; err != nil {
			return notFoundOr(err, ErrRegistrationNotFound, "find registration")
		}
		event, err := lockEvent(tx, ref.EventID)
		if err != nil {
			return err
		}
		if !actor.canManage(event.OrganizerID) {
			return ErrForbidden
		}
		reg, err := lockRegistration(tx, registrationID)
		if err != nil {
			return err
		}
		cert, err = s.issueLocked(tx, event, reg, s.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// issueLocked mints inside a transaction that already holds the event row lock, which
// makes the sequence increment and the existence check one atomic step. The unique index
// on (event_id, participant_id) backs it up; a violation surfaces as ErrConcurrency so the
// caller's retry finds the existing row.
func (s *CertificateService) issueLocked(tx *gorm.DB, event *models.Event, reg *models.Registration, now time.Time) (*models.Certificate, error) {
	if reg.Status != models.RegistrationCompleted {
		return nil, ErrRegistrationNotCompleted
	}

	var existing models.Certificate
	err := tx.Where("event_id = ? AND participant_id = ?", reg.EventID, reg.ParticipantID).
		Limit(1).Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	if existing.ID != "" {
		return &existing, nil
	}

	seq := event.CertificateSeq + 1
	if err := tx.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("certificate_seq", seq).Error; err != nil {
		return nil, fmt.Errorf("bump certificate sequence: %w", err)
	}
	event.CertificateSeq = seq

	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}
	cert := models.Certificate{
		ID:                uuid.NewString(),
		CertificateNumber: FormatCertificateNumber(event.ID, seq),
		VerificationCode:  code,
		EventID:           reg.EventID,
		ParticipantID:     reg.ParticipantID,
		RegistrationID:    reg.ID,
		IssuedDate:        now,
	}
	if err := tx.Create(&cert).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConcurrency
		}
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	if err := emit(tx, models.EventCertificateIssued, cert.ID, CertificatePayload{
		CertificateID:     cert.ID,
		CertificateNumber: cert.CertificateNumber,
		EventID:           cert.EventID,
		ParticipantID:     cert.ParticipantID,
		IssuedDate:        cert.IssuedDate,
		VerificationURL:   s.VerificationURL(&cert),
	}, now); err != nil {
		return nil, err
	}
	logger.Infof("[CERTS] issued %s to %s", cert.CertificateNumber, cert.ParticipantID)
	return &cert, nil
}

// Revoke flags a certificate as revoked. The row is kept; verification reports it as revoked.
func (s *CertificateService) Revoke(ctx context.Context, certificateID, reason string, actor Actor) (*models.Certificate, error) {
	if !actor.Has(RoleAdmin) {
		return nil, ErrForbidden
	}
	if certificateID == "" {
		return nil, validationError("certificate id is required")
	}
	var cert models.Certificate
	err := inTx(ctx, s.DB, "revoke certificate", func(tx *gorm.DB) error {
		if err := tx.First(&cert, "id = ?", certificateID).Error; err != nil {
			return notFoundOr(err, ErrCertificateNotFound, "find certificate")
		}
		if cert.Revoked {
			return nil
		}
		now := s.Clock.Now()
		cert.Revoked = true
		cert.RevokedAt = &now
		cert.RevokedReason = strings.TrimSpace(reason)
		if err := tx.Model(&models.Certificate{}).
			Where("id = ?", cert.ID).
			Updates(map[string]interface{}{
				"revoked":        true,
				"revoked_at":     now,
				"revoked_reason": cert.RevokedReason,
			}).Error; err != nil {
			return fmt.Errorf("revoke certificate: %w", err)
		}
		return emit(tx, models.EventCertificateRevoked, cert.ID, CertificatePayload{
			CertificateID:     cert.ID,
			CertificateNumber: cert.CertificateNumber,
			EventID:           cert.EventID,
			ParticipantID:     cert.ParticipantID,
			IssuedDate:        cert.IssuedDate,
			VerificationURL:   s.VerificationURL(&cert),
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListForParticipant returns the participant's certificates, newest first.
func (s *CertificateService) ListForParticipant(ctx context.Context, participantID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := s.DB.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("issued_date DESC").
		Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// Get returns one certificate to its holder or to whoever may manage its event.
// Anyone else sees not found.
func (s *CertificateService) Get(ctx context.Context, certificateID string, actor Actor) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.DB.WithContext(ctx).First(&cert, "id = ?", certificateID).Error; err != nil {
		return nil, notFoundOr(err, ErrCertificateNotFound, "get certificate")
	}
	if actor.ID != "" && actor.ID == cert.ParticipantID {
		return &cert, nil
	}
	var event models.Event
	if err := s.DB.WithContext(ctx).Select("id", "organizer_id").First(&event, "id = ?", cert.EventID).Error; err != nil {
		return nil, notFoundOr(err, ErrCertificateNotFound, "get certificate event")
	}
	if !actor.canManage(event.OrganizerID) {
		return nil, ErrCertificateNotFound
	}
	return &cert, nil
}
