package services

import (
	"encoding/json"
	"fmt"
	"time"

	"event-platform/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoundChangedPayload is emitted for round.advanced and round.rolled_back.
type RoundChangedPayload struct {
	EventID     string `json:"event_id"`
	FromRound   int    `json:"from_round"`
	ToRound     int    `json:"to_round"`
	TriggeredBy string `json:"triggered_by"`
	Automatic   bool   `json:"automatic"`
}

// RegistrationPayload is emitted when a registration reaches a terminal state.
type RegistrationPayload struct {
	RegistrationID string                    `json:"registration_id"`
	EventID        string                    `json:"event_id"`
	ParticipantID  string                    `json:"participant_id"`
	Status         models.RegistrationStatus `json:"status"`
	FinalRound     int                       `json:"final_round"`
}

// CertificatePayload is emitted for certificate.issued and certificate.revoked.
// It carries identifiers only; rendering happens downstream.
type CertificatePayload struct {
	CertificateID     string    `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	EventID           string    `json:"event_id"`
	ParticipantID     string    `json:"participant_id"`
	IssuedDate        time.Time `json:"issued_date"`
	VerificationURL   string    `json:"verification_url"`
}

// EventLifecyclePayload is emitted for event.published and event.cancelled.
type EventLifecyclePayload struct {
	EventID string                      `json:"event_id"`
	Status  models.AdministrativeStatus `json:"administrative_status"`
	ActorID string                      `json:"actor_id"`
}

// emit appends a domain event to the outbox inside tx, so it commits or rolls back
// together with the change it describes.
func emit(tx *gorm.DB, typ models.DomainEventType, aggregateID string, payload any, now time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	ev := models.DomainEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		AggregateID: aggregateID,
		Payload:     body,
		CreatedAt:   now,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("write outbox %s: %w", typ, err)
	}
	return nil
}
