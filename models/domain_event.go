package models

import (
	"time"

	"gorm.io/datatypes"
)

// DomainEventType names a fact emitted by the engine for the notification layer.
type DomainEventType string

const (
	EventRegistrationCompleted  DomainEventType = "registration.completed"
	EventRegistrationEliminated DomainEventType = "registration.eliminated"
	EventCertificateIssued      DomainEventType = "certificate.issued"
	EventCertificateRevoked     DomainEventType = "certificate.revoked"
	EventRoundAdvanced          DomainEventType = "round.advanced"
	EventRoundRolledBack        DomainEventType = "round.rolled_back"
	EventPublished              DomainEventType = "event.published"
	EventCancelled              DomainEventType = "event.cancelled"
)

// DomainEvent is an outbox row written in the same transaction as the change it describes.
// Seq orders rows that share a timestamp. PublishedAt stays nil until the relay worker has
// handed it to the broker.
type DomainEvent struct {
	ID          string          `json:"id" gorm:"primaryKey;type:uuid"`
	Seq         int64           `json:"seq" gorm:"autoIncrement;not null;uniqueIndex"`
	Type        DomainEventType `json:"type" gorm:"type:varchar(48);not null;index"`
	AggregateID string          `json:"aggregate_id" gorm:"not null;index"`
	Payload     datatypes.JSON  `json:"payload" gorm:"type:jsonb;not null"`
	Attempts    int             `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;index"`
	PublishedAt *time.Time      `json:"published_at,omitempty" gorm:"index"`
}
