package models

import "time"

// Certificate is immutable proof that a participant completed an event.
// Only the revocation fields may change after minting.
type Certificate struct {
	ID                string     `json:"id" gorm:"primaryKey;type:uuid"`
	CertificateNumber string     `json:"certificate_number" gorm:"uniqueIndex;not null"`
	VerificationCode  string     `json:"verification_code" gorm:"uniqueIndex;not null"`
	EventID           string     `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_certificate_event_participant"`
	ParticipantID     string     `json:"participant_id" gorm:"not null;uniqueIndex:idx_certificate_event_participant;index"`
	RegistrationID    string     `json:"registration_id" gorm:"type:uuid;not null"`
	IssuedDate        time.Time  `json:"issued_date" gorm:"not null"`
	Revoked           bool       `json:"revoked" gorm:"not null;default:false"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	RevokedReason     string     `json:"revoked_reason,omitempty"`
}
