package models

import "time"

// Outcome is the result of a participant's attempt at a round.
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomePassed     Outcome = "passed"
	OutcomeFailed     Outcome = "failed"
	OutcomeEliminated Outcome = "eliminated"
)

// Resolved reports whether the outcome is final for its round.
func (o Outcome) Resolved() bool {
	return o == OutcomePassed || o == OutcomeFailed || o == OutcomeEliminated
}

// ParseOutcome maps a wire value onto a known Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomePending, OutcomePassed, OutcomeFailed, OutcomeEliminated:
		return o, true
	}
	return "", false
}

// RegistrationStatus tracks whether a registration can still progress.
type RegistrationStatus string

const (
	RegistrationActive     RegistrationStatus = "active"
	RegistrationCompleted  RegistrationStatus = "completed"
	RegistrationEliminated RegistrationStatus = "eliminated"
)

// Terminal reports whether no further outcomes may be recorded.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationCompleted || s == RegistrationEliminated
}

// Registration is a participant's enrollment and progress record for one event.
// Event and participant are referenced by id only.
type Registration struct {
	ID            string             `json:"id" gorm:"primaryKey;type:uuid"`
	EventID       string             `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_registration_event_participant"`
	ParticipantID string             `json:"participant_id" gorm:"not null;uniqueIndex:idx_registration_event_participant;index"`
	Status        RegistrationStatus `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	CurrentRound  int                `json:"current_round" gorm:"not null;default:0"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	RegisteredAt  time.Time          `json:"registered_at" gorm:"not null"`
	UpdatedAt     time.Time          `json:"updated_at" gorm:"autoUpdateTime"`

	// RoundOutcomes is ordered by SequenceNumber.
	RoundOutcomes []RoundOutcome `json:"round_outcomes" gorm:"foreignKey:RegistrationID"`
}

// RoundOutcome records one round reached by a registration.
type RoundOutcome struct {
	ID             string     `json:"-" gorm:"primaryKey;type:uuid"`
	RegistrationID string     `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_outcome_registration_seq"`
	EventID        string     `json:"-" gorm:"type:uuid;not null;index:idx_outcome_event_seq"`
	SequenceNumber int        `json:"sequence_number" gorm:"not null;uniqueIndex:idx_outcome_registration_seq;index:idx_outcome_event_seq"`
	Outcome        Outcome    `json:"outcome" gorm:"type:varchar(16);not null"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// OutcomeFor returns the recorded outcome for a round, if the registration reached it.
func (r *Registration) OutcomeFor(seq int) (Outcome, bool) {
	for _, o := range r.RoundOutcomes {
		if o.SequenceNumber == seq {
			return o.Outcome, true
		}
	}
	return "", false
}
