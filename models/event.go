package models

import (
	"time"
)

// AdministrativeStatus is the organizer-controlled state of an event.
// It is independent of the event dates.
type AdministrativeStatus string

const (
	AdminStatusDraft     AdministrativeStatus = "draft"
	AdminStatusPublished AdministrativeStatus = "published"
	AdminStatusCancelled AdministrativeStatus = "cancelled"
)

// EligibilityRule gates entry into a round based on the previous round's outcome.
type EligibilityRule string

// EligibilityPassedPrevious admits only participants who passed round N-1.
const EligibilityPassedPrevious EligibilityRule = "passed_previous"

// Event is a multi-round competition owned by an organizer.
type Event struct {
	ID                   string               `json:"id" gorm:"primaryKey;type:uuid"`
	Name                 string               `json:"name" gorm:"not null"`
	Slug                 string               `json:"slug" gorm:"uniqueIndex;not null"`
	Description          string               `json:"description"`
	OrganizerID          string               `json:"organizer_id" gorm:"index;not null"`
	StartDate            time.Time            `json:"start_date" gorm:"not null"`
	EndDate              time.Time            `json:"end_date" gorm:"not null"`
	AdministrativeStatus AdministrativeStatus `json:"administrative_status" gorm:"type:varchar(16);not null;default:'draft'"`
	CurrentRoundIndex    int                  `json:"current_round_index" gorm:"not null;default:0"`
	CertificateSeq       int64                `json:"-" gorm:"not null;default:0"`
	PublishedAt          *time.Time           `json:"published_at,omitempty"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time            `json:"updated_at" gorm:"autoUpdateTime"`

	// Rounds are ordered by SequenceNumber; callers must load them that way.
	Rounds []Round `json:"rounds" gorm:"foreignKey:EventID"`
}

// Round is one gated stage of an event.
type Round struct {
	ID              string          `json:"id" gorm:"primaryKey;type:uuid"`
	EventID         string          `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_round_event_seq"`
	SequenceNumber  int             `json:"sequence_number" gorm:"not null;uniqueIndex:idx_round_event_seq"`
	Name            string          `json:"name"`
	EligibilityRule EligibilityRule `json:"eligibility_rule" gorm:"type:varchar(32);not null;default:'passed_previous'"`
	Capacity        *int            `json:"capacity,omitempty"` // nil = unbounded
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (Round) TableName() string { return "event_rounds" }

// RoundCount returns the number of rounds attached to the event.
func (e *Event) RoundCount() int {
	return len(e.Rounds)
}

// RoundAt returns the round with the given sequence number.
func (e *Event) RoundAt(seq int) (Round, bool) {
	for _, r := range e.Rounds {
		if r.SequenceNumber == seq {
			return r, true
		}
	}
	return Round{}, false
}

// IsFinalRound reports whether seq is the last round of the event.
func (e *Event) IsFinalRound(seq int) bool {
	return seq == len(e.Rounds)-1
}
