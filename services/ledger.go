package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"event-platform/clock"
	"event-platform/models"

	"github.com/google/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// outcomeChange is what recording one outcome does to a registration.
type outcomeChange struct {
	Resolved   models.RoundOutcome
	Opened     *models.RoundOutcome
	Completed  bool
	Eliminated bool
}

// applyOutcome resolves round seq of reg with outcome. reg is updated in place.
// admittedNext is how many registrations already reached round seq+1; it is only
// consulted when the next round has a capacity.
func applyOutcome(reg *models.Registration, event *models.Event, seq int, outcome models.Outcome, admittedNext int64, now time.Time) (outcomeChange, error) {
	if !outcome.Resolved() {
		return outcomeChange{}, ErrInvalidOutcome
	}
	if reg.Status.Terminal() {
		return outcomeChange{}, ErrRegistrationClosed
	}
	if seq != reg.CurrentRound {
		return outcomeChange{}, ErrOutOfSequence
	}
	idx := -1
	for i, o := range reg.RoundOutcomes {
		if o.SequenceNumber == seq {
			idx = i
			break
		}
	}
	if idx < 0 || reg.RoundOutcomes[idx].Outcome != models.OutcomePending {
		return outcomeChange{}, ErrOutOfSequence
	}

	var change outcomeChange
	if outcome == models.OutcomePassed && !event.IsFinalRound(seq) {
		next, ok := event.RoundAt(seq + 1)
		if !ok {
			return outcomeChange{}, fmt.Errorf("event %s has no round %d", event.ID, seq+1)
		}
		if err := admitToRound(next, admittedNext); err != nil {
			return outcomeChange{}, err
		}
		opened := models.RoundOutcome{
			ID:             uuid.NewString(),
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			SequenceNumber: seq + 1,
			Outcome:        models.OutcomePending,
		}
		change.Opened = &opened
	}

	resolvedAt := now
	reg.RoundOutcomes[idx].Outcome = outcome
	reg.RoundOutcomes[idx].ResolvedAt = &resolvedAt
	change.Resolved = reg.RoundOutcomes[idx]

	switch {
	case change.Opened != nil:
		reg.CurrentRound = seq + 1
		reg.RoundOutcomes = append(reg.RoundOutcomes, *change.Opened)
	case outcome == models.OutcomePassed:
		reg.Status = models.RegistrationCompleted
		reg.CompletedAt = &resolvedAt
		change.Completed = true
	default:
		reg.Status = models.RegistrationEliminated
		change.Eliminated = true
	}
	return change, nil
}

// admitToRound reports whether one more registration fits into round, given how many
// already reached it. A nil capacity is unbounded.
func admitToRound(round models.Round, admitted int64) error {
	if round.Capacity != nil && admitted >= int64(*round.Capacity) {
		return ErrCapacityExceeded
	}
	return nil
}

// LedgerService records registrations and their per-round outcomes.
type LedgerService struct {
	DB           *gorm.DB
	Clock        clock.Clock
	Rounds       *RoundService
	Certificates *CertificateService
}

func NewLedgerService(db *gorm.DB, clk clock.Clock, rounds *RoundService, certs *CertificateService) *LedgerService {
	return &LedgerService{DB: db, Clock: clk, Rounds: rounds, Certificates: certs}
}

// Register enrolls a participant into round 0 of a published, not yet finished event.
// The capacity check and insert happen under the event row lock.
func (s *LedgerService) Register(ctx context.Context, eventID, participantID string) (*models.Registration, error) {
	eventID = strings.TrimSpace(eventID)
	participantID = strings.TrimSpace(participantID)
	if eventID == "" || participantID == "" {
		return nil, validationError("event id and participant id are required")
	}

	var reg *models.Registration
	err := inTx(ctx, s.DB, "register", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if event.AdministrativeStatus != models.AdminStatusPublished || now.After(event.EndDate) {
			return ErrEventNotOpen
		}
		if len(event.Rounds) == 0 {
			return ErrEventNotOpen
		}

		var existing int64
		if err := tx.Model(&models.Registration{}).
			Where("event_id = ? AND participant_id = ?", eventID, participantID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check registration: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyRegistered
		}

		if first := event.Rounds[0]; first.Capacity != nil {
			admitted, err := countAdmitted(tx, eventID, 0)
			if err != nil {
				return fmt.Errorf("count round 0: %w", err)
			}
			if err := admitToRound(first, admitted); err != nil {
				return err
			}
		}

		r := models.Registration{
			ID:            uuid.NewString(),
			EventID:       eventID,
			ParticipantID: participantID,
			Status:        models.RegistrationActive,
			CurrentRound:  0,
			RegisteredAt:  now,
		}
		if err := tx.Omit("RoundOutcomes").Create(&r).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("create registration: %w", err)
		}
		first := models.RoundOutcome{
			ID:             uuid.NewString(),
			RegistrationID: r.ID,
			EventID:        eventID,
			SequenceNumber: 0,
			Outcome:        models.OutcomePending,
		}
		if err := tx.Create(&first).Error; err != nil {
			return fmt.Errorf("open round 0: %w", err)
		}
		r.RoundOutcomes = []models.RoundOutcome{first}
		reg = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[LEDGER] participant %s registered for event %s", participantID, eventID)
	return reg, nil
}

// RecordOutcomeResult is the outcome of RecordOutcome. Certificate is set when the
// registration completed the final round.
type RecordOutcomeResult struct {
	Registration *models.Registration
	Certificate  *models.Certificate
	Advanced     bool
}

// RecordOutcome resolves the registration's current round. Passing the final round
// completes the registration and mints its certificate in the same transaction.
func (s *LedgerService) RecordOutcome(ctx context.Context, registrationID string, seq int, outcome models.Outcome, actor Actor) (*RecordOutcomeResult, error) {
	if registrationID == "" {
		return nil, validationError("registration id is required")
	}
	if !outcome.Resolved() {
		return nil, ErrInvalidOutcome
	}

	var res RecordOutcomeResult
	var eventID string
	err := inTx(ctx, s.DB, "record outcome", func(tx *gorm.DB) error {
		res = RecordOutcomeResult{}
		now := s.Clock.Now()

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

		var admittedNext int64
		if outcome == models.OutcomePassed && !event.IsFinalRound(seq) {
			if next, ok := event.RoundAt(seq + 1); ok && next.Capacity != nil {
				if admittedNext, err = countAdmitted(tx, event.ID, seq+1); err != nil {
					return fmt.Errorf("count round %d: %w", seq+1, err)
				}
			}
		}

		change, err := applyOutcome(reg, event, seq, outcome, admittedNext, now)
		if err != nil {
			return err
		}
		if err := s.persistChange(tx, reg, change, now); err != nil {
			return err
		}
		if change.Completed {
			cert, err := s.Certificates.issueLocked(tx, event, reg, now)
			if err != nil {
				return err
			}
			res.Certificate = cert
		}
		eventID = event.ID
		res.Registration = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[LEDGER] registration %s round %d -> %s (status=%s)", registrationID, seq, outcome, res.Registration.Status)

	// Auto-advance runs in its own transaction; the outcome is already committed.
	advanced, err := s.Rounds.AdvanceIfResolved(ctx, eventID)
	if err != nil {
		logger.Warningf("[LEDGER] auto-advance check for event %s failed: %v", eventID, err)
	}
	res.Advanced = advanced
	return &res, nil
}

func (s *LedgerService) persistChange(tx *gorm.DB, reg *models.Registration, change outcomeChange, now time.Time) error {
	if err := tx.Model(&models.RoundOutcome{}).
		Where("id = ?", change.Resolved.ID).
		Updates(map[string]interface{}{
			"outcome":     change.Resolved.Outcome,
			"resolved_at": change.Resolved.ResolvedAt,
		}).Error; err != nil {
		return fmt.Errorf("resolve round %d: %w", change.Resolved.SequenceNumber, err)
	}
	if change.Opened != nil {
		if err := tx.Create(change.Opened).Error; err != nil {
			return fmt.Errorf("open round %d: %w", change.Opened.SequenceNumber, err)
		}
	}
	if err := tx.Model(&models.Registration{}).
		Where("id = ?", reg.ID).
		Updates(map[string]interface{}{
			"status":        reg.Status,
			"current_round": reg.CurrentRound,
			"completed_at":  reg.CompletedAt,
		}).Error; err != nil {
		return fmt.Errorf("update registration: %w", err)
	}

	payload := RegistrationPayload{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		ParticipantID:  reg.ParticipantID,
		Status:         reg.Status,
		FinalRound:     change.Resolved.SequenceNumber,
	}
	switch {
	case change.Completed:
		return emit(tx, models.EventRegistrationCompleted, reg.ID, payload, now)
	case change.Eliminated:
		return emit(tx, models.EventRegistrationEliminated, reg.ID, payload, now)
	}
	return nil
}

// Get returns a registration with its outcomes.
func (s *LedgerService) Get(ctx context.Context, registrationID string) (*models.Registration, error) {
	var reg models.Registration
	if err := s.DB.WithContext(ctx).
		Preload("RoundOutcomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		First(&reg, "id = ?", registrationID).Error; err != nil {
		return nil, notFoundOr(err, ErrRegistrationNotFound, "get registration")
	}
	return &reg, nil
}

// GetForParticipant returns the participant's registration for an event.
func (s *LedgerService) GetForParticipant(ctx context.Context, eventID, participantID string) (*models.Registration, error) {
	var reg models.Registration
	if err := s.DB.WithContext(ctx).
		Preload("RoundOutcomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Where("event_id = ? AND participant_id = ?", eventID, participantID).
		First(&reg).Error; err != nil {
		return nil, notFoundOr(err, ErrRegistrationNotFound, "get registration")
	}
	return &reg, nil
}

// ListByEvent returns all registrations of an event, oldest first.
func (s *LedgerService) ListByEvent(ctx context.Context, eventID string, actor Actor) ([]models.Registration, error) {
	var event models.Event
	if err := s.DB.WithContext(ctx).Select("id", "organizer_id").First(&event, "id = ?", eventID).Error; err != nil {
		return nil, notFoundOr(err, ErrEventNotFound, "get event")
	}
	if !actor.canManage(event.OrganizerID) {
		return nil, ErrForbidden
	}
	var regs []models.Registration
	if err := s.DB.WithContext(ctx).
		Preload("RoundOutcomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Where("event_id = ?", eventID).
		Order("registered_at ASC").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}
