package services

import (
	"context"
	"fmt"

	"event-platform/clock"
	"event-platform/models"

	"github.com/google/logger"
	"gorm.io/gorm"
)

// AdvanceRound moves the event to its next round. It fails with ErrNoFurtherRounds
// when the current round is the last one.
func AdvanceRound(event models.Event) (models.Event, error) {
	if event.CurrentRoundIndex+1 >= len(event.Rounds) {
		return event, ErrNoFurtherRounds
	}
	event.CurrentRoundIndex++
	return event, nil
}

// RollbackRound moves the event back one round. It fails with ErrAtInitialRound at index 0.
func RollbackRound(event models.Event) (models.Event, error) {
	if event.CurrentRoundIndex <= 0 {
		return event, ErrAtInitialRound
	}
	event.CurrentRoundIndex--
	return event, nil
}

// advanceFrom advances the event only while it is still at fromRound. An event that has
// already left fromRound is returned unchanged with moved false.
func advanceFrom(event models.Event, fromRound int) (next models.Event, moved bool, err error) {
	if event.CurrentRoundIndex != fromRound {
		return event, false, nil
	}
	if next, err = AdvanceRound(event); err != nil {
		return event, false, err
	}
	return next, true, nil
}

// RoundService persists round movements. Every call holds the event row lock for
// its whole transaction, so advances and registrations on one event are serialized.
type RoundService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewRoundService(db *gorm.DB, clk clock.Clock) *RoundService {
	return &RoundService{DB: db, Clock: clk}
}

// Advance moves the event from fromRound to fromRound+1. If the event has already left
// fromRound (a concurrent advance won), the call is a no-op and returns the current state.
func (s *RoundService) Advance(ctx context.Context, eventID string, fromRound int, actor Actor) (*models.Event, bool, error) {
	if eventID == "" {
		return nil, false, validationError("event id is required")
	}
	var result *models.Event
	var advanced bool
	err := inTx(ctx, s.DB, "advance round", func(tx *gorm.DB) error {
		advanced = false
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if !actor.canManage(event.OrganizerID) {
			return ErrForbidden
		}
		if _, moved, err := advanceFrom(*event, fromRound); err != nil || !moved {
			result = event
			return err
		}
		next, err := s.advanceLocked(tx, event, actor.ID, false)
		if err != nil {
			return err
		}
		result, advanced = next, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, advanced, nil
}

// Rollback moves the event back one round. Organizer or admin only.
func (s *RoundService) Rollback(ctx context.Context, eventID string, actor Actor) (*models.Event, error) {
	if eventID == "" {
		return nil, validationError("event id is required")
	}
	var result *models.Event
	err := inTx(ctx, s.DB, "rollback round", func(tx *gorm.DB) error {
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if !actor.canManage(event.OrganizerID) {
			return ErrForbidden
		}
		prev, err := RollbackRound(*event)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Event{}).
			Where("id = ?", event.ID).
			Update("current_round_index", prev.CurrentRoundIndex).Error; err != nil {
			return fmt.Errorf("rollback round: %w", err)
		}
		if err := emit(tx, models.EventRoundRolledBack, event.ID, RoundChangedPayload{
			EventID:     event.ID,
			FromRound:   event.CurrentRoundIndex,
			ToRound:     prev.CurrentRoundIndex,
			TriggeredBy: actor.ID,
		}, s.Clock.Now()); err != nil {
			return err
		}
		result = &prev
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[ROUNDS] event %s rolled back to round %d by %s", eventID, result.CurrentRoundIndex, actor.ID)
	return result, nil
}

// AdvanceIfResolved advances the event when nobody in its current round is still pending.
// A round nobody reached is not considered resolved.
func (s *RoundService) AdvanceIfResolved(ctx context.Context, eventID string) (bool, error) {
	var advanced bool
	err := inTx(ctx, s.DB, "auto advance", func(tx *gorm.DB) error {
		advanced = false
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if event.AdministrativeStatus != models.AdminStatusPublished {
			return nil
		}
		if event.CurrentRoundIndex+1 >= len(event.Rounds) {
			return nil
		}
		resolved, err := roundResolved(tx, event.ID, event.CurrentRoundIndex)
		if err != nil || !resolved {
			return err
		}
		if _, err := s.advanceLocked(tx, event, "system", true); err != nil {
			return err
		}
		advanced = true
		return nil
	})
	return advanced, err
}

func (s *RoundService) advanceLocked(tx *gorm.DB, event *models.Event, actorID string, automatic bool) (*models.Event, error) {
	next, err := AdvanceRound(*event)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("current_round_index", next.CurrentRoundIndex).Error; err != nil {
		return nil, fmt.Errorf("advance round: %w", err)
	}
	if err := emit(tx, models.EventRoundAdvanced, event.ID, RoundChangedPayload{
		EventID:     event.ID,
		FromRound:   event.CurrentRoundIndex,
		ToRound:     next.CurrentRoundIndex,
		TriggeredBy: actorID,
		Automatic:   automatic,
	}, s.Clock.Now()); err != nil {
		return nil, err
	}
	logger.Infof("[ROUNDS] event %s advanced %d -> %d (automatic=%t)", event.ID, event.CurrentRoundIndex, next.CurrentRoundIndex, automatic)
	return &next, nil
}

// roundResolved reports whether at least one registration reached seq and none of them
// is still pending there.
func roundResolved(tx *gorm.DB, eventID string, seq int) (bool, error) {
	var counts struct {
		Total   int64
		Pending int64
	}
	err := tx.Model(&models.RoundOutcome{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE outcome = ?) AS pending", models.OutcomePending).
		Where("event_id = ? AND sequence_number = ?", eventID, seq).
		Scan(&counts).Error
	if err != nil {
		return false, fmt.Errorf("count round outcomes: %w", err)
	}
	return counts.Total > 0 && counts.Pending == 0, nil
}

// PendingAdvanceCandidates lists published events that still have rounds ahead of them.
// The sweep job checks each one with AdvanceIfResolved.
func (s *RoundService) PendingAdvanceCandidates(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Raw(`
		SELECT e.id
		FROM events e
		WHERE e.administrative_status = ?
		  AND e.current_round_index + 1 < (SELECT COUNT(*) FROM event_rounds r WHERE r.event_id = e.id)`,
		models.AdminStatusPublished).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("list advance candidates: %w", err)
	}
	return ids, nil
}
