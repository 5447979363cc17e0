package services

import (
	"context"
	"errors"
	"time"

	"event-platform/models"

	"github.com/google/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxTxAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

// inTx runs fn in a single transaction and retries it a bounded number of times when
// Postgres reports a lock or serialization conflict. fn must be safe to re-run: it
// re-reads everything it needs from tx.
func inTx(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	backoff := retryBackoff
	for attempt := 1; ; attempt++ {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) && !errors.Is(err, ErrConcurrency) {
			return err
		}
		if attempt == maxTxAttempts {
			logger.Warningf("[TX] %s gave up after %d attempts: %v", op, attempt, err)
			return ErrConcurrency
		}
		logger.Infof("[TX] %s conflict on attempt %d, retrying in %s: %v", op, attempt, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// lockEvent loads the event row with FOR UPDATE and attaches its rounds in sequence order.
// Every mutation on an event or its registrations takes this lock first.
func lockEvent(tx *gorm.DB, eventID string) (*models.Event, error) {
	var event models.Event
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", eventID).
		First(&event).Error; err != nil {
		return nil, notFoundOr(err, ErrEventNotFound, "lock event")
	}
	if err := tx.Where("event_id = ?", eventID).
		Order("sequence_number ASC").
		Find(&event.Rounds).Error; err != nil {
		return nil, notFoundOr(err, ErrEventNotFound, "load rounds")
	}
	return &event, nil
}

// lockRegistration loads the registration row with FOR UPDATE plus its outcomes.
func lockRegistration(tx *gorm.DB, registrationID string) (*models.Registration, error) {
	var reg models.Registration
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", registrationID).
		First(&reg).Error; err != nil {
		return nil, notFoundOr(err, ErrRegistrationNotFound, "lock registration")
	}
	if err := loadOutcomes(tx, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func loadOutcomes(db *gorm.DB, reg *models.Registration) error {
	if err := db.Where("registration_id = ?", reg.ID).
		Order("sequence_number ASC").
		Find(&reg.RoundOutcomes).Error; err != nil {
		return notFoundOr(err, ErrRegistrationNotFound, "load outcomes")
	}
	return nil
}

// countAdmitted returns how many registrations reached round seq of the event.
func countAdmitted(tx *gorm.DB, eventID string, seq int) (int64, error) {
	var n int64
	err := tx.Model(&models.RoundOutcome{}).
		Where("event_id = ? AND sequence_number = ?", eventID, seq).
		Count(&n).Error
	return n, err
}
