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
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// RoundInput describes one round of a new event, in order.
type RoundInput struct {
	Name     string `json:"name"`
	Capacity *int   `json:"capacity,omitempty"`
}

// CreateEventInput is the organizer's request to create an event. New events start as drafts.
type CreateEventInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	Rounds      []RoundInput `json:"rounds"`
}

func (in CreateEventInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("name is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return validationError("start_date and end_date are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return validationError("end_date must be after start_date")
	}
	if len(in.Rounds) == 0 {
		return validationError("at least one round is required")
	}
	for i, r := range in.Rounds {
		if r.Capacity != nil && *r.Capacity < 1 {
			return validationError("round %d capacity must be positive", i)
		}
	}
	return nil
}

// EventView is an event as returned to callers, with its derived status.
type EventView struct {
	models.Event
	Status StatusView `json:"status"`
}

// EventService manages the administrative lifecycle of events.
type EventService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewEventService(db *gorm.DB, clk clock.Clock) *EventService {
	return &EventService{DB: db, Clock: clk}
}

// View attaches the status derived at the service clock's current time.
func (s *EventService) View(event *models.Event) EventView {
	return EventView{Event: *event, Status: DeriveStatus(event, s.Clock.Now())}
}

// eventSlug makes a readable, collision-resistant slug from the event name.
func eventSlug(name, id string) string {
	base := slug.Make(name)
	if base == "" {
		base = "event"
	}
	return base + "-" + id[:8]
}

// Create stores a draft event with rounds numbered 0..n-1 in the given order.
func (s *EventService) Create(ctx context.Context, in CreateEventInput, actor Actor) (*models.Event, error) {
	if !actor.CanOrganize() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	event := models.Event{
		ID:                   id,
		Name:                 strings.TrimSpace(in.Name),
		Slug:                 eventSlug(in.Name, id),
		Description:          in.Description,
		OrganizerID:          actor.ID,
		StartDate:            in.StartDate.UTC(),
		EndDate:              in.EndDate.UTC(),
		AdministrativeStatus: models.AdminStatusDraft,
	}
	for i, r := range in.Rounds {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = fmt.Sprintf("Round %d", i+1)
		}
		event.Rounds = append(event.Rounds, models.Round{
			ID:              uuid.NewString(),
			EventID:         id,
			SequenceNumber:  i,
			Name:            name,
			EligibilityRule: models.EligibilityPassedPrevious,
			Capacity:        r.Capacity,
		})
	}

	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	logger.Infof("[EVENTS] %s created event %s (%q, %d rounds)", actor.ID, event.ID, event.Name, len(event.Rounds))
	return &event, nil
}

// Get returns an event with its rounds in sequence order.
func (s *EventService) Get(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	if err := s.DB.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		First(&event, "id = ?", eventID).Error; err != nil {
		return nil, notFoundOr(err, ErrEventNotFound, "get event")
	}
	return &event, nil
}

// GetVisible returns the event to a public caller. Drafts are only visible to whoever may
// manage them; anyone else sees not found.
func (s *EventService) GetVisible(ctx context.Context, eventID string, actor Actor) (*models.Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.AdministrativeStatus == models.AdminStatusDraft && !actor.canManage(event.OrganizerID) {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// ListPublished returns every published event ordered by start date.
func (s *EventService) ListPublished(ctx context.Context) ([]models.Event, error) {
	return s.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("administrative_status = ?", models.AdminStatusPublished)
	})
}

// ListManaged returns the events the actor may manage: all of them for an admin,
// the organizer's own otherwise.
func (s *EventService) ListManaged(ctx context.Context, actor Actor) ([]models.Event, error) {
	if !actor.CanOrganize() {
		return nil, ErrForbidden
	}
	return s.list(ctx, func(db *gorm.DB) *gorm.DB {
		if actor.Has(RoleAdmin) {
			return db
		}
		return db.Where("organizer_id = ?", actor.ID)
	})
}

func (s *EventService) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.Event, error) {
	var events []models.Event
	if err := s.DB.WithContext(ctx).
		Scopes(scope).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Order("start_date ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Publish moves a draft event to published. Publishing an already published event is a no-op.
func (s *EventService) Publish(ctx context.Context, eventID string, actor Actor) (*models.Event, error) {
	return s.transition(ctx, eventID, actor, "publish event", models.EventPublished, func(event *models.Event, now time.Time) (bool, error) {
		switch event.AdministrativeStatus {
		case models.AdminStatusPublished:
			return false, nil
		case models.AdminStatusDraft:
		default:
			return false, ErrEventNotPublishable
		}
		if len(event.Rounds) == 0 {
			return false, ErrEventNotPublishable
		}
		event.AdministrativeStatus = models.AdminStatusPublished
		event.PublishedAt = &now
		return true, nil
	})
}

// Cancel withdraws an event that has not yet ended. Cancelled events stay cancelled.
func (s *EventService) Cancel(ctx context.Context, eventID string, actor Actor) (*models.Event, error) {
	return s.transition(ctx, eventID, actor, "cancel event", models.EventCancelled, func(event *models.Event, now time.Time) (bool, error) {
		if event.AdministrativeStatus == models.AdminStatusCancelled || now.After(event.EndDate) {
			return false, ErrEventNotCancellable
		}
		event.AdministrativeStatus = models.AdminStatusCancelled
		event.CancelledAt = &now
		return true, nil
	})
}

// transition applies an administrative status change under the event lock and records it
// in the outbox as typ. apply reports whether anything changed.
func (s *EventService) transition(ctx context.Context, eventID string, actor Actor, op string, typ models.DomainEventType, apply func(*models.Event, time.Time) (bool, error)) (*models.Event, error) {
	if eventID == "" {
		return nil, validationError("event id is required")
	}
	var result *models.Event
	err := inTx(ctx, s.DB, op, func(tx *gorm.DB) error {
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if !actor.canManage(event.OrganizerID) {
			return ErrForbidden
		}
		now := s.Clock.Now()
		changed, err := apply(event, now)
		if err != nil {
			return err
		}
		result = event
		if !changed {
			return nil
		}
		if err := tx.Model(&models.Event{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"administrative_status": event.AdministrativeStatus,
				"published_at":          event.PublishedAt,
				"cancelled_at":          event.CancelledAt,
			}).Error; err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return emit(tx, typ, event.ID, EventLifecyclePayload{
			EventID: event.ID,
			Status:  event.AdministrativeStatus,
			ActorID: actor.ID,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[EVENTS] %s: event %s is %s", op, eventID, result.AdministrativeStatus)
	return result, nil
}
