// workers/outbox_relay.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"event-platform/models"
	"event-platform/services"

	"github.com/google/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DomainEventsChannel is the Redis pub/sub channel the notification layer subscribes to.
const DomainEventsChannel = "events.domain"

const relayBatchSize = 100

// ManifestStore receives the certificate manifest handed to the rendering service.
type ManifestStore interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// RelayMessage is the envelope published for every outbox row.
type RelayMessage struct {
	ID          string                 `json:"id"`
	Seq         int64                  `json:"seq"`
	Type        models.DomainEventType `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	Payload     json.RawMessage        `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}

// OutboxRelay drains unpublished domain events to Redis in creation order.
type OutboxRelay struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Manifests ManifestStore // optional
	Interval  time.Duration
}

func NewOutboxRelay(db *gorm.DB, rdb *redis.Client, manifests ManifestStore, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{DB: db, Redis: rdb, Manifests: manifests, Interval: interval}
}

// Run polls the outbox until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) {
	logger.Infof("[RELAY] starting outbox relay (every %s) -> %s", r.Interval, DomainEventsChannel)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[RELAY] outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.RelayBatch(ctx)
			if err != nil {
				logger.Errorf("[RELAY] batch failed after %d event(s): %v", n, err)
				continue
			}
			if n > 0 {
				logger.Infof("[RELAY] published %d domain event(s)", n)
			}
		}
	}
}

// RelayBatch publishes up to one batch of pending events in outbox order. Rows are locked with SKIP LOCKED
// so several service instances can relay side by side. The batch stops at the first
// failure to keep per-aggregate ordering; the failed row is retried next tick.
func (r *OutboxRelay) RelayBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.DomainEvent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("published_at IS NULL").
			Order("seq ASC").
			Limit(relayBatchSize).
			Find(&pending).Error; err != nil {
			return fmt.Errorf("load outbox: %w", err)
		}

		for i := range pending {
			ev := &pending[i]
			if err := r.Deliver(ctx, ev); err != nil {
				if uerr := tx.Model(&models.DomainEvent{}).
					Where("id = ?", ev.ID).
					Update("attempts", gorm.Expr("attempts + 1")).Error; uerr != nil {
					return fmt.Errorf("record attempt for %s: %w", ev.ID, uerr)
				}
				logger.Warningf("[RELAY] %s %s failed (attempt %d): %v", ev.Type, ev.ID, ev.Attempts+1, err)
				return nil
			}
			now := time.Now().UTC()
			if err := tx.Model(&models.DomainEvent{}).
				Where("id = ?", ev.ID).
				Update("published_at", now).Error; err != nil {
				return fmt.Errorf("mark %s published: %w", ev.ID, err)
			}
			published++
		}
		return nil
	})
	return published, err
}

// Deliver hands one event to its consumers. Certificate manifests are uploaded before the
// notification goes out, so subscribers can fetch the artifact as soon as they hear of it.
func (r *OutboxRelay) Deliver(ctx context.Context, ev *models.DomainEvent) error {
	if ev.Type == models.EventCertificateIssued && r.Manifests != nil {
		if err := r.uploadManifest(ctx, ev); err != nil {
			return err
		}
	}

	msg, err := json.Marshal(RelayMessage{
		ID:          ev.ID,
		Seq:         ev.Seq,
		Type:        ev.Type,
		AggregateID: ev.AggregateID,
		Payload:     json.RawMessage(ev.Payload),
		CreatedAt:   ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.Redis.Publish(ctx, DomainEventsChannel, msg).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// ManifestKey is the object key of a certificate's manifest.
func ManifestKey(certificateNumber string) string {
	return "certificates/" + certificateNumber + ".json"
}

func (r *OutboxRelay) uploadManifest(ctx context.Context, ev *models.DomainEvent) error {
	var cert services.CertificatePayload
	if err := json.Unmarshal(ev.Payload, &cert); err != nil {
		return fmt.Errorf("decode certificate payload: %w", err)
	}
	if cert.CertificateNumber == "" {
		return fmt.Errorf("certificate payload %s has no number", ev.ID)
	}
	url, err := r.Manifests.PutJSON(ctx, ManifestKey(cert.CertificateNumber), ev.Payload)
	if err != nil {
		return err
	}
	logger.Infof("[RELAY] manifest for %s uploaded to %s", cert.CertificateNumber, url)
	return nil
}
