package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"event-platform/models"
	"event-platform/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeManifests struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeManifests) PutJSON(_ context.Context, key string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, body)
	return "https://cdn.example/" + key, nil
}

func newRelay(t *testing.T, manifests ManifestStore) (*OutboxRelay, *redis.PubSub) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(context.Background(), DomainEventsChannel)
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return NewOutboxRelay(nil, rdb, manifests, time.Second), sub
}

func receive(t *testing.T, sub *redis.PubSub) RelayMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var out RelayMessage
	if err := json.Unmarshal([]byte(msg.Payload), &out); err != nil {
		t.Fatalf("decode %s: %v", msg.Payload, err)
	}
	return out
}

func certificateEvent(t *testing.T, number string) *models.DomainEvent {
	t.Helper()
	body, err := json.Marshal(services.CertificatePayload{
		CertificateID:     "cert-1",
		CertificateNumber: number,
		EventID:           "evt-1",
		ParticipantID:     "p-1",
		IssuedDate:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &models.DomainEvent{
		ID:          "de-1",
		Seq:         7,
		Type:        models.EventCertificateIssued,
		AggregateID: "cert-1",
		Payload:     body,
		CreatedAt:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestDeliverPublishesEnvelope(t *testing.T) {
	relay, sub := newRelay(t, nil)
	ev := &models.DomainEvent{
		ID:          "de-2",
		Seq:         3,
		Type:        models.EventRoundAdvanced,
		AggregateID: "evt-1",
		Payload:     []byte(`{"event_id":"evt-1","from_round":0,"to_round":1}`),
	}
	if err := relay.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got := receive(t, sub)
	if got.ID != "de-2" || got.Seq != 3 || got.Type != models.EventRoundAdvanced || got.AggregateID != "evt-1" {
		t.Fatalf("unexpected envelope %+v", got)
	}
	var payload services.RoundChangedPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil || payload.ToRound != 1 {
		t.Fatalf("payload = %s (%v)", got.Payload, err)
	}
}

func TestDeliverUploadsCertificateManifest(t *testing.T) {
	store := &fakeManifests{}
	relay, sub := newRelay(t, store)

	if err := relay.Deliver(context.Background(), certificateEvent(t, "EVT-evt-1-000001")); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(store.keys) != 1 || store.keys[0] != "certificates/EVT-evt-1-000001.json" {
		t.Fatalf("manifest keys = %v", store.keys)
	}
	if got := receive(t, sub); got.Type != models.EventCertificateIssued {
		t.Fatalf("published %s", got.Type)
	}
}

func TestDeliverHoldsNotificationWhenUploadFails(t *testing.T) {
	store := &fakeManifests{err: errors.New("bucket unavailable")}
	relay, sub := newRelay(t, store)

	if err := relay.Deliver(context.Background(), certificateEvent(t, "EVT-evt-1-000001")); err == nil {
		t.Fatalf("Deliver succeeded despite upload failure")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if msg, err := sub.ReceiveMessage(ctx); err == nil {
		t.Fatalf("notification published before manifest: %s", msg.Payload)
	}
}

func TestDeliverRejectsCertificateWithoutNumber(t *testing.T) {
	relay, _ := newRelay(t, &fakeManifests{})
	if err := relay.Deliver(context.Background(), certificateEvent(t, "")); err == nil {
		t.Fatalf("expected error for payload without certificate number")
	}
}

func TestManifestKey(t *testing.T) {
	if got := ManifestKey("EVT-a-000010"); got != "certificates/EVT-a-000010.json" {
		t.Fatalf("ManifestKey = %q", got)
	}
}
