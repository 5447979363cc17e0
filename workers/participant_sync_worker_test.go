package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-platform/models"
	"event-platform/testutil"
)

func strPtr(s string) *string { return &s }

func TestRemoteProfileDisplayName(t *testing.T) {
	cases := []struct {
		p    RemoteProfile
		want string
	}{
		{RemoteProfile{Username: "ada", FirstName: strPtr("Ada"), LastName: strPtr("Lovelace")}, "Ada Lovelace"},
		{RemoteProfile{Username: "ada", FirstName: strPtr(" Ada ")}, "Ada"},
		{RemoteProfile{Username: "ada", FirstName: strPtr(""), LastName: strPtr("  ")}, "ada"},
		{RemoteProfile{Username: "ada"}, "ada"},
	}
	for _, tc := range cases {
		if got := tc.p.displayName(); got != tc.want {
			t.Fatalf("displayName(%+v) = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func profileServer(t *testing.T, profiles []RemoteProfile, gotSince *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/public/profiles" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Service-Token") != "svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if gotSince != nil {
			*gotSince = r.URL.Query().Get("since")
		}
		_ = json.NewEncoder(w).Encode(profileChangesResponse{Users: profiles})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSendsTokenAndSince(t *testing.T) {
	var since string
	srv := profileServer(t, []RemoteProfile{{ExternalID: "u-1", Username: "ada"}}, &since)
	w := NewParticipantSyncWorker(nil, srv.Client(), srv.URL, "svc-token", time.Minute)

	from := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	got, err := w.fetch(context.Background(), from)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "u-1" {
		t.Fatalf("profiles = %+v", got)
	}
	if since != "2025-03-01T09:00:00Z" {
		t.Fatalf("since = %q", since)
	}
}

func TestFetchReportsServiceErrors(t *testing.T) {
	srv := profileServer(t, nil, nil)
	w := NewParticipantSyncWorker(nil, srv.Client(), srv.URL, "wrong", time.Minute)
	if _, err := w.fetch(context.Background(), time.Time{}); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestSyncOnceUpsertsAndDeactivates(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	srv := profileServer(t, []RemoteProfile{
		{ExternalID: "u-1", Username: "ada", FirstName: strPtr("Ada"), AccountStatus: "active", CreatedAt: t0, UpdatedAt: t0},
		{ExternalID: "u-2", Username: "bob", AccountStatus: "active", CreatedAt: t0, UpdatedAt: t0},
		{Username: "no-id"},
	}, nil)
	w := NewParticipantSyncWorker(db, srv.Client(), srv.URL, "svc-token", time.Minute)

	n, err := w.SyncOnce(ctx, time.Time{})
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("upserted %d, want 2", n)
	}
	if got := w.lastSyncTime(ctx); !got.Equal(t0) {
		t.Fatalf("lastSyncTime = %s", got)
	}

	t1 := t0.Add(time.Hour)
	srv2 := profileServer(t, []RemoteProfile{
		{ExternalID: "u-1", Username: "ada", FirstName: strPtr("Ada"), LastName: strPtr("Lovelace"), AccountStatus: "active", CreatedAt: t0, UpdatedAt: t1},
		{ExternalID: "u-2", Username: "bob", AccountStatus: "deleted", CreatedAt: t0, UpdatedAt: t1},
	}, nil)
	w2 := NewParticipantSyncWorker(db, srv2.Client(), srv2.URL, "svc-token", time.Minute)
	if _, err := w2.SyncOnce(ctx, t0); err != nil {
		t.Fatalf("second SyncOnce: %v", err)
	}

	var ada models.Participant
	if err := db.First(&ada, "external_user_id = ?", "u-1").Error; err != nil {
		t.Fatalf("load u-1: %v", err)
	}
	if ada.DisplayName != "Ada Lovelace" || ada.PublicName() != "Ada Lovelace" {
		t.Fatalf("display name = %q", ada.DisplayName)
	}

	var visible int64
	db.Model(&models.Participant{}).Where("external_user_id = ?", "u-2").Count(&visible)
	if visible != 0 {
		t.Fatalf("deleted profile still visible")
	}
	if got := w2.lastSyncTime(ctx); !got.Equal(t1) {
		t.Fatalf("lastSyncTime after deletes = %s, want %s", got, t1)
	}
}
