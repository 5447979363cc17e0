// workers/participant_sync_worker.go
package workers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"event-platform/models"

	"github.com/google/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile is one entry of the profile service's change feed.
type RemoteProfile struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// displayName joins first and last name, falling back to the username.
func (p RemoteProfile) displayName() string {
	var parts []string
	for _, s := range []*string{p.FirstName, p.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	if len(parts) == 0 {
		return p.Username
	}
	return strings.Join(parts, " ")
}

// ParticipantSyncWorker mirrors profile snapshots into the participants table so
// certificate verification can show a name without calling the profile service.
type ParticipantSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewParticipantSyncWorker(db *gorm.DB, client *http.Client, baseURL, serviceToken string, interval time.Duration) *ParticipantSyncWorker {
	return &ParticipantSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: "/api/v1/public/profiles",
		serviceToken: serviceToken,
		httpClient:   client,
	}
}

// Run backfills once and then syncs incrementally until ctx is done.
func (w *ParticipantSyncWorker) Run(ctx context.Context) {
	logger.Infof("[SYNC] starting participant sync from %s", w.baseURL)
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		logger.Warningf("[SYNC] initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx, w.lastSyncTime(ctx)); err != nil {
				logger.Errorf("[SYNC] sync batch failed: %v", err)
			}
		case <-ctx.Done():
			logger.Info("[SYNC] participant sync stopped")
			return
		}
	}
}

// lastSyncTime is the newest snapshot we hold, or the epoch when the table is empty.
func (w *ParticipantSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var last sql.NullTime
	err := w.db.WithContext(ctx).Unscoped().Model(&models.Participant{}).
		Select("MAX(updated_at)").
		Row().Scan(&last)
	if err != nil || !last.Valid {
		return time.Unix(0, 0)
	}
	return last.Time
}

func (w *ParticipantSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call profile service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode profile changes: %w", err)
	}
	return out.Users, nil
}

// SyncOnce pulls changes since the given time and upserts them. It returns how many rows
// were written; one bad row does not abort the batch.
func (w *ParticipantSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	var upserted, failed int
	for _, p := range profiles {
		if p.ExternalID == "" {
			failed++
			continue
		}
		local := models.Participant{
			ExternalUserID:    p.ExternalID,
			Username:          p.Username,
			DisplayName:       p.displayName(),
			Email:             p.Email,
			ProfilePictureURL: p.ProfilePictureURL,
			CreatedAt:         p.CreatedAt,
			UpdatedAt:         p.UpdatedAt,
		}
		if p.AccountStatus == "deactivated" || p.AccountStatus == "deleted" {
			local.DeletedAt = gorm.DeletedAt{Time: p.UpdatedAt, Valid: true}
		}

		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "email", "profile_picture_url", "updated_at", "deleted_at",
			}),
		}).Create(&local).Error
		if err != nil {
			failed++
			logger.Warningf("[SYNC] failed to upsert participant %q: %v", p.ExternalID, err)
			continue
		}
		upserted++
	}
	logger.Infof("[SYNC] synced %d participant(s) (%d upserted, %d failed)", len(profiles), upserted, failed)
	return upserted, nil
}
