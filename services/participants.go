package services

import (
	"context"
	"fmt"
	"strings"

	"event-platform/models"

	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 100
)

// ParticipantSummary is the searchable view of a synced profile. ExternalUserID is the
// identifier registrations and certificates refer to.
type ParticipantSummary struct {
	ExternalUserID string  `json:"external_user_id"`
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name"`
	PictureURL     *string `json:"profile_picture_url,omitempty"`
}

// ParticipantService reads the local participant snapshots.
type ParticipantService struct {
	DB *gorm.DB
}

func NewParticipantService(db *gorm.DB) *ParticipantService {
	return &ParticipantService{DB: db}
}

// Search matches query against username and display name, case-insensitively.
// An empty query lists the first participants by username.
func (s *ParticipantService) Search(ctx context.Context, query string, limit int, actor Actor) ([]ParticipantSummary, error) {
	if !actor.CanOrganize() {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	db := s.DB.WithContext(ctx).Model(&models.Participant{}).Order("username ASC").Limit(limit)
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		term := "%" + q + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", term, term)
	}

	var participants []models.Participant
	if err := db.Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("search participants: %w", err)
	}

	out := make([]ParticipantSummary, len(participants))
	for i, p := range participants {
		out[i] = ParticipantSummary{
			ExternalUserID: p.ExternalUserID,
			Username:       p.Username,
			DisplayName:    p.PublicName(),
			PictureURL:     p.ProfilePictureURL,
		}
	}
	return out, nil
}
