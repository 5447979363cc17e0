package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant is a local snapshot of the profile data needed to present certificates.
// Owned by the profile service; populated by the participant sync worker.
type Participant struct {
	ID                string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID    string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username          string    `gorm:"index;not null" json:"username"`
	DisplayName       string    `json:"display_name"`
	Email             string    `json:"-"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PublicName is the name printed on certificates.
func (p *Participant) PublicName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
