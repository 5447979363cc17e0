package services

import (
	"time"

	"event-platform/models"
)

// StatusLabel is the display status of an event. It is derived, never stored.
type StatusLabel string

const (
	StatusCancelled StatusLabel = "Cancelled"
	StatusDraft     StatusLabel = "Draft"
	StatusUpcoming  StatusLabel = "Upcoming"
	StatusOngoing   StatusLabel = "Ongoing"
	StatusCompleted StatusLabel = "Completed"
)

// StatusView pairs the label with the presentation class the UI keys its badges on.
type StatusView struct {
	Label StatusLabel `json:"label"`
	Class string      `json:"class"`
}

var statusClasses = map[StatusLabel]string{
	StatusCancelled: "status-cancelled",
	StatusDraft:     "status-draft",
	StatusUpcoming:  "status-upcoming",
	StatusOngoing:   "status-ongoing",
	StatusCompleted: "status-completed",
}

// DeriveStatus maps an event's stored fields and the current time onto its display status.
// Rules are checked in priority order; the first match wins. Both ends of the
// ongoing window are inclusive.
func DeriveStatus(event *models.Event, now time.Time) StatusView {
	var label StatusLabel
	switch {
	case event.AdministrativeStatus == models.AdminStatusCancelled:
		label = StatusCancelled
	case event.AdministrativeStatus == models.AdminStatusDraft:
		label = StatusDraft
	case now.Before(event.StartDate):
		label = StatusUpcoming
	case !now.After(event.EndDate):
		label = StatusOngoing
	default:
		label = StatusCompleted
	}
	return StatusView{Label: label, Class: statusClasses[label]}
}
