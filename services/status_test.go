package services

import (
	"testing"
	"time"

	"event-platform/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDeriveStatus(t *testing.T) {
	start, end := day("2025-03-01"), day("2025-03-03")

	cases := []struct {
		name   string
		status models.AdministrativeStatus
		now    time.Time
		want   StatusLabel
	}{
		{"published mid-window", models.AdminStatusPublished, day("2025-03-02"), StatusOngoing},
		{"cancelled after end", models.AdminStatusCancelled, day("2025-03-10"), StatusCancelled},
		{"cancelled mid-window", models.AdminStatusCancelled, day("2025-03-02"), StatusCancelled},
		{"cancelled before start", models.AdminStatusCancelled, day("2025-02-01"), StatusCancelled},
		{"draft mid-window", models.AdminStatusDraft, day("2025-03-02"), StatusDraft},
		{"draft after end", models.AdminStatusDraft, day("2025-04-01"), StatusDraft},
		{"before start", models.AdminStatusPublished, start.Add(-time.Nanosecond), StatusUpcoming},
		{"exactly start", models.AdminStatusPublished, start, StatusOngoing},
		{"exactly end", models.AdminStatusPublished, end, StatusOngoing},
		{"after end", models.AdminStatusPublished, end.Add(time.Nanosecond), StatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := &models.Event{AdministrativeStatus: tc.status, StartDate: start, EndDate: end}
			got := DeriveStatus(event, tc.now)
			if got.Label != tc.want {
				t.Fatalf("DeriveStatus = %s, want %s", got.Label, tc.want)
			}
			if got.Class != statusClasses[tc.want] || got.Class == "" {
				t.Fatalf("class = %q, want %q", got.Class, statusClasses[tc.want])
			}
		})
	}
}

func TestDeriveStatusDoesNotMutate(t *testing.T) {
	event := &models.Event{
		AdministrativeStatus: models.AdminStatusPublished,
		StartDate:            day("2025-03-01"),
		EndDate:              day("2025-03-03"),
	}
	before := *event
	DeriveStatus(event, day("2025-03-05"))
	if event.AdministrativeStatus != before.AdministrativeStatus || !event.EndDate.Equal(before.EndDate) {
		t.Fatalf("event changed: %+v", event)
	}
}
