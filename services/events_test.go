package services

import (
	"errors"
	"testing"
	"time"
)

func TestCreateEventInputValidate(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rounds := []RoundInput{{Name: "Qualifier"}}

	cases := []struct {
		name    string
		in      CreateEventInput
		wantErr bool
	}{
		{"valid", CreateEventInput{Name: "Olympiad", StartDate: at, EndDate: at.Add(time.Second), Rounds: rounds}, false},
		{"equal dates", CreateEventInput{Name: "Olympiad", StartDate: at, EndDate: at, Rounds: rounds}, true},
		{"end before start", CreateEventInput{Name: "Olympiad", StartDate: at, EndDate: at.Add(-time.Hour), Rounds: rounds}, true},
		{"blank name", CreateEventInput{Name: "  ", StartDate: at, EndDate: at.Add(time.Hour), Rounds: rounds}, true},
		{"no rounds", CreateEventInput{Name: "Olympiad", StartDate: at, EndDate: at.Add(time.Hour)}, true},
		{"zero capacity", CreateEventInput{Name: "Olympiad", StartDate: at, EndDate: at.Add(time.Hour), Rounds: []RoundInput{{Capacity: intPtr(0)}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.validate()
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want a validation error", err)
			}
		})
	}
}

func TestEventSlug(t *testing.T) {
	if got := eventSlug("Regional Olympiad 2025", "8c1f0a2b-0000"); got != "regional-olympiad-2025-8c1f0a2b" {
		t.Fatalf("eventSlug = %q", got)
	}
	if got := eventSlug("!!!", "8c1f0a2b-0000"); got != "event-8c1f0a2b" {
		t.Fatalf("eventSlug(punctuation) = %q", got)
	}
}
