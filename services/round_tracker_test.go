package services

import (
	"errors"
	"testing"

	"event-platform/models"
)

func eventWithRounds(n, current int) models.Event {
	e := models.Event{ID: "evt", CurrentRoundIndex: current}
	for i := 0; i < n; i++ {
		e.Rounds = append(e.Rounds, models.Round{SequenceNumber: i})
	}
	return e
}

func TestAdvanceRound(t *testing.T) {
	next, err := AdvanceRound(eventWithRounds(3, 0))
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if next.CurrentRoundIndex != 1 {
		t.Fatalf("index = %d, want 1", next.CurrentRoundIndex)
	}

	_, err = AdvanceRound(eventWithRounds(3, 2))
	if !errors.Is(err, ErrNoFurtherRounds) {
		t.Fatalf("advance at final round: got %v, want ErrNoFurtherRounds", err)
	}

	_, err = AdvanceRound(eventWithRounds(1, 0))
	if !errors.Is(err, ErrNoFurtherRounds) {
		t.Fatalf("advance single-round event: got %v, want ErrNoFurtherRounds", err)
	}
}

func TestRollbackRound(t *testing.T) {
	prev, err := RollbackRound(eventWithRounds(3, 2))
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if prev.CurrentRoundIndex != 1 {
		t.Fatalf("index = %d, want 1", prev.CurrentRoundIndex)
	}

	_, err = RollbackRound(eventWithRounds(3, 0))
	if !errors.Is(err, ErrAtInitialRound) {
		t.Fatalf("rollback at 0: got %v, want ErrAtInitialRound", err)
	}
}

func TestAdvanceRoundLeavesInputUntouched(t *testing.T) {
	in := eventWithRounds(2, 0)
	if _, err := AdvanceRound(in); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if in.CurrentRoundIndex != 0 {
		t.Fatalf("input mutated: %d", in.CurrentRoundIndex)
	}
}

func TestActorCanManage(t *testing.T) {
	cases := []struct {
		actor Actor
		want  bool
	}{
		{Actor{ID: "org-1", Roles: []Role{RoleOrganizer}}, true},
		{Actor{ID: "org-2", Roles: []Role{RoleOrganizer}}, false},
		{Actor{ID: "adm", Roles: []Role{RoleAdmin}}, true},
		{Actor{ID: "org-1", Roles: []Role{RoleStudent}}, false},
		{Actor{ID: "org-1"}, false},
	}
	for _, tc := range cases {
		if got := tc.actor.canManage("org-1"); got != tc.want {
			t.Fatalf("%+v canManage = %t, want %t", tc.actor, got, tc.want)
		}
	}
}

func TestAdvanceFromIsCompareAndSwap(t *testing.T) {
	event := eventWithRounds(3, 0)

	// Two callers both observed round 0; the lock serializes them.
	next, moved, err := advanceFrom(event, 0)
	if err != nil || !moved || next.CurrentRoundIndex != 1 {
		t.Fatalf("first advance: next=%d moved=%t err=%v", next.CurrentRoundIndex, moved, err)
	}
	again, moved, err := advanceFrom(next, 0)
	if err != nil || moved {
		t.Fatalf("second advance from a stale round: moved=%t err=%v", moved, err)
	}
	if again.CurrentRoundIndex != 1 {
		t.Fatalf("stale advance moved the event to %d", again.CurrentRoundIndex)
	}

	last := eventWithRounds(2, 1)
	if _, moved, err := advanceFrom(last, 1); !errors.Is(err, ErrNoFurtherRounds) || moved {
		t.Fatalf("final round: moved=%t err=%v", moved, err)
	}
}
