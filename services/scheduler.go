// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/logger"
)

// StartAdvanceSweep schedules the auto-advance backstop. RecordOutcome already advances
// inline after each commit; the sweep catches events whose inline check failed or raced.
// The caller owns the returned scheduler and must Shutdown it.
func (s *RoundService) StartAdvanceSweep(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			s.SweepOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule advance sweep: %w", err)
	}

	sched.Start()
	logger.Infof("[Scheduler] auto-advance sweep every %s", interval)
	return sched, nil
}

// SweepOnce checks every candidate event once and returns how many advanced.
func (s *RoundService) SweepOnce(ctx context.Context) int {
	ids, err := s.PendingAdvanceCandidates(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] DB error: %v", err)
		return 0
	}
	advanced := 0
	for _, id := range ids {
		ok, err := s.AdvanceIfResolved(ctx, id)
		if err != nil {
			logger.Warningf("[Scheduler] failed to check event %s: %v", id, err)
			continue
		}
		if ok {
			advanced++
		}
	}
	if advanced > 0 {
		logger.Infof("[Scheduler] auto-advanced %d event(s)", advanced)
	}
	return advanced
}
