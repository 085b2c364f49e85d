package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Run polls the active-visible and hidden buckets once per check interval
// and dispatches due schedules. It blocks until ctx is cancelled and is the
// only goroutine mutating schedule timing state.
//
// A second concurrent Run returns ErrAlreadyStarted; Run after End returns
// ErrAlreadyEnded.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: ctx is nil", ErrInvalidArg)
	}
	if s.IsEnded() {
		return ErrAlreadyEnded
	}
	if !s.setWorking() {
		return ErrAlreadyStarted
	}
	defer s.setWorking(false)

	s.logger.Info().
		Dur("check_interval", s.checkInterval).
		Msg("scheduler started")

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			s.tick(ctx)
		}
	}

	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// tick scans a snapshot of active-visible plus hidden schedules taken at
// the start of the pass. Exhaustion is evaluated before firing: an
// already-exhausted schedule found due is retired and not fired again, so a
// bounded schedule never exceeds its budget.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.nowGetter.GetNow()

	s.mu.Lock()
	snapshot := make([]*Schedule, 0, len(s.schedules)+len(s.hidden))
	snapshot = append(snapshot, s.schedules...)
	snapshot = append(snapshot, s.hidden...)
	s.mu.Unlock()

	for _, sched := range snapshot {
		if !sched.due(now) {
			continue
		}
		if sched.exhausted() {
			s.retire(sched)
			continue
		}
		s.dispatch(ctx, sched)
	}
}

// retire drops an exhausted hidden schedule with no retention, or moves an
// exhausted visible one into the finished bucket. A schedule an
// administrative call moved elsewhere between snapshot and retire is left
// alone.
func (s *Scheduler) retire(sched *Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched.HasFlag(FlagHidden) {
		removeSchedule(&s.hidden, sched)
		return
	}
	if removeSchedule(&s.schedules, sched) {
		s.finished = append(s.finished, sched)
	}
}

// dispatch advances the schedule's timing state and submits one
// recover-isolated unit of work. The loop does not await it; failures are
// reported through the logger and the error hook.
func (s *Scheduler) dispatch(ctx context.Context, sched *Schedule) {
	scheduled := sched.advance()
	s.dispatcher.Dispatch(ctx, func(ctx context.Context) {
		defer func() {
			if reason := recover(); reason != nil {
				s.reportFailure(sched, &RecoveredError{Reason: reason})
			}
		}()
		if err := sched.work(ctx, scheduled, sched.param); err != nil {
			s.reportFailure(sched, err)
		}
	})
}

func (s *Scheduler) reportFailure(sched *Schedule, err error) {
	s.logger.Error().
		Err(err).
		Str("schedule", sched.Name()).
		Int("calls", sched.Calls()).
		Msg("schedule work failed")
	if s.errorHook != nil {
		s.errorHook(sched, err)
	}
}
