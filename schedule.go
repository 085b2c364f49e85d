package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ngicks/und/option"
)

// WorkFn is a schedule's unit of work. scheduled is the due time that
// triggered this fire, which lags wall-clock by at most one poll cycle.
// param is the value bound at creation time via WithParam.
//
// A non-nil error does not stop the schedule; it is reported through the
// engine's logger and error hook. The poll loop never awaits a WorkFn.
type WorkFn = func(ctx context.Context, scheduled time.Time, param any) error

// Schedule is one registered recurring or one-shot unit of deferred work
// with its own timing and counter state.
//
// The next-due timestamp advances by interval on every fire, anchored to the
// previous due time rather than the actual fire time. A single late poll
// does not shift the cadence, but a permanently lagging poller lets the due
// timestamp fall behind wall-clock.
type Schedule struct {
	name      string
	work      WorkFn
	param     any
	interval  time.Duration
	createdAt time.Time

	mu        sync.Mutex
	timestamp time.Time
	calls     int
	times     option.Option[int]
	flags     Flag
}

func newSchedule(
	work WorkFn,
	interval time.Duration,
	name string,
	param any,
	times option.Option[int],
	now time.Time,
) (*Schedule, error) {
	if work == nil {
		return nil, fmt.Errorf("%w: work is nil", ErrInvalidArg)
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: interval must not be negative, got %s", ErrInvalidArg, interval)
	}

	var flags Flag
	switch {
	case times.IsNone():
		flags = FlagRepeat
	case times.Value() == 1:
		flags = FlagOnce
	case times.Value() > 1:
		flags = FlagMultiple
	default:
		return nil, fmt.Errorf("%w: times must be positive, got %d", ErrInvalidArg, times.Value())
	}

	return &Schedule{
		name:      name,
		work:      work,
		param:     param,
		interval:  interval,
		createdAt: now,
		timestamp: now.Add(interval),
		times:     times,
		flags:     flags,
	}, nil
}

func (s *Schedule) Name() string {
	return s.name
}

func (s *Schedule) Interval() time.Duration {
	return s.interval
}

func (s *Schedule) CreatedAt() time.Time {
	return s.createdAt
}

// NextFire returns the current due timestamp.
func (s *Schedule) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp
}

// Calls returns how many times this schedule has been fired.
func (s *Schedule) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Times returns the fire budget. None means unbounded repeat.
func (s *Schedule) Times() option.Option[int] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times
}

func (s *Schedule) Flags() Flag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func (s *Schedule) HasFlag(flag Flag) bool {
	return s.Flags().Has(flag)
}

func (s *Schedule) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := "inf"
	if s.times.IsSome() {
		times = fmt.Sprintf("%d", s.times.Value())
	}
	return fmt.Sprintf(
		"<Schedule name=%q interval=%s flags=%s calls=(%d, %s)>",
		s.name, s.interval, s.flags, s.calls, times,
	)
}

func (s *Schedule) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.timestamp.After(now)
}

func (s *Schedule) exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times.IsSome() && s.calls >= s.times.Value()
}

// advance moves the due timestamp forward by one interval and counts the
// fire, returning the due time that fired. The poll loop calls this at
// dispatch decision time, before the unit of work is submitted, so a
// zero-interval schedule cannot be double-dispatched within one budget slot.
func (s *Schedule) advance() (scheduled time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scheduled = s.timestamp
	s.timestamp = s.timestamp.Add(s.interval)
	s.calls++
	return scheduled
}

// setHidden toggles FlagHidden. It reports false when the flag already had
// the requested state, making repeated Hide/Unhide calls no-ops.
func (s *Schedule) setHidden(hidden bool) (toggled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags.Has(FlagHidden) == hidden {
		return false
	}
	s.flags ^= FlagHidden
	return true
}
