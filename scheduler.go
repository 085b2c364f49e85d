package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ngicks/gommon/pkg/common"
	"github.com/ngicks/und/option"
	"github.com/rs/zerolog"
)

const (
	defaultCheckInterval   = time.Second
	defaultCleanerInterval = "1h"
	cleanerName            = "schedule_cleaner"
)

// ErrorHook receives failures of dispatched units of work, both returned
// errors and recovered panics (as *RecoveredError).
type ErrorHook = func(schedule *Schedule, err error)

// Scheduler owns schedules across four lifecycle buckets and polls them for
// due work. Created schedules start in the active-visible bucket; Hide and
// Cancel move them to the hidden and canceled buckets; the poll loop moves
// exhausted visible ones to finished. One Scheduler runs at most one poll
// loop at a time.
//
// All bucket mutation, from administrative calls and from the poll loop, is
// serialized on one mutex, so administrative calls are safe from any
// goroutine including dispatched work bodies.
type Scheduler struct {
	workingState
	endState

	checkInterval   time.Duration
	cleanerInterval time.Duration
	nowGetter       common.NowGetter
	dispatcher      Dispatcher
	logger          zerolog.Logger
	errorHook       ErrorHook

	mu        sync.Mutex
	schedules []*Schedule
	hidden    []*Schedule
	finished  []*Schedule
	canceled  []*Schedule

	cleaner *Schedule
}

type Option = func(s *Scheduler)

// WithCheckInterval sets the poll period. It must lie in (0s,1s]; New fails
// otherwise.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.checkInterval = d
	}
}

// WithCleanerInterval sets the period of the built-in housekeeping schedule
// that empties the finished and canceled buckets. Default is "1h".
func WithCleanerInterval(durationStr string) Option {
	return func(s *Scheduler) {
		s.cleanerInterval = ParseDurationString(durationStr)
	}
}

// WithNowGetter swaps the wall clock. Mainly for tests.
func WithNowGetter(getNow common.NowGetter) Option {
	return func(s *Scheduler) {
		s.nowGetter = getNow
	}
}

// WithDispatcher swaps the fire-and-forget execution boundary, e.g. for a
// WorkerPoolDispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) {
		s.dispatcher = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithErrorHook(hook ErrorHook) Option {
	return func(s *Scheduler) {
		s.errorHook = hook
	}
}

// New creates a Scheduler. The poll loop is not running until Run is called.
//
// New registers the housekeeping schedule as its first, hidden schedule, so
// it survives ClearSchedules and never shows up in listings.
func New(options ...Option) (*Scheduler, error) {
	s := &Scheduler{
		checkInterval:   defaultCheckInterval,
		cleanerInterval: ParseDurationString(defaultCleanerInterval),
		nowGetter:       common.NowGetterReal{},
		dispatcher:      NewGoDispatcher(),
		logger:          zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.checkInterval <= 0 || s.checkInterval > time.Second {
		return nil, fmt.Errorf(
			"%w: check interval must lie in (0s,1s], got %s",
			ErrInvalidArg, s.checkInterval,
		)
	}
	if s.cleanerInterval <= 0 {
		return nil, fmt.Errorf(
			"%w: cleaner interval must be positive, got %s",
			ErrInvalidArg, s.cleanerInterval,
		)
	}
	if s.nowGetter == nil || s.dispatcher == nil {
		return nil, fmt.Errorf(
			"%w: nil now getter or dispatcher",
			ErrInvalidArg,
		)
	}

	cleaner, err := s.CreateSchedule(
		s.cleanBuckets,
		Every(s.cleanerInterval),
		WithName(cleanerName),
	)
	if err != nil {
		return nil, err
	}
	if err := s.HideSchedules(cleaner); err != nil {
		return nil, err
	}
	s.cleaner = cleaner

	return s, nil
}

func (s *Scheduler) cleanBuckets(ctx context.Context, scheduled time.Time, param any) error {
	s.mu.Lock()
	s.finished = nil
	s.canceled = nil
	s.mu.Unlock()
	return nil
}

type createConfig struct {
	name  string
	param any
	times option.Option[int]
}

type CreateOption = func(c *createConfig)

// WithName names the schedule. Names need not be unique; callers may reuse
// one name to group schedules. Without this option a fresh unique token is
// generated.
func WithName(name string) CreateOption {
	return func(c *createConfig) {
		c.name = name
	}
}

// WithParam binds a value passed to every invocation of the work function.
func WithParam(param any) CreateOption {
	return func(c *createConfig) {
		c.param = param
	}
}

// WithTimes bounds the fire budget to n. Default is unbounded repeat.
func WithTimes(n int) CreateOption {
	return func(c *createConfig) {
		c.times = option.Some(n)
	}
}

// Once is WithTimes(1).
func Once() CreateOption {
	return WithTimes(1)
}

// CreateSchedule registers work to fire per when and appends the new
// schedule to the active-visible bucket. An absolute When forces a fire
// budget of 1 regardless of WithTimes.
func (s *Scheduler) CreateSchedule(work WorkFn, when When, options ...CreateOption) (*Schedule, error) {
	if s.IsEnded() {
		return nil, ErrAlreadyEnded
	}

	var c createConfig
	for _, opt := range options {
		opt(&c)
	}

	now := s.nowGetter.GetNow()
	interval, once := when.resolve(now)
	if once {
		c.times = option.Some(1)
	}
	if c.name == "" {
		c.name = uuid.NewString()
	}

	sched, err := newSchedule(work, interval, c.name, c.param, c.times, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.schedules = append(s.schedules, sched)
	s.mu.Unlock()

	return sched, nil
}

// Schedules returns a snapshot of the active-visible bucket in insertion
// order. Hidden schedules are never listed.
func (s *Scheduler) Schedules() []*Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Schedule{}, s.schedules...)
}

// FindSchedules returns every active-visible schedule whose name equals
// name or for which check returns true; the two filters combine with OR.
// An empty name and nil check match everything.
func (s *Scheduler) FindSchedules(name string, check func(schedule *Schedule) bool) []*Schedule {
	snapshot := s.Schedules()
	if name == "" && check == nil {
		return snapshot
	}

	var found []*Schedule
	for _, sched := range snapshot {
		if (name != "" && sched.Name() == name) || (check != nil && check(sched)) {
			found = append(found, sched)
		}
	}
	return found
}

// FinishedSchedules returns a snapshot of the finished bucket: visible
// schedules retired on exhaustion, retained until cleaned.
func (s *Scheduler) FinishedSchedules() []*Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Schedule{}, s.finished...)
}

// CanceledSchedules returns a snapshot of the canceled bucket.
func (s *Scheduler) CanceledSchedules() []*Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Schedule{}, s.canceled...)
}

// CancelSchedules moves the given schedules, or with no arguments the whole
// active-visible bucket, into the canceled bucket. Canceling does not
// interrupt a unit of work already dispatched; it only stops future ticks
// from considering the schedule.
//
// A schedule not currently active-visible yields a *BucketError; schedules
// processed before the offending one stay canceled.
func (s *Scheduler) CancelSchedules(schedules ...*Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(schedules) == 0 {
		schedules = append([]*Schedule{}, s.schedules...)
	}
	for _, sched := range schedules {
		if !removeSchedule(&s.schedules, sched) {
			return &BucketError{Name: sched.Name(), Kind: NotActive}
		}
		s.canceled = append(s.canceled, sched)
	}
	return nil
}

// UncancelSchedules moves the given schedules, or with no arguments the
// whole canceled bucket, back to active-visible. The due timestamp is not
// reset: a schedule whose timestamp passed while canceled fires on the next
// poll tick.
func (s *Scheduler) UncancelSchedules(schedules ...*Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(schedules) == 0 {
		schedules = append([]*Schedule{}, s.canceled...)
	}
	for _, sched := range schedules {
		if !removeSchedule(&s.canceled, sched) {
			return &BucketError{Name: sched.Name(), Kind: NotCanceled}
		}
		s.schedules = append(s.schedules, sched)
	}
	return nil
}

// HideSchedules sets FlagHidden on the given schedules, or with no
// arguments on the whole active-visible bucket, and moves them to the
// hidden bucket. Hidden schedules keep firing but are excluded from
// listings, from ClearSchedules, and from finished-bucket retention on
// exhaustion. Hiding an already-hidden schedule is a no-op.
func (s *Scheduler) HideSchedules(schedules ...*Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(schedules) == 0 {
		schedules = append([]*Schedule{}, s.schedules...)
	}
	for _, sched := range schedules {
		if !sched.setHidden(true) {
			continue
		}
		if !removeSchedule(&s.schedules, sched) {
			sched.setHidden(false)
			return &BucketError{Name: sched.Name(), Kind: NotActive}
		}
		s.hidden = append(s.hidden, sched)
	}
	return nil
}

// UnhideSchedules clears FlagHidden on the given schedules, or with no
// arguments on the whole hidden bucket, and moves them back to
// active-visible. Unhiding an already-visible schedule is a no-op.
func (s *Scheduler) UnhideSchedules(schedules ...*Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(schedules) == 0 {
		schedules = append([]*Schedule{}, s.hidden...)
	}
	for _, sched := range schedules {
		if !sched.setHidden(false) {
			continue
		}
		if !removeSchedule(&s.hidden, sched) {
			sched.setHidden(true)
			return &BucketError{Name: sched.Name(), Kind: NotHidden}
		}
		s.schedules = append(s.schedules, sched)
	}
	return nil
}

// ClearSchedules empties the active-visible, finished and canceled buckets.
// The hidden bucket is intentionally left untouched so permanent hidden
// housekeeping schedules survive a clear.
func (s *Scheduler) ClearSchedules() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = nil
	s.finished = nil
	s.canceled = nil
}

// End refuses any further Run or CreateSchedule and, when the dispatcher
// supports it, waits for already-dispatched units of work to return.
func (s *Scheduler) End() {
	s.setEnded()
	if waiter, ok := s.dispatcher.(interface{ Wait() }); ok {
		waiter.Wait()
	}
}

func removeSchedule(bucket *[]*Schedule, sched *Schedule) bool {
	for i, member := range *bucket {
		if member == sched {
			*bucket = append((*bucket)[:i], (*bucket)[i+1:]...)
			return true
		}
	}
	return false
}
