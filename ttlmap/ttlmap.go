// Package ttlmap is a keyed time-to-live container built on the scheduler
// primitive: a Map registers its own eviction sweep as an unbounded
// 1-second schedule on the engine passed to New.
package ttlmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ngicks/gommon/pkg/common"

	"github.com/czubix/scheduler"
)

const sweepInterval = time.Second

// Map stores values alongside a per-key last-touch timestamp. Get and Set
// both count as a touch. Keys untouched for lifetime or longer are evicted
// by the sweep schedule, at latest lifetime plus one sweep period after
// going stale; eviction only happens while the engine's poll loop runs.
//
// One mutex guards the value and timestamp maps together, so every key in
// one has a counterpart in the other.
type Map[K comparable, V any] struct {
	mu        sync.Mutex
	lifetime  time.Duration
	values    map[K]V
	touched   map[K]time.Time
	nowGetter common.NowGetter

	engine *scheduler.Scheduler
	sweep  *scheduler.Schedule
}

type Option = func(o *mapConfig)

type mapConfig struct {
	nowGetter common.NowGetter
}

// WithNowGetter swaps the wall clock. Mainly for tests.
func WithNowGetter(getNow common.NowGetter) Option {
	return func(o *mapConfig) {
		o.nowGetter = getNow
	}
}

// New creates a Map evicting entries older than lifetime and registers the
// sweep schedule on engine.
func New[K comparable, V any](engine *scheduler.Scheduler, lifetime time.Duration, options ...Option) (*Map[K, V], error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine is nil", scheduler.ErrInvalidArg)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("%w: lifetime must be positive, got %s", scheduler.ErrInvalidArg, lifetime)
	}

	c := mapConfig{nowGetter: common.NowGetterReal{}}
	for _, opt := range options {
		opt(&c)
	}

	m := &Map[K, V]{
		lifetime:  lifetime,
		values:    make(map[K]V),
		touched:   make(map[K]time.Time),
		nowGetter: c.nowGetter,
		engine:    engine,
	}

	sweep, err := engine.CreateSchedule(m.runSweep, scheduler.Every(sweepInterval))
	if err != nil {
		return nil, err
	}
	m.sweep = sweep

	return m, nil
}

// NewString is New with a duration string lifetime, e.g. "5m".
func NewString[K comparable, V any](engine *scheduler.Scheduler, lifetime string, options ...Option) (*Map[K, V], error) {
	return New[K, V](engine, scheduler.ParseDurationString(lifetime), options...)
}

// Get returns the value stored under key and refreshes its last-touch
// timestamp. A read keeps an entry alive just like a write.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok = m.values[key]
	if ok {
		m.touched[key] = m.nowGetter.GetNow()
	}
	return value, ok
}

// Set stores value under key and refreshes its last-touch timestamp.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	m.touched[key] = m.nowGetter.GetNow()
}

// Delete removes key and its touch timestamp. Deleting an absent key is a
// no-op.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.touched, key)
}

func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// Stop cancels the sweep schedule on the engine. The map stays readable and
// writable; entries just stop being evicted.
func (m *Map[K, V]) Stop() error {
	return m.engine.CancelSchedules(m.sweep)
}

// runSweep is the registered schedule work: collect every stale key, then
// delete collected keys from both maps. Deletion is delete-if-present so a
// key removed between collection and deletion is tolerated.
func (m *Map[K, V]) runSweep(ctx context.Context, scheduled time.Time, param any) error {
	now := m.nowGetter.GetNow()

	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []K
	for key, touched := range m.touched {
		if now.Sub(touched) >= m.lifetime {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(m.touched, key)
		delete(m.values, key)
	}
	return nil
}
