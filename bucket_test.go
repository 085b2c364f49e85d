package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type nowGetterDummy struct {
	mu  sync.Mutex
	now time.Time
}

func (g *nowGetterDummy) GetNow() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now
}

func (g *nowGetterDummy) advanceBy(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = g.now.Add(d)
}

// syncDispatcher runs units inline so bucket transitions become
// deterministic under direct tick calls.
type syncDispatcher struct{}

func (syncDispatcher) Dispatch(ctx context.Context, unit func(ctx context.Context)) {
	unit(ctx)
}

func newTestScheduler(t *testing.T) (*Scheduler, *nowGetterDummy) {
	t.Helper()

	getNow := &nowGetterDummy{now: time.Now()}
	s, err := New(
		WithCheckInterval(100*time.Millisecond),
		WithNowGetter(getNow),
		WithDispatcher(syncDispatcher{}),
	)
	if err != nil {
		t.Fatalf("New must not fail: %v", err)
	}
	return s, getNow
}

func names(schedules []*Schedule) []string {
	found := make([]string, len(schedules))
	for i, sched := range schedules {
		found[i] = sched.Name()
	}
	return found
}

func TestNewHidesCleaner(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	require.Empty(s.Schedules())
	require.Len(s.hidden, 1)
	require.Equal(cleanerName, s.hidden[0].Name())
	require.True(s.hidden[0].HasFlag(FlagHidden))
	require.True(s.hidden[0].HasFlag(FlagRepeat))
}

func TestHideUnhideMembership(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	a, err := s.CreateSchedule(noopWork, Every(time.Second), WithName("a"))
	require.NoError(err)
	b, err := s.CreateSchedule(noopWork, Every(time.Second), WithName("b"))
	require.NoError(err)

	require.NoError(s.HideSchedules(a))
	require.Equal([]string{"b"}, names(s.Schedules()))
	require.Equal([]string{cleanerName, "a"}, names(s.hidden))
	require.True(a.HasFlag(FlagHidden))

	// hiding twice is a no-op, not a duplicate move.
	require.NoError(s.HideSchedules(a))
	require.Len(s.hidden, 2)

	require.NoError(s.UnhideSchedules(a))
	require.False(a.HasFlag(FlagHidden))
	require.Equal([]string{"b", "a"}, names(s.Schedules()))
	require.NoError(s.UnhideSchedules(a))
	require.Equal([]string{"b", "a"}, names(s.Schedules()))

	// default unhide drains the hidden bucket, cleaner included.
	require.NoError(s.HideSchedules(a, b))
	require.NoError(s.UnhideSchedules())
	require.Empty(s.hidden)
	require.Equal([]string{cleanerName, "a", "b"}, names(s.Schedules()))
}

func TestHideNotActiveFails(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	a, err := s.CreateSchedule(noopWork, Every(time.Second), WithName("a"))
	require.NoError(err)
	require.NoError(s.CancelSchedules(a))

	err = s.HideSchedules(a)
	require.True(IsBucketError(err))
	require.False(a.HasFlag(FlagHidden), "failed hide must not leave the flag set")
}

func TestCancelUncancel(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	s.CreateSchedule(noopWork, Every(time.Second), WithName("a"))
	b, _ := s.CreateSchedule(noopWork, Every(time.Second), WithName("b"))
	c, _ := s.CreateSchedule(noopWork, Every(time.Second), WithName("c"))

	require.NoError(s.CancelSchedules(b))
	require.Equal([]string{"a", "c"}, names(s.Schedules()))
	require.Equal([]string{"b"}, names(s.CanceledSchedules()))

	// already canceled.
	err := s.CancelSchedules(b)
	require.True(IsBucketError(err))

	require.NoError(s.UncancelSchedules(b))
	require.Equal([]string{"a", "c", "b"}, names(s.Schedules()))
	require.Empty(s.CanceledSchedules())

	err = s.UncancelSchedules(c)
	require.True(IsBucketError(err))

	// default cancel empties the whole active-visible bucket, order kept.
	require.NoError(s.CancelSchedules())
	require.Empty(s.Schedules())
	if diff := cmp.Diff([]string{"a", "c", "b"}, names(s.CanceledSchedules())); diff != "" {
		t.Fatalf("canceled bucket mismatch (-want +got):\n%s", diff)
	}
}

func TestClearSchedulesKeepsHidden(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	a, _ := s.CreateSchedule(noopWork, Every(0), WithName("a"), Once())
	b, _ := s.CreateSchedule(noopWork, Every(time.Second), WithName("b"))
	c, _ := s.CreateSchedule(noopWork, Every(time.Second), WithName("c"))
	require.NoError(s.HideSchedules(b))
	require.NoError(s.CancelSchedules(c))

	// exhaust a into the finished bucket.
	s.tick(context.Background())
	s.tick(context.Background())
	require.Equal(1, a.Calls())
	require.Equal([]string{"a"}, names(s.FinishedSchedules()))
	require.Equal([]string{"c"}, names(s.CanceledSchedules()))

	s.ClearSchedules()
	require.Empty(s.Schedules())
	require.Empty(s.FinishedSchedules())
	require.Empty(s.CanceledSchedules())
	require.Equal([]string{cleanerName, "b"}, names(s.hidden))
}

func TestTickFiresAndRetires(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	count := 0
	work := func(ctx context.Context, scheduled time.Time, param any) error {
		count++
		return nil
	}

	sched, err := s.CreateSchedule(work, Every(0), WithName("burst"), WithTimes(3))
	require.NoError(err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.tick(ctx)
		require.Equal(i+1, count)
		require.Equal(i+1, sched.Calls())
		require.Equal([]string{"burst"}, names(s.Schedules()))
	}

	// fourth due detection retires without firing.
	s.tick(ctx)
	require.Equal(3, count)
	require.Equal(3, sched.Calls())
	require.Empty(s.Schedules())
	require.Equal([]string{"burst"}, names(s.FinishedSchedules()))

	// retired schedules are no longer scanned.
	s.tick(ctx)
	require.Equal(3, count)
}

func TestTickHiddenExhaustedDropped(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	sched, err := s.CreateSchedule(noopWork, Every(0), WithName("ghost"), Once())
	require.NoError(err)
	require.NoError(s.HideSchedules(sched))

	ctx := context.Background()
	s.tick(ctx)
	require.Equal(1, sched.Calls())

	s.tick(ctx)
	require.Equal([]string{cleanerName}, names(s.hidden))
	require.Empty(s.FinishedSchedules(), "hidden exhausted schedules get no retention")
}

func TestTickSkipsNotDue(t *testing.T) {
	require := require.New(t)

	s, getNow := newTestScheduler(t)

	count := 0
	work := func(ctx context.Context, scheduled time.Time, param any) error {
		count++
		return nil
	}

	_, err := s.CreateSchedule(work, Every(10*time.Second), WithName("slow"))
	require.NoError(err)

	ctx := context.Background()
	s.tick(ctx)
	require.Equal(0, count)

	getNow.advanceBy(10 * time.Second)
	s.tick(ctx)
	require.Equal(1, count)

	// next due is anchored 10s after the previous one.
	getNow.advanceBy(9 * time.Second)
	s.tick(ctx)
	require.Equal(1, count)
	getNow.advanceBy(time.Second)
	s.tick(ctx)
	require.Equal(2, count)
}

func TestUncancelFiresImmediately(t *testing.T) {
	require := require.New(t)

	s, getNow := newTestScheduler(t)

	count := 0
	work := func(ctx context.Context, scheduled time.Time, param any) error {
		count++
		return nil
	}

	sched, err := s.CreateSchedule(work, Every(10*time.Second), WithName("stale"))
	require.NoError(err)
	require.NoError(s.CancelSchedules(sched))

	ctx := context.Background()
	getNow.advanceBy(time.Hour)
	s.tick(ctx)
	require.Equal(0, count, "canceled schedules are not considered")

	// the due timestamp is not reset on restore.
	require.NoError(s.UncancelSchedules(sched))
	s.tick(ctx)
	require.Equal(1, count)
}

func TestCleanerSweepsRetentionBuckets(t *testing.T) {
	require := require.New(t)

	s, getNow := newTestScheduler(t)

	s.CreateSchedule(noopWork, Every(0), WithName("a"), Once())
	b, _ := s.CreateSchedule(noopWork, Every(time.Second), WithName("b"))
	require.NoError(s.CancelSchedules(b))

	ctx := context.Background()
	s.tick(ctx)
	s.tick(ctx)
	require.Equal([]string{"a"}, names(s.FinishedSchedules()))
	require.Equal([]string{"b"}, names(s.CanceledSchedules()))

	getNow.advanceBy(time.Hour)
	s.tick(ctx)
	require.Empty(s.FinishedSchedules())
	require.Empty(s.CanceledSchedules())
}

func TestCreateScheduleAbsolute(t *testing.T) {
	require := require.New(t)

	s, getNow := newTestScheduler(t)

	count := 0
	work := func(ctx context.Context, scheduled time.Time, param any) error {
		count++
		return nil
	}

	// WithTimes loses against an absolute time.
	sched, err := s.CreateSchedule(work, At(getNow.GetNow().Add(5*time.Second)), WithName("at"), WithTimes(100))
	require.NoError(err)
	require.True(sched.HasFlag(FlagOnce))
	require.Equal(1, sched.Times().Value())

	ctx := context.Background()
	s.tick(ctx)
	require.Equal(0, count)

	getNow.advanceBy(5 * time.Second)
	s.tick(ctx)
	require.Equal(1, count)
	s.tick(ctx)
	require.Equal(1, count, "not due again until the next interval boundary")

	// found due again with the budget spent: retired without firing.
	getNow.advanceBy(5 * time.Second)
	s.tick(ctx)
	require.Equal(1, count)
	require.Equal([]string{"at"}, names(s.FinishedSchedules()))

	// a past time fires on the next tick.
	count = 0
	_, err = s.CreateSchedule(work, At(getNow.GetNow().Add(-time.Minute)), WithName("past"))
	require.NoError(err)
	s.tick(ctx)
	require.Equal(1, count)
}

func TestAutoGeneratedNames(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	a, err := s.CreateSchedule(noopWork, Every(time.Second))
	require.NoError(err)
	b, err := s.CreateSchedule(noopWork, Every(time.Second))
	require.NoError(err)

	require.NotEmpty(a.Name())
	require.NotEmpty(b.Name())
	require.NotEqual(a.Name(), b.Name())
}

func TestFindSchedulesOr(t *testing.T) {
	require := require.New(t)

	s, _ := newTestScheduler(t)

	s.CreateSchedule(noopWork, Every(time.Second), WithName("a"))
	s.CreateSchedule(noopWork, Every(time.Second), WithName("a"))
	s.CreateSchedule(noopWork, Every(time.Second), WithName("b"), WithParam(42))

	require.Len(s.FindSchedules("", nil), 3)

	// duplicate names are supported for grouping.
	require.Equal([]string{"a", "a"}, names(s.FindSchedules("a", nil)))

	// name and check combine with OR.
	byParam := func(sched *Schedule) bool { return sched.param != nil }
	require.Equal([]string{"a", "a", "b"}, names(s.FindSchedules("a", byParam)))
	require.Equal([]string{"b"}, names(s.FindSchedules("", byParam)))

	require.Empty(s.FindSchedules("missing", nil))
}
