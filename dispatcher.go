package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// Dispatcher is the fire-and-forget execution boundary. Dispatch submits a
// unit of work and returns without awaiting it; relative completion order
// of submitted units is unspecified.
type Dispatcher interface {
	Dispatch(ctx context.Context, unit func(ctx context.Context))
}

// RecoveredError wraps a panic recovered from a dispatched unit of work. A
// panicking work function never unwinds through the poll loop.
type RecoveredError struct {
	Reason any
}

func (e *RecoveredError) Error() string {
	return fmt.Sprintf("recovered: schedule work panicked, reason = %v", e.Reason)
}

// GoDispatcher runs each unit of work on its own goroutine. This is the
// default dispatcher; it never blocks the poll loop.
type GoDispatcher struct {
	wg sync.WaitGroup
}

func NewGoDispatcher() *GoDispatcher {
	return &GoDispatcher{}
}

func (d *GoDispatcher) Dispatch(ctx context.Context, unit func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		unit(ctx)
	}()
}

// Wait blocks until every dispatched unit has returned.
func (d *GoDispatcher) Wait() {
	d.wg.Wait()
}
