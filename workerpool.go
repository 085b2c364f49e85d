package scheduler

import (
	"context"

	"github.com/ngicks/workerpool"
)

type poolUnit struct {
	ctx  context.Context
	unit func(ctx context.Context)
}

type unitExecutor struct{}

var _ workerpool.WorkExecuter[string, poolUnit] = unitExecutor{}

func (unitExecutor) Exec(ctx context.Context, id string, param poolUnit) error {
	select {
	case <-param.ctx.Done():
		return param.ctx.Err()
	default:
	}
	param.unit(param.ctx)
	return nil
}

// WorkerPool is the control surface of the pool backing
// WorkerPoolDispatcher.
type WorkerPool interface {
	Add(delta int) (ok bool)
	Remove(delta int)
	Kill()
	WaitUntil(condition func(alive int, sleeping int, active int) bool, action ...func())
	Wait()
}

// WorkerPoolDispatcher runs dispatched units on a bounded worker pool
// instead of one goroutine per unit. Dispatch blocks while every worker is
// busy, which stalls the poll loop; size the pool for the expected
// concurrency.
//
// The pool starts with zero workers. The caller must Add workers and owns
// the pool's shutdown (Remove or Kill, then Wait).
type WorkerPoolDispatcher struct {
	WorkerPool WorkerPool

	pool *workerpool.Pool[string, poolUnit]
}

func NewWorkerPoolDispatcher() *WorkerPoolDispatcher {
	pool := workerpool.New[string, poolUnit](unitExecutor{}, workerpool.NewUuidPool())
	return &WorkerPoolDispatcher{
		WorkerPool: pool,
		pool:       pool,
	}
}

func (d *WorkerPoolDispatcher) Dispatch(ctx context.Context, unit func(ctx context.Context)) {
	select {
	case d.pool.Sender() <- poolUnit{ctx: ctx, unit: unit}:
	case <-ctx.Done():
	}
}
