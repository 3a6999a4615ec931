package syncer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// callbackExecutor runs enrichment resolutions on a dedicated
// I/O-bound pool, distinct from the goroutines driving per-edge
// delivery loops, so a slow store call for one edge cannot starve
// another edge's loop.
type callbackExecutor struct {
	tasks    chan executorTask
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *zap.Logger
}

type executorTask struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func newCallbackExecutor(workers, queueSize int, log *zap.Logger) *callbackExecutor {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &callbackExecutor{
		tasks:  make(chan executorTask, queueSize),
		stopCh: make(chan struct{}),
		log:    log,
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *callbackExecutor) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case task := <-e.tasks:
			task.done <- e.run(task)
		}
	}
}

func (e *callbackExecutor) run(task executorTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment task panicked: %v", r)
			e.log.Error("recovered panic in enrichment task", zap.Any("panic", r))
		}
	}()
	return task.fn(task.ctx)
}

// submit queues fn and returns a handle that receives exactly one
// completion value. The caller never blocks on the execution itself.
func (e *callbackExecutor) submit(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	select {
	case <-e.stopCh:
		done <- errExecutorStopped
		return done
	default:
	}
	select {
	case <-e.stopCh:
		done <- errExecutorStopped
	case <-ctx.Done():
		done <- ctx.Err()
	case e.tasks <- executorTask{ctx: ctx, fn: fn, done: done}:
	}
	return done
}

var errExecutorStopped = fmt.Errorf("executor is stopped")

// stop waits for the workers to exit, then fails every task still
// queued so no caller is left blocked on its completion handle.
func (e *callbackExecutor) stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		for {
			select {
			case task := <-e.tasks:
				task.done <- errExecutorStopped
			default:
				return
			}
		}
	})
}
