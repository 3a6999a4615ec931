package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func awaitHandle(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("completion handle never received")
		return nil
	}
}

func TestExecutorCompletesTasks(t *testing.T) {
	e := newCallbackExecutor(2, 16, nil)
	defer e.stop()

	ok := e.submit(context.Background(), func(context.Context) error { return nil })
	failing := e.submit(context.Background(), func(context.Context) error { return fmt.Errorf("task broke") })
	panicking := e.submit(context.Background(), func(context.Context) error { panic("boom") })

	require.NoError(t, awaitHandle(t, ok))
	require.Error(t, awaitHandle(t, failing))
	require.Error(t, awaitHandle(t, panicking))
}

func TestExecutorStopCompletesQueuedHandles(t *testing.T) {
	e := newCallbackExecutor(1, 16, nil)

	release := make(chan struct{})
	blocking := e.submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	var queued []<-chan error
	for i := 0; i < 5; i++ {
		queued = append(queued, e.submit(context.Background(), func(context.Context) error { return nil }))
	}

	stopped := make(chan struct{})
	go func() {
		e.stop()
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("stop never returned")
	}

	// every handle completes: the blocking task ran, the rest either ran
	// before the worker observed the stop or were failed by the drain
	require.NoError(t, awaitHandle(t, blocking))
	for _, done := range queued {
		awaitHandle(t, done)
	}

	// submissions after stop fail immediately
	require.Error(t, awaitHandle(t, e.submit(context.Background(), func(context.Context) error { return nil })))
}
