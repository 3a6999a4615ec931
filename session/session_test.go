package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/fetch"
	"github.com/edgemesh/edge-sync/store"
	"github.com/edgemesh/edge-sync/store/sqlite"
	"github.com/edgemesh/edge-sync/syncer"
)

type recordingDownlink struct {
	mu      sync.Mutex
	msgs    []*DownlinkMsg
	sendErr error
}

func (d *recordingDownlink) Send(_ context.Context, msg *DownlinkMsg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *recordingDownlink) received() []*DownlinkMsg {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*DownlinkMsg(nil), d.msgs...)
}

type testHarness struct {
	store   store.EdgeEventStore
	manager *Manager
	edge    *domain.Edge
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	st, err := sqlite.NewSQLiteEdgeEventStore(
		fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), store.DefaultSeqIDCeiling)
	require.NoError(t, err, "failed to create store")

	svc := syncer.NewService(st, syncer.Providers{}, nil, nil)
	t.Cleanup(svc.Stop)

	manager := NewManager(st, svc, nil)
	svc.SetNotifier(manager)

	quitChan := make(chan struct{})
	t.Cleanup(func() { close(quitChan) })
	manager.Start(quitChan)

	return &testHarness{
		store:   st,
		manager: manager,
		edge:    &domain.Edge{ID: uuid.New(), TenantID: uuid.New(), Name: "test-edge"},
	}
}

func (h *testHarness) append(t *testing.T, body []byte) *events.EdgeEvent {
	t.Helper()
	ev := events.New(h.edge.TenantID, h.edge.ID, events.TypeDevice, events.ActionUpdated, uuid.New(), body)
	_, err := h.store.Save(context.Background(), ev)
	require.NoError(t, err, "failed to append event")
	h.manager.OnEdgeEventUpdate(h.edge.TenantID, h.edge.ID)
	return ev
}

func TestSessionDeliversPendingAndTailedRecords(t *testing.T) {
	h := newTestHarness(t)
	downlink := &recordingDownlink{}

	var mu sync.Mutex
	var lastCursor fetch.Cursor
	opts := Options{
		OnCursor: func(cur fetch.Cursor) {
			mu.Lock()
			lastCursor = cur
			mu.Unlock()
		},
	}

	// appended before the session opens: delivered on the initial drain
	pending := h.append(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- h.manager.OpenSession(ctx, h.edge, downlink, opts)
	}()

	require.Eventually(t, func() bool {
		return len(downlink.received()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, pending.SeqID, downlink.received()[0].SeqID)

	// appended while the session is tailing
	tailed := h.append(t, []byte(`{"isRoot":true}`))
	require.Eventually(t, func() bool {
		return len(downlink.received()) == 2
	}, 3*time.Second, 10*time.Millisecond)

	got := downlink.received()[1]
	require.Equal(t, tailed.SeqID, got.SeqID)
	require.Equal(t, events.TypeDevice, got.Type)
	require.NotNil(t, got.Body)
	require.Equal(t, true, got.Body.Fields["isRoot"].GetBoolValue())

	mu.Lock()
	require.Equal(t, tailed.SeqID+1, lastCursor.SeqIDStart)
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-errChan, context.Canceled)
}

func TestManagerTunablesApplyToSessions(t *testing.T) {
	h := newTestHarness(t)
	h.manager.SetTunables(7, 9)
	downlink := &recordingDownlink{}

	var mu sync.Mutex
	var lastCursor fetch.Cursor
	opts := Options{
		OnCursor: func(cur fetch.Cursor) {
			mu.Lock()
			lastCursor = cur
			mu.Unlock()
		},
	}

	h.append(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = h.manager.OpenSession(ctx, h.edge, downlink, opts)
	}()

	require.Eventually(t, func() bool {
		return len(downlink.received()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, 7, lastCursor.PageSize)
	mu.Unlock()
}

func TestSecondSessionRejected(t *testing.T) {
	h := newTestHarness(t)
	downlink := &recordingDownlink{}

	h.append(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = h.manager.OpenSession(ctx, h.edge, downlink, Options{})
	}()

	// the first session is registered once it has delivered something
	require.Eventually(t, func() bool {
		return len(downlink.received()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	err := h.manager.OpenSession(context.Background(), h.edge, &recordingDownlink{}, Options{})
	require.ErrorIs(t, err, ErrSessionExists)
}

func TestSendFailureClosesSessionWithoutAdvancingCursor(t *testing.T) {
	h := newTestHarness(t)
	sendErr := errors.New("stream broke")
	downlink := &recordingDownlink{sendErr: sendErr}

	cursorAdvanced := false
	opts := Options{
		OnCursor: func(fetch.Cursor) { cursorAdvanced = true },
	}

	h.append(t, nil)
	err := h.manager.OpenSession(context.Background(), h.edge, downlink, opts)
	require.ErrorIs(t, err, sendErr)
	require.False(t, cursorAdvanced)

	// the edge can reconnect and the undelivered record replays
	replay := &recordingDownlink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = h.manager.OpenSession(ctx, h.edge, replay, Options{})
	}()
	require.Eventually(t, func() bool {
		return len(replay.received()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
