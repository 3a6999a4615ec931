package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/edgemesh/edge-sync/domain"
)

func testEdge() *domain.Edge {
	return &domain.Edge{ID: uuid.New(), TenantID: uuid.New(), Name: "test-edge"}
}

func TestTailDeliversInSeqOrderAndAdvances(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	for seq := int64(1); seq <= 5; seq++ {
		st.seed(edge.TenantID, edge.ID, seq, now)
	}

	f := NewGeneralFetcher(st, now, 1, 50, nil)
	cur := f.InitialCursor(10)

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Len(t, page.Data, 5)
	for i, ev := range page.Data {
		require.Equal(t, int64(i+1), ev.SeqID)
	}
	require.Equal(t, int64(6), next.SeqIDStart)
	require.False(t, next.FirstRun)
	require.False(t, next.SeqIDNewCycleStarted)

	// nothing new yet
	page, again := f.FetchPage(context.Background(), edge.TenantID, edge, next)
	require.Empty(t, page.Data)
	require.Equal(t, next, again)

	// one more record shows up exactly once
	st.seed(edge.TenantID, edge.ID, 6, time.Now().UnixMilli())
	page, next = f.FetchPage(context.Background(), edge.TenantID, edge, again)
	require.Len(t, page.Data, 1)
	require.Equal(t, int64(6), page.Data[0].SeqID)
	require.Equal(t, int64(7), next.SeqIDStart)
}

func TestFirstRunTimeWindow(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	// committed slightly before the session start: inside the window
	st.seed(edge.TenantID, edge.ID, 1, now-30_000)
	// long before the session start: outside the window
	st.seed(edge.TenantID, edge.ID, 2, now-120_000)
	st.seed(edge.TenantID, edge.ID, 3, now)

	f := NewGeneralFetcher(st, now, 1, 50, nil)
	cur := f.InitialCursor(10)
	require.True(t, cur.FirstRun)
	require.Equal(t, now-MisorderingCompensationMillis, cur.StartTime)

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(1), page.Data[0].SeqID)
	require.Equal(t, int64(3), page.Data[1].SeqID)

	// after the first call the lower time bound no longer applies
	st.seed(edge.TenantID, edge.ID, 4, now-120_000)
	page, _ = f.FetchPage(context.Background(), edge.TenantID, edge, next)
	require.Len(t, page.Data, 1)
	require.Equal(t, int64(4), page.Data[0].SeqID)
}

func TestCycleDetection(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	// records written after the counter wrapped
	st.seed(edge.TenantID, edge.ID, 1, now)
	st.seed(edge.TenantID, edge.ID, 2, now)
	st.seed(edge.TenantID, edge.ID, 3, now)

	f := NewGeneralFetcher(st, now, 100, 50, nil)
	cur := f.InitialCursor(10)
	cur.FirstRun = false

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Len(t, page.Data, 3)
	require.Equal(t, int64(1), page.Data[0].SeqID)
	require.True(t, next.SeqIDNewCycleStarted)
	require.Equal(t, int64(4), next.SeqIDStart)
}

func TestStaleLowSeqIDsAreNotANewCycle(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	// already-delivered records at seq ids 5, 7, 9
	st.seed(edge.TenantID, edge.ID, 5, now)
	st.seed(edge.TenantID, edge.ID, 7, now)
	st.seed(edge.TenantID, edge.ID, 9, now)

	// a large probe threshold keeps the cursor inside the first cycle
	f := NewGeneralFetcher(st, now, 10, 1_000_000, nil)
	cur := f.InitialCursor(10)
	cur.FirstRun = false

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Empty(t, page.Data)
	require.Equal(t, cur, next)
	require.False(t, next.SeqIDNewCycleStarted)
}

func TestIdleResumeDoesNotReplayHistory(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	// a long-delivered log, all records predating this session
	for seq := int64(1); seq <= 100; seq++ {
		st.seed(edge.TenantID, edge.ID, seq, now-3_600_000)
	}

	f := NewGeneralFetcher(st, now, 101, 50, nil)
	cur := f.InitialCursor(10)

	// nothing changed since the persisted cursor: every poll is a
	// benign empty page, never a replay from seq id 1
	for i := 0; i < 3; i++ {
		page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
		require.Empty(t, page.Data, "idle reconnect must not redeliver consumed records")
		require.False(t, next.SeqIDNewCycleStarted)
		require.Equal(t, int64(101), next.SeqIDStart)
		cur = next
	}
}

func TestProbeWindowExcludesCurrentCycleRecords(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{}
	// just below the cursor but above the probe window: same cycle
	st.seed(edge.TenantID, edge.ID, 60, now)

	f := NewGeneralFetcher(st, now, 60, 50, nil)
	cur := f.InitialCursor(10)
	cur.FirstRun = false
	cur.SeqIDStart = 61

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Empty(t, page.Data)
	require.Equal(t, cur, next)
}

func TestFetchFailureReturnsEmptyPageUnchangedCursor(t *testing.T) {
	edge := testEdge()
	now := time.Now().UnixMilli()
	st := &memStore{err: fmt.Errorf("db is down")}

	f := NewGeneralFetcher(st, now, 1, 50, nil)
	cur := f.InitialCursor(10)

	page, next := f.FetchPage(context.Background(), edge.TenantID, edge, cur)
	require.Empty(t, page.Data)
	require.Equal(t, cur, next)
}
