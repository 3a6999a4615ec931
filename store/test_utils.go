package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
)

// StoreTest is a conformance harness shared by every EdgeEventStore
// backend.
type StoreTest struct{}

func (s *StoreTest) TestAppendAssignsSeqIDs(t *testing.T, storage EdgeEventStore) {
	ctx := context.Background()
	tenantID := uuid.New()
	edgeID := uuid.New()

	seqID, err := storage.Save(ctx, events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil))
	require.NoError(t, err, "failed to save first event")
	require.Equal(t, int64(1), seqID)

	seqID, err = storage.Save(ctx, events.New(tenantID, edgeID, events.TypeAsset, events.ActionUpdated, uuid.New(), []byte(`{"k":"v"}`)))
	require.NoError(t, err, "failed to save second event")
	require.Equal(t, int64(2), seqID)

	// counters are independent across edges
	otherEdgeID := uuid.New()
	seqID, err = storage.Save(ctx, events.New(tenantID, otherEdgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil))
	require.NoError(t, err, "failed to save event for another edge")
	require.Equal(t, int64(1), seqID)

	page, err := storage.FindEdgeEvents(ctx, tenantID, edgeID, 1, 0, timeLink(0, 0, 10))
	require.NoError(t, err, "failed to find edge events")
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(1), page.Data[0].SeqID)
	require.Equal(t, events.TypeDevice, page.Data[0].Type)
	require.Equal(t, int64(2), page.Data[1].SeqID)
	require.Equal(t, []byte(`{"k":"v"}`), page.Data[1].Body)
	require.False(t, page.HasNext)
}

func (s *StoreTest) TestSeqRangeAndPagination(t *testing.T, storage EdgeEventStore) {
	ctx := context.Background()
	tenantID := uuid.New()
	edgeID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := storage.Save(ctx, events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil))
		require.NoError(t, err, "failed to save event")
	}

	page, err := storage.FindEdgeEvents(ctx, tenantID, edgeID, 2, 4, timeLink(0, 0, 2))
	require.NoError(t, err, "failed to find edge events")
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(2), page.Data[0].SeqID)
	require.Equal(t, int64(3), page.Data[1].SeqID)
	require.Equal(t, int64(3), page.TotalElements)
	require.Equal(t, 2, page.TotalPages)
	require.True(t, page.HasNext)

	nextLink := timeLink(0, 0, 2)
	nextLink.Page = 1
	next, err := storage.FindEdgeEvents(ctx, tenantID, edgeID, 2, 4, nextLink)
	require.NoError(t, err, "failed to find edge events next page")
	require.Len(t, next.Data, 1)
	require.Equal(t, int64(4), next.Data[0].SeqID)
	require.False(t, next.HasNext)
}

func (s *StoreTest) TestTimeWindow(t *testing.T, storage EdgeEventStore) {
	ctx := context.Background()
	tenantID := uuid.New()
	edgeID := uuid.New()
	now := time.Now().UnixMilli()

	old := events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil)
	old.CreatedTime = now - 120_000
	_, err := storage.Save(ctx, old)
	require.NoError(t, err, "failed to save old event")

	recent := events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil)
	recent.CreatedTime = now - 10_000
	_, err = storage.Save(ctx, recent)
	require.NoError(t, err, "failed to save recent event")

	page, err := storage.FindEdgeEvents(ctx, tenantID, edgeID, 0, 0, timeLink(now-60_000, now, 10))
	require.NoError(t, err, "failed to find edge events")
	require.Len(t, page.Data, 1)
	require.Equal(t, recent.SeqID, page.Data[0].SeqID)
}

func (s *StoreTest) TestSeqIDWraparound(t *testing.T, storage EdgeEventStore, ceiling int64) {
	ctx := context.Background()
	tenantID := uuid.New()
	edgeID := uuid.New()

	for i := int64(0); i < ceiling; i++ {
		seqID, err := storage.Save(ctx, events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil))
		require.NoError(t, err, "failed to save event")
		require.Equal(t, i+1, seqID)
	}

	seqID, err := storage.Save(ctx, events.New(tenantID, edgeID, events.TypeDevice, events.ActionAdded, uuid.New(), nil))
	require.NoError(t, err, "failed to save wrapping event")
	require.Equal(t, int64(1), seqID, "counter must restart at 1 past the ceiling")
}

func timeLink(startTime, endTime int64, pageSize int) domain.TimePageLink {
	return domain.TimePageLink{
		PageLink:  domain.PageLink{PageSize: pageSize},
		StartTime: startTime,
		EndTime:   endTime,
	}
}
