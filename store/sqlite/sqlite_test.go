package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgemesh/edge-sync/store"
)

func TestAppendAssignsSeqIDs(t *testing.T) {
	storage, err := NewSQLiteEdgeEventStore("file:testappend?mode=memory&cache=shared", 0)
	require.NoError(t, err, "failed to connect")

	(&store.StoreTest{}).TestAppendAssignsSeqIDs(t, storage)
}

func TestSeqRangeAndPagination(t *testing.T) {
	storage, err := NewSQLiteEdgeEventStore("file:testseqrange?mode=memory&cache=shared", 0)
	require.NoError(t, err, "failed to connect")

	(&store.StoreTest{}).TestSeqRangeAndPagination(t, storage)
}

func TestTimeWindow(t *testing.T) {
	storage, err := NewSQLiteEdgeEventStore("file:testtimewindow?mode=memory&cache=shared", 0)
	require.NoError(t, err, "failed to connect")

	(&store.StoreTest{}).TestTimeWindow(t, storage)
}

func TestSeqIDWraparound(t *testing.T) {
	storage, err := NewSQLiteEdgeEventStore("file:testwraparound?mode=memory&cache=shared", 5)
	require.NoError(t, err, "failed to connect")

	(&store.StoreTest{}).TestSeqIDWraparound(t, storage, 5)
}
