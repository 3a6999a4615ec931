package postgres

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgemesh/edge-sync/store"
)

func testStorage(t *testing.T) *PgEdgeEventStore {
	databaseURL := os.Getenv("TEST_PG_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_PG_DATABASE_URL not set")
	}
	storage, err := NewPgEdgeEventStore(databaseURL, 0)
	require.NoError(t, err, "failed to connect")
	return storage
}

func TestAppendAssignsSeqIDs(t *testing.T) {
	(&store.StoreTest{}).TestAppendAssignsSeqIDs(t, testStorage(t))
}

func TestSeqRangeAndPagination(t *testing.T) {
	(&store.StoreTest{}).TestSeqRangeAndPagination(t, testStorage(t))
}

func TestTimeWindow(t *testing.T) {
	(&store.StoreTest{}).TestTimeWindow(t, testStorage(t))
}
