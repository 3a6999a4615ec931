package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestConcurrentSubscribeAssignsDistinctIDs(t *testing.T) {
	em := newEventsManager()
	quitChan := make(chan struct{})
	defer close(quitChan)
	em.start(quitChan)

	const subscribers = 20
	var wg sync.WaitGroup
	ids := make(chan int64, subscribers)
	for i := 0; i < subscribers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := edgeKey{tenantID: uuid.New(), edgeID: uuid.New()}
			sub := em.subscribe(key)
			ids <- sub.id
			em.unsubscribe(key, sub.id)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{})
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "subscription id assigned twice")
		seen[id] = struct{}{}
	}
	require.Len(t, seen, subscribers)
}
