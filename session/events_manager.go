package session

import (
	"sync/atomic"

	"github.com/google/uuid"
)

type edgeKey struct {
	tenantID uuid.UUID
	edgeID   uuid.UUID
}

type notifyUpdate struct {
	key edgeKey
}

type unsubscribe struct {
	key edgeKey
	id  int64
}

// subscription wakes one delivery session when new change records are
// appended for its edge. notifyCh is buffered with capacity one so
// rapid updates coalesce into a single wakeup.
type subscription struct {
	id       int64
	key      edgeKey
	notifyCh chan struct{}
}

type eventsManager struct {
	globalIDs atomic.Int64
	streams   map[edgeKey][]*subscription
	msgChan   chan interface{}
}

func newEventsManager() *eventsManager {
	return &eventsManager{
		streams: make(map[edgeKey][]*subscription),
		msgChan: make(chan interface{}),
	}
}

func (c *eventsManager) start(quitChan chan struct{}) {
	go func() {
		for {
			select {
			case msg := <-c.msgChan:
				if s, ok := msg.(*subscription); ok {
					c.streams[s.key] = append(c.streams[s.key], s)
				}
				if s, ok := msg.(*unsubscribe); ok {
					var newSubs []*subscription
					for _, sub := range c.streams[s.key] {
						if sub.id != s.id {
							newSubs = append(newSubs, sub)
							continue
						}
						close(sub.notifyCh)
					}
					delete(c.streams, s.key)
					if len(newSubs) > 0 {
						c.streams[s.key] = newSubs
					}
				}
				if s, ok := msg.(*notifyUpdate); ok {
					for _, sub := range c.streams[s.key] {
						select {
						case sub.notifyCh <- struct{}{}:
						default:
						}
					}
				}

			case <-quitChan:
				return
			}
		}
	}()
}

func (c *eventsManager) notify(key edgeKey) {
	c.msgChan <- &notifyUpdate{key: key}
}

func (c *eventsManager) subscribe(key edgeKey) *subscription {
	s := &subscription{key: key, notifyCh: make(chan struct{}, 1), id: c.globalIDs.Add(1)}
	c.msgChan <- s
	return s
}

func (c *eventsManager) unsubscribe(key edgeKey, id int64) {
	c.msgChan <- &unsubscribe{key: key, id: id}
}
