package fetch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/store"
)

// memStore is a minimal in-memory EdgeEventStore with the same query
// semantics as the real backends, letting tests seed records at
// arbitrary seq ids.
type memStore struct {
	events  []events.EdgeEvent
	nextSeq int64
	err     error
}

func (m *memStore) Save(_ context.Context, ev *events.EdgeEvent) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if ev.SeqID == 0 {
		m.nextSeq++
		ev.SeqID = m.nextSeq
	}
	if ev.CreatedTime == 0 {
		ev.CreatedTime = time.Now().UnixMilli()
	}
	m.events = append(m.events, *ev)
	return ev.SeqID, nil
}

func (m *memStore) FindEdgeEvents(_ context.Context, tenantID, edgeID uuid.UUID, seqIDStart, seqIDEnd int64, link domain.TimePageLink) (domain.PageData[events.EdgeEvent], error) {
	if m.err != nil {
		return domain.EmptyPage[events.EdgeEvent](), m.err
	}
	var matched []events.EdgeEvent
	for _, ev := range m.events {
		if ev.TenantID != tenantID || ev.EdgeID != edgeID {
			continue
		}
		if ev.SeqID < seqIDStart || (seqIDEnd != 0 && ev.SeqID > seqIDEnd) {
			continue
		}
		if ev.CreatedTime < link.StartTime || (link.EndTime != 0 && ev.CreatedTime > link.EndTime) {
			continue
		}
		matched = append(matched, ev)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SeqID < matched[j].SeqID })

	total := int64(len(matched))
	start := link.Page * link.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + link.PageSize
	if link.PageSize <= 0 || end > len(matched) {
		end = len(matched)
	}
	return store.PageOf(matched[start:end], link.PageLink, total), nil
}

func (m *memStore) seed(tenantID, edgeID uuid.UUID, seqID, createdTime int64) {
	m.events = append(m.events, events.EdgeEvent{
		TenantID:    tenantID,
		EdgeID:      edgeID,
		SeqID:       seqID,
		Type:        events.TypeDevice,
		Action:      events.ActionUpdated,
		EntityID:    uuid.New(),
		CreatedTime: createdTime,
	})
}
