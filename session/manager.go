// Package session manages per-edge delivery sessions: each connected
// edge gets one tailing loop that pushes pending change records over
// its downlink and wakes on append notifications.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/store"
	"github.com/edgemesh/edge-sync/syncer"
)

// ErrSessionExists is returned when an edge already has an open
// delivery session; an edge connects at most once.
var ErrSessionExists = errors.New("edge already has an active session")

const (
	DefaultPageSize            = 100
	DefaultMaxReadRecordsCount = 50
)

// Manager owns the delivery sessions of all connected edges. It
// implements syncer.Notifier so appends flow straight into session
// wakeups.
type Manager struct {
	sync.Mutex
	store         store.EdgeEventStore
	svc           *syncer.Service
	eventsManager *eventsManager
	active        map[edgeKey]struct{}
	log           *zap.Logger

	pageSize            int
	maxReadRecordsCount int64
}

func NewManager(st store.EdgeEventStore, svc *syncer.Service, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:               st,
		svc:                 svc,
		eventsManager:       newEventsManager(),
		active:              make(map[edgeKey]struct{}),
		log:                 log,
		pageSize:            DefaultPageSize,
		maxReadRecordsCount: DefaultMaxReadRecordsCount,
	}
}

// SetTunables overrides the fallback page size and tailing read bound
// applied to sessions that do not set them explicitly.
func (m *Manager) SetTunables(pageSize int, maxReadRecordsCount int64) {
	if pageSize > 0 {
		m.pageSize = pageSize
	}
	if maxReadRecordsCount > 0 {
		m.maxReadRecordsCount = maxReadRecordsCount
	}
}

func (m *Manager) Start(quitChan chan struct{}) {
	m.eventsManager.start(quitChan)
}

// OnEdgeEventUpdate wakes the edge's session, if any.
func (m *Manager) OnEdgeEventUpdate(tenantID, edgeID uuid.UUID) {
	m.eventsManager.notify(edgeKey{tenantID: tenantID, edgeID: edgeID})
}

// OpenSession runs a delivery session for the edge until ctx is done
// or the downlink fails. It blocks for the lifetime of the session.
func (m *Manager) OpenSession(ctx context.Context, edge *domain.Edge, downlink Downlink, opts Options) error {
	if opts.PageSize <= 0 {
		opts.PageSize = m.pageSize
	}
	if opts.MaxReadRecordsCount <= 0 {
		opts.MaxReadRecordsCount = m.maxReadRecordsCount
	}

	key := edgeKey{tenantID: edge.TenantID, edgeID: edge.ID}
	m.Lock()
	if _, ok := m.active[key]; ok {
		m.Unlock()
		return ErrSessionExists
	}
	m.active[key] = struct{}{}
	m.Unlock()
	defer func() {
		m.Lock()
		delete(m.active, key)
		m.Unlock()
	}()

	sub := m.eventsManager.subscribe(key)
	defer m.eventsManager.unsubscribe(key, sub.id)

	m.log.Info("edge session opened",
		zap.Stringer("tenant_id", edge.TenantID),
		zap.Stringer("edge_id", edge.ID),
		zap.Bool("sync_required", opts.SyncRequired),
		zap.Int64("seq_id_start", opts.SeqIDStart))
	defer m.log.Info("edge session closed",
		zap.Stringer("tenant_id", edge.TenantID),
		zap.Stringer("edge_id", edge.ID))

	s := &session{
		edge:     edge,
		downlink: downlink,
		store:    m.store,
		svc:      m.svc,
		sub:      sub,
		opts:     opts,
		log:      m.log,
	}
	return s.run(ctx)
}
