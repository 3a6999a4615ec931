package fetch

import (
	"context"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
)

// Cursor is the per-session state of one fetcher. Bulk fetchers use
// only Page/PageSize; the general (tailing) fetcher drives the seq id
// fields. Times are epoch milliseconds.
type Cursor struct {
	Page     int
	PageSize int

	// tailing state
	StartTime            int64
	SeqIDStart           int64
	SeqIDNewCycleStarted bool
	FirstRun             bool
}

// Fetcher produces one bounded page of pending edge events. FetchPage
// never fails: any internal error is logged and converted to an empty
// terminal page so a single broken entity type cannot halt the caller.
// The returned cursor addresses the following page and must be passed
// back on the next call.
type Fetcher interface {
	InitialCursor(pageSize int) Cursor
	FetchPage(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, cur Cursor) (domain.PageData[events.EdgeEvent], Cursor)
}

// ListFunc is a paged listing query for "entities relevant to this
// edge"; edge-scoped or tenant-wide depending on the entity kind.
type ListFunc func(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, link domain.PageLink) (domain.PageData[domain.EntityInfo], error)

// BodyFunc synthesizes an optional event body for one listed entity.
type BodyFunc func(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, entity domain.EntityInfo) map[string]interface{}
