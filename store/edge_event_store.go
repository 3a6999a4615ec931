package store

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
)

// DefaultSeqIDCeiling is the bound at which the per-edge sequence
// counter wraps back to 1 when no explicit ceiling is configured.
const DefaultSeqIDCeiling = math.MaxInt32

var ErrEmptyEvent = errors.New("empty edge event")

// EdgeEventStore is the durable, per-tenant-and-edge ordered change log.
// Save assigns a strictly increasing sequence id per edge at append
// time, wrapping at the configured ceiling; FindEdgeEvents reads a
// bounded range forward, ordered by sequence id.
type EdgeEventStore interface {
	// Save appends the event, assigns its SeqID (and CreatedTime when
	// unset) and returns the assigned sequence id.
	Save(ctx context.Context, event *events.EdgeEvent) (int64, error)

	// FindEdgeEvents returns one page of events with
	// seqIDStart <= seqID (and seqID <= seqIDEnd when seqIDEnd > 0),
	// restricted to the link's time window, ordered by seqID ascending.
	FindEdgeEvents(ctx context.Context, tenantID, edgeID uuid.UUID, seqIDStart, seqIDEnd int64, link domain.TimePageLink) (domain.PageData[events.EdgeEvent], error)
}
