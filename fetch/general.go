package fetch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/metrics"
	"github.com/edgemesh/edge-sync/store"
)

// MisorderingCompensationMillis is subtracted from a session's start
// time on the first tailing query: change records can commit with a
// created time slightly earlier than when their seq id becomes
// visible, so the lower time bound must be relaxed to avoid skipping
// them.
const MisorderingCompensationMillis int64 = 60_000

// GeneralFetcher tails the change log by sequence cursor and detects
// wraparound of the bounded sequence counter.
type GeneralFetcher struct {
	store               store.EdgeEventStore
	queueStartTs        int64
	seqIDStart          int64
	maxReadRecordsCount int64
	log                 *zap.Logger
}

func NewGeneralFetcher(st store.EdgeEventStore, queueStartTs, seqIDStart, maxReadRecordsCount int64, log *zap.Logger) *GeneralFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeneralFetcher{
		store:               st,
		queueStartTs:        queueStartTs,
		seqIDStart:          seqIDStart,
		maxReadRecordsCount: maxReadRecordsCount,
		log:                 log,
	}
}

func (f *GeneralFetcher) InitialCursor(pageSize int) Cursor {
	return Cursor{
		PageSize:   pageSize,
		StartTime:  f.queueStartTs - MisorderingCompensationMillis,
		SeqIDStart: f.seqIDStart,
		FirstRun:   true,
	}
}

// FetchPage reads the next page of the tailing stream. The returned
// cursor has SeqIDStart advanced past the highest seq id delivered; on
// a detected wraparound SeqIDNewCycleStarted is set and the returned
// page opens the new cycle. Failures degrade to an empty terminal page.
func (f *GeneralFetcher) FetchPage(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, cur Cursor) (domain.PageData[events.EdgeEvent], Cursor) {
	link := domain.TimePageLink{
		PageLink: domain.PageLink{PageSize: cur.PageSize},
		EndTime:  time.Now().UnixMilli(),
	}
	// the compensation window applies to the first query of a session only
	if cur.FirstRun {
		link.StartTime = cur.StartTime
	}

	page, err := f.store.FindEdgeEvents(ctx, tenantID, edge.ID, cur.SeqIDStart, 0, link)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("general").Inc()
		f.log.Error("failed to read edge events, returning empty page",
			zap.Stringer("tenant_id", tenantID),
			zap.Stringer("edge_id", edge.ID),
			zap.Int64("seq_id_start", cur.SeqIDStart),
			zap.Error(err))
		return domain.EmptyPage[events.EdgeEvent](), cur
	}
	if len(page.Data) > 0 {
		next := cur
		next.FirstRun = false
		next.SeqIDNewCycleStarted = false
		next.SeqIDStart = page.Data[len(page.Data)-1].SeqID + 1
		return page, next
	}

	if cur.SeqIDStart > f.maxReadRecordsCount {
		if page, next, ok := f.probeNewCycle(ctx, tenantID, edge, cur); ok {
			return page, next
		}
	}

	f.log.Debug("no new edge events and no new cycle found",
		zap.Stringer("tenant_id", tenantID),
		zap.Stringer("edge_id", edge.ID),
		zap.Int64("seq_id_start", cur.SeqIDStart))
	return domain.EmptyPage[events.EdgeEvent](), cur
}

// probeNewCycle checks a window near zero for records written after
// the sequence counter wrapped. Records found below the current cursor
// mean a new cycle started.
func (f *GeneralFetcher) probeNewCycle(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, cur Cursor) (domain.PageData[events.EdgeEvent], Cursor, bool) {
	seqIDEnd := cur.SeqIDStart - f.maxReadRecordsCount
	if seqIDEnd < f.maxReadRecordsCount {
		seqIDEnd = f.maxReadRecordsCount
	}
	// post-wrap records are necessarily recent, so the probe is bounded
	// by the session's compensated start time; without the bound, stale
	// already-delivered records still retained at low seq ids would be
	// mistaken for a new cycle and the whole log would replay
	link := domain.TimePageLink{
		PageLink:  domain.PageLink{PageSize: cur.PageSize},
		StartTime: cur.StartTime,
	}
	page, err := f.store.FindEdgeEvents(ctx, tenantID, edge.ID, 0, seqIDEnd, link)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("general").Inc()
		f.log.Error("failed to probe for a new seq id cycle",
			zap.Stringer("tenant_id", tenantID),
			zap.Stringer("edge_id", edge.ID),
			zap.Error(err))
		return domain.EmptyPage[events.EdgeEvent](), cur, false
	}
	if len(page.Data) == 0 || page.Data[0].SeqID >= cur.SeqIDStart {
		return domain.EmptyPage[events.EdgeEvent](), cur, false
	}

	metrics.SeqCycleResets.Inc()
	f.log.Info("seq id wraparound detected, starting new cycle",
		zap.Stringer("tenant_id", tenantID),
		zap.Stringer("edge_id", edge.ID),
		zap.Int64("previous_seq_id_start", cur.SeqIDStart),
		zap.Int64("new_cycle_first_seq_id", page.Data[0].SeqID))

	next := cur
	next.FirstRun = false
	next.SeqIDNewCycleStarted = true
	// the cursor restarts at zero and is advanced past the probed page
	next.SeqIDStart = page.Data[len(page.Data)-1].SeqID + 1
	return page, next, true
}
