package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/fetch"
	"github.com/edgemesh/edge-sync/metrics"
	"github.com/edgemesh/edge-sync/store"
	"github.com/edgemesh/edge-sync/syncer"
)

// CursorListener observes cursor advancement after each fully
// delivered page, so the caller can persist the edge's resume point.
type CursorListener func(cur fetch.Cursor)

// Options shape one delivery session.
type Options struct {
	// SyncRequired triggers a full backfill before tailing starts.
	SyncRequired bool
	// SeqIDStart is the edge's persisted resume cursor.
	SeqIDStart int64
	// MaxReadRecordsCount bounds pages and the wraparound probe window.
	MaxReadRecordsCount int64
	PageSize            int
	OnCursor            CursorListener
}

// session tails the change log for one connected edge and pushes each
// pending record over its downlink. Delivery is at-least-once with
// page granularity: the cursor only advances after a page is fully
// sent, so a transport failure replays the unacknowledged page on
// reconnect.
type session struct {
	edge     *domain.Edge
	downlink Downlink
	store    store.EdgeEventStore
	svc      *syncer.Service
	sub      *subscription
	opts     Options
	log      *zap.Logger
}

func (s *session) run(ctx context.Context) error {
	if s.opts.SyncRequired {
		s.svc.SyncEdge(ctx, s.edge)
	}

	queueStartTs := time.Now().UnixMilli()
	fetcher := fetch.NewGeneralFetcher(s.store, queueStartTs, s.opts.SeqIDStart, s.opts.MaxReadRecordsCount, s.log)
	cur := fetcher.InitialCursor(s.opts.PageSize)

	for {
		for {
			page, next := fetcher.FetchPage(ctx, s.edge.TenantID, s.edge, cur)
			if len(page.Data) == 0 {
				break
			}
			if err := s.deliverPage(ctx, page.Data); err != nil {
				// cursor not advanced: the page replays on the next session
				return err
			}
			cur = next
			if s.opts.OnCursor != nil {
				s.opts.OnCursor(cur)
			}
		}

		select {
		case _, ok := <-s.sub.notifyCh:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *session) deliverPage(ctx context.Context, records []events.EdgeEvent) error {
	for i := range records {
		msg, err := toDownlinkMsg(&records[i])
		if err != nil {
			// a malformed body is not recoverable by retrying; skip it
			s.log.Error("skipping undeliverable change record",
				zap.Int64("seq_id", records[i].SeqID),
				zap.Stringer("edge_id", s.edge.ID),
				zap.Error(err))
			continue
		}
		if err := s.downlink.Send(ctx, msg); err != nil {
			return err
		}
		metrics.DownlinkMsgsSent.Inc()
	}
	return nil
}
