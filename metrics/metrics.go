package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_events_appended_total",
		Help: "Edge events appended to the change log, by event type and action.",
	}, []string{"type", "action"})

	BackfillFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_backfill_failures_total",
		Help: "Backfill loops aborted by a per-entity-type failure.",
	}, []string{"entity_type"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_fetch_failures_total",
		Help: "Fetch calls degraded to an empty page by an internal failure.",
	}, []string{"fetcher"})

	SeqCycleResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_sync_seq_cycle_resets_total",
		Help: "Detected sequence counter wraparounds across all edges.",
	})

	DownlinkMsgsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_sync_downlink_msgs_sent_total",
		Help: "Downlink messages pushed to delivery channels.",
	})
)
