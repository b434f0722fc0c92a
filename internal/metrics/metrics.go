package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                *prometheus.Registry
	Applied            prometheus.Counter
	Skipped            prometheus.Counter
	TTRSec             prometheus.Gauge
	Lag                prometheus.Gauge
	LastManifestAgeSec prometheus.Gauge
	SnapshotsWritten   prometheus.Counter

	// shopping list activity
	RecipesMerged     prometheus.Counter
	ItemsCreated      prometheus.Counter
	ItemsMerged       prometheus.Counter
	RowsSkipped       prometheus.Counter
	AddsRejected      *prometheus.CounterVec
	ListItems         prometheus.Gauge
	MergeLatencySec   prometheus.Histogram
	ChangelogAppended prometheus.Counter
	CommandsConsumed  *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_replay_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_replay_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shoplist_recovery_ttr_seconds"})
	lag := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shoplist_changelog_lag"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shoplist_last_manifest_age_seconds"})
	snaps := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_snapshots_written_total"})

	merged := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_recipes_merged_total"})
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_items_created_total"})
	itemsMerged := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_items_merged_total"})
	rowsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shoplist_rows_skipped_total",
		Help: "Recipe rows whose ingredient was missing from the catalog.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "shoplist_adds_rejected_total"}, []string{"reason"})
	listItems := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shoplist_list_items"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shoplist_merge_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "shoplist_changelog_appended_total", Help: "Collection writes journaled to the changelog, any key"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "shoplist_commands_consumed_total"}, []string{"type", "result"})

	r.MustRegister(applied, skipped, ttr, lag, lastAge, snaps, merged, created, itemsMerged, rowsSkipped,
		rejected, listItems, latency, appended, consumed)
	return &Registry{
		reg:                r,
		Applied:            applied,
		Skipped:            skipped,
		TTRSec:             ttr,
		Lag:                lag,
		LastManifestAgeSec: lastAge,
		SnapshotsWritten:   snaps,
		RecipesMerged:      merged,
		ItemsCreated:       created,
		ItemsMerged:        itemsMerged,
		RowsSkipped:        rowsSkipped,
		AddsRejected:       rejected,
		ListItems:          listItems,
		MergeLatencySec:    latency,
		ChangelogAppended:  appended,
		CommandsConsumed:   consumed,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
