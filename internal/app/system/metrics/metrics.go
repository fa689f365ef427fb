// Package metrics defines the Prometheus series the service exports on
// /metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_notifications_written_total",
		Help: "Notification writes by type and outcome (delivered, duplicate, failed).",
	}, []string{"type", "outcome"})

	DispatchAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_dispatch_aborted_total",
		Help: "Events dropped before fan-out, by reason.",
	}, []string{"reason"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripledger_dispatch_duration_seconds",
		Help:    "Time to dispatch one event.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"type"})

	TriggerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_trigger_events_total",
		Help: "Change events observed by the trigger watcher.",
	}, []string{"collection", "operation"})

	ReconcileActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_reconcile_actions_total",
		Help: "Login reconciliation actions (claimed, migrated, orphaned, backfilled, failed).",
	}, []string{"action"})

	SweptAccounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripledger_swept_accounts_total",
		Help: "Accounts processed by the lifecycle sweeper, by outcome.",
	}, []string{"outcome"})
)

// Counter is the subset of collection totals exported as gauges.
type Counter interface {
	Counts(ctx context.Context) map[string]int64
}

var registerOnce sync.Once

// RegisterCollectionGauges exports src's totals as tripledger_collection_documents
// gauges. The counts are read at scrape time with a short deadline.
func RegisterCollectionGauges(src Counter) {
	registerOnce.Do(func() {
		prometheus.MustRegister(&collectionCollector{src: src})
	})
}

var collectionDesc = prometheus.NewDesc(
	"tripledger_collection_documents",
	"Documents per logical collection.",
	[]string{"collection"}, nil,
)

type collectionCollector struct {
	src Counter
}

func (c *collectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collectionDesc
}

func (c *collectionCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for name, n := range c.src.Counts(ctx) {
		ch <- prometheus.MustNewConstMetric(collectionDesc, prometheus.GaugeValue, float64(n), name)
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
