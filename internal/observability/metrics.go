// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oracleScope/internal/model"
)

// Part labels for UnavailableParts.
const (
	PartStage       = "stage"
	PartEpoch       = "epoch"
	PartPreparation = "preparation"
	PartDatapoint   = "datapoint"
	PartDeposits    = "deposits"
)

// Metrics holds the Prometheus metrics of the watch loop.
type Metrics struct {
	registry *prometheus.Registry

	// Poll metrics
	PollsTotal       prometheus.Counter
	SnapshotsStored  prometheus.Counter
	StoreErrors      prometheus.Counter
	UnavailableParts *prometheus.CounterVec
	PollDuration     prometheus.Histogram

	// Pool state
	PoolStage          prometheus.Gauge
	EpochEnds          prometheus.Gauge
	NextEpochEnds      prometheus.Gauge
	DatapointCommitted prometheus.Gauge
	LocalDatapoint     prometheus.Gauge
	DepositBoxes       prometheus.Gauge
	DepositNanoErgs    prometheus.Gauge

	// Health
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "oracle_pool"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "polls_total",
			Help:      "Total number of pool snapshots taken",
		}),
		SnapshotsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "snapshots_stored_total",
			Help:      "Total number of changed snapshots written to storage",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "store_errors_total",
			Help:      "Total number of failed snapshot writes",
		}),
		UnavailableParts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "unavailable_parts_total",
			Help:      "Total number of snapshot parts that could not be resolved",
		}, []string{"part"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "poll_duration_seconds",
			Help:      "Time taken to take one pool snapshot",
			Buckets:   prometheus.DefBuckets,
		}),

		PoolStage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "stage",
			Help:      "Pool box stage: 0 preparation, 1 epoch",
		}),
		EpochEnds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "epoch_ends_height",
			Help:      "Block height at which the live epoch ends",
		}),
		NextEpochEnds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "next_epoch_ends_height",
			Help:      "Block height at which the next epoch ends",
		}),
		DatapointCommitted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "datapoint_committed",
			Help:      "1 when the local oracle posted a datapoint in the live epoch",
		}),
		LocalDatapoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "local_datapoint",
			Help:      "Latest datapoint posted by the local oracle",
		}),
		DepositBoxes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "deposit_boxes",
			Help:      "Number of unspent pool deposit boxes",
		}),
		DepositNanoErgs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "deposit_nanoergs",
			Help:      "Total value held in pool deposit boxes",
		}),

		LastSuccessfulPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last poll with every part resolved",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSnapshot updates the pool gauges from a snapshot and counts the parts
// that should have been resolved but were not. A datapoint box that does not
// exist is a valid state and only a failed datapoint scan counts against it.
// It reports whether every part was resolved.
func (m *Metrics) RecordSnapshot(snap model.PoolSnapshot) bool {
	m.PollsTotal.Inc()

	complete := true
	missing := func(part string) {
		m.UnavailableParts.WithLabelValues(part).Inc()
		complete = false
	}

	stageKnown := snap.StageKnown()
	if stageKnown {
		m.PoolStage.Set(float64(snap.Stage))
	} else {
		missing(PartStage)
	}

	if snap.Epoch != nil {
		m.EpochEnds.Set(float64(snap.Epoch.EpochEnds))
		if snap.Epoch.CommitDatapointInEpoch {
			m.DatapointCommitted.Set(1)
		} else {
			m.DatapointCommitted.Set(0)
		}
	} else if snap.ScanFailed(model.StageLiveEpoch) || (stageKnown && snap.Stage == model.Epoch) {
		missing(PartEpoch)
	}

	if snap.Preparation != nil {
		m.NextEpochEnds.Set(float64(snap.Preparation.NextEpochEnds))
	} else if stageKnown && snap.Stage == model.Preparation {
		missing(PartPreparation)
	}

	if snap.Datapoint != nil {
		m.LocalDatapoint.Set(float64(snap.Datapoint.Datapoint))
	} else if snap.ScanFailed(model.StageDatapoint) {
		missing(PartDatapoint)
	}

	if snap.Deposits != nil {
		m.DepositBoxes.Set(float64(snap.Deposits.NumberOfBoxes))
		m.DepositNanoErgs.Set(float64(snap.Deposits.TotalErgs))
	} else {
		missing(PartDeposits)
	}

	if complete {
		m.LastSuccessfulPoll.Set(float64(snap.ObservedAt.Unix()))
	}
	return complete
}
