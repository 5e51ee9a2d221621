// Package metrics defines the Prometheus metric families exported by the watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const pubkeyLabel = "pubkey"

type Metrics struct {
	Slot                 prometheus.Gauge
	Epoch                prometheus.Gauge
	WatchedValidators    prometheus.Gauge
	OurExitedValidators  prometheus.Gauge
	KeyExitedValidators  *prometheus.GaugeVec
	FutureBlockProposals prometheus.Gauge
	KeyFutureProposals   *prometheus.CounterVec
	ProposedBlocks       prometheus.Counter
	MissedBlocks         prometheus.Counter
	KeyProposedBlocks    *prometheus.CounterVec
	KeyMissedBlocks      *prometheus.CounterVec
	DutyFetchFailures    prometheus.Counter
	NotificationFailures prometheus.Counter
}

// New creates all metric families and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Slot: f.NewGauge(prometheus.GaugeOpts{
			Name: "eth_slot",
			Help: "Slot currently processed by the watcher",
		}),
		Epoch: f.NewGauge(prometheus.GaugeOpts{
			Name: "eth_epoch",
			Help: "Epoch currently processed by the watcher",
		}),
		WatchedValidators: f.NewGauge(prometheus.GaugeOpts{
			Name: "watched_validators_count",
			Help: "Number of public keys in the watch list",
		}),
		OurExitedValidators: f.NewGauge(prometheus.GaugeOpts{
			Name: "our_exited_validators_count",
			Help: "Our exited validators count",
		}),
		KeyExitedValidators: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "key_exited_validators",
			Help: "Key exited validator",
		}, []string{pubkeyLabel}),
		FutureBlockProposals: f.NewGauge(prometheus.GaugeOpts{
			Name: "future_block_proposals_count",
			Help: "Future block proposals count",
		}),
		KeyFutureProposals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "key_future_block_proposals_count",
			Help: "Key future block proposals",
		}, []string{pubkeyLabel}),
		ProposedBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "proposed_block_proposals_count",
			Help: "Proposed block proposals count",
		}),
		MissedBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "missed_block_proposals_count",
			Help: "Missed block proposals count",
		}),
		KeyProposedBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "key_proposed_block_proposals_count",
			Help: "Key proposed block proposals count",
		}, []string{pubkeyLabel}),
		KeyMissedBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "key_missed_block_proposals_count",
			Help: "Key missed block proposals count",
		}, []string{pubkeyLabel}),
		DutyFetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "proposer_duties_fetch_failures_total",
			Help: "Proposer duty fetches that failed and were treated as empty",
		}),
		NotificationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Notifications that could not be delivered",
		}),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}
