// Package metrics defines the Prometheus collectors exported by the sync relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// Metrics groups the relay's collectors.
type Metrics struct {
	RPCs        *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
	Merges      *prometheus.CounterVec
	Conflicts   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashsplitter",
			Name:      "rpc_requests_total",
			Help:      "RPC calls handled by the sync relay, by procedure and result code.",
		}, []string{"procedure", "code"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cashsplitter",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashsplitter",
			Name:      "merges_total",
			Help:      "Merge attempts by outcome (merged, unchanged, created, conflict).",
		}, []string{"outcome"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashsplitter",
			Name:      "merge_conflicts_total",
			Help:      "Conflicts reported by merge attempts, by conflict type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.RPCs, m.RPCDuration, m.Merges, m.Conflicts)
	return m
}

// Merge outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeUnchanged = "unchanged"
	OutcomeMerged    = "merged"
	OutcomeConflict  = "conflict"
)

// ObserveMerge records one merge attempt.
func (m *Metrics) ObserveMerge(outcome string) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(outcome).Inc()
}

// ObserveConflicts records every conflict of a failed merge.
func (m *Metrics) ObserveConflicts(conflicts []models.Conflict) {
	if m == nil {
		return
	}
	for _, c := range conflicts {
		m.Conflicts.WithLabelValues(string(c.Type)).Inc()
	}
}
