// Package metrics counts what a backing instance did: ticks, run requests,
// rule evaluations, simulated runs and event log writes.
//
// Each Recorder owns a private prometheus.Registry so parallel scenarios
// never share counters. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Recorder holds the counters of one backing instance.
type Recorder struct {
	registry        *prometheus.Registry
	ticks           prometheus.Counter
	runRequests     prometheus.Counter
	ruleEvaluations *prometheus.CounterVec
	runs            *prometheus.CounterVec
	events          *prometheus.CounterVec
	selectionSize   prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amp_ticks_total",
			Help: "Total number of tick evaluations",
		}),
		runRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amp_run_requests_total",
			Help: "Total number of run requests emitted by ticks",
		}),
		ruleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amp_rule_evaluations_total",
				Help: "Asset partitions affected by fired rules, by decision",
			},
			[]string{"decision"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amp_runs_total",
				Help: "Simulated runs by final status",
			},
			[]string{"status"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amp_events_total",
				Help: "Event log entries written by simulated runs",
			},
			[]string{"event_type"},
		),
		selectionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "amp_run_selection_size",
			Help:    "Number of assets selected per simulated run",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}),
	}
	r.registry.MustRegister(r.ticks, r.runRequests, r.ruleEvaluations, r.runs, r.events, r.selectionSize)
	return r
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveTick records one tick and the run requests it emitted.
func (r *Recorder) ObserveTick(runRequests int) {
	if r == nil {
		return
	}
	r.ticks.Inc()
	r.runRequests.Add(float64(runRequests))
}

// ObserveRuleEvaluation records n asset partitions decided by a rule.
func (r *Recorder) ObserveRuleEvaluation(decision string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ruleEvaluations.WithLabelValues(decision).Add(float64(n))
}

// ObserveRun records a finished simulated run.
func (r *Recorder) ObserveRun(status string, selectionSize int) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
	r.selectionSize.Observe(float64(selectionSize))
}

// ObserveEvent records one event log write.
func (r *Recorder) ObserveEvent(eventType string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(eventType).Inc()
}

// Snapshot flattens every counter into "name{label=value}" -> value.
// Histograms contribute their sample count as name_count.
func (r *Recorder) Snapshot() (map[string]float64, error) {
	out := map[string]float64{}
	if r == nil {
		return out, nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + labelSuffix(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[name] = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[mf.GetName()+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, lp := range labels {
		parts[i] = lp.GetName() + "=" + lp.GetValue()
	}
	slices.Sort(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
