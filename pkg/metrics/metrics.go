/*
Copyright 2023 Avi Zimmerman <avi.zimmerman@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics contains Prometheus collectors for discovery, probing and
// merging. Collectors live on a private registry that can be written out as a
// node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the metric namespace.
const Namespace = "meshpeers"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	fetches       *prometheus.CounterVec
	discovered    prometheus.Gauge
	merges        *prometheus.CounterVec
	cancellations prometheus.Counter
	purged        prometheus.Counter
}

// New returns a new set of collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "probe",
			Name:      "results_total",
			Help:      "Probe results by outcome.",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "probe",
			Name:      "latency_milliseconds",
			Help:      "Average round trip of reachable peers.",
			Buckets:   []float64{10, 25, 50, 100, 200, 400, 800, 1600},
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "discovery",
			Name:      "fetches_total",
			Help:      "Discovery fetches by result.",
		}, []string{"result"}),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "discovery",
			Name:      "candidates",
			Help:      "Candidates returned by the last successful discovery.",
		}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "merge",
			Name:      "invocations_total",
			Help:      "Merge helper invocations by result.",
		}, []string{"result"}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "cancellations_total",
			Help:      "Batches cancelled before completion.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "purged_total",
			Help:      "Queued probes dropped by a cancellation.",
		}),
	}
	m.Registry.MustRegister(
		m.probes,
		m.probeLatency,
		m.fetches,
		m.discovered,
		m.merges,
		m.cancellations,
		m.purged,
	)
	return m
}

// ObserveProbe records one probe result. Latency is only observed for
// reachable peers.
func (m *Metrics) ObserveProbe(outcome string, latencyMs int, reachable bool) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
	if reachable {
		m.probeLatency.Observe(float64(latencyMs))
	}
}

// ObserveFetch records a discovery fetch.
func (m *Metrics) ObserveFetch(err error, candidates int) {
	if m == nil {
		return
	}
	if err != nil {
		m.fetches.WithLabelValues("error").Inc()
		return
	}
	m.fetches.WithLabelValues("ok").Inc()
	m.discovered.Set(float64(candidates))
}

// ObserveMerge records a merge helper invocation.
func (m *Metrics) ObserveMerge(result string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(result).Inc()
}

// ObserveCancel records a batch cancellation and the number of queued probes
// it dropped.
func (m *Metrics) ObserveCancel(purged int) {
	if m == nil {
		return
	}
	m.cancellations.Inc()
	m.purged.Add(float64(purged))
}

// WriteTextfile writes the registry to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
