/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pgupgrade"

// Metrics collects step outcomes of upgrade runs. The tool exits after a
// run, so the registry is written out as a node exporter textfile instead of
// being served.
type Metrics struct {
	registry *prometheus.Registry

	stepDuration    *prometheus.HistogramVec
	stepTotal       *prometheus.CounterVec
	upgradeRequired prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	lastRunTime     prometheus.Gauge
}

// NewMetrics returns metrics registered with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "step_duration_seconds",
				Help:      "Time taken by each executed upgrade step.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
			}, []string{"step"},
		),
		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "steps_total",
				Help:      "Upgrade steps by outcome.",
			}, []string{"step", "status"},
		),
		upgradeRequired: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "upgrade_required",
				Help:      "1 if the data directory was found in the legacy format.",
			},
		),
		lastRunSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_run_success",
				Help:      "1 if the last run finished without error.",
			},
		),
		lastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run started.",
			},
		),
	}
	m.registry.MustRegister(m.stepDuration, m.stepTotal, m.upgradeRequired,
		m.lastRunSuccess, m.lastRunTime)
	return m
}

// Registry returns the registry holding the upgrade metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStep(res StepResult) {
	m.stepTotal.WithLabelValues(res.Name, string(res.Status)).Inc()
	if res.Status == StatusRan || res.Status == StatusFailed || res.Status == StatusTolerated {
		m.stepDuration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
	}
}

func (m *Metrics) observeRun(f *Facts, err error) {
	m.upgradeRequired.Set(boolToFloat(f.UpgradePostgres))
	m.lastRunSuccess.Set(boolToFloat(err == nil))
	m.lastRunTime.Set(float64(f.Started.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "while writing metrics to %s", path)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
