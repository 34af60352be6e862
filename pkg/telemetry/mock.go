// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metric is one collected series, as exposed to test assertions.
type Metric struct {
	metric     *dto.Metric
	metricType string
}

// Tags returns the metric's label pairs as a map.
func (m Metric) Tags() map[string]string {
	labels := m.metric.GetLabel()
	// labels are not necessarily in the order they were declared
	tags := make(map[string]string, len(labels))
	for _, label := range labels {
		tags[label.GetName()] = label.GetValue()
	}
	return tags
}

// Value returns the metric's current value.
func (m Metric) Value() float64 {
	switch m.metricType {
	case "count":
		return m.metric.GetCounter().GetValue()
	case "gauge":
		return m.metric.GetGauge().GetValue()
	}
	return 0
}

// GetCountMetric returns every series of the given counter, one Metric per
// tag combination observed so far.
func GetCountMetric(subsystem, name string) []Metric {
	return gatherMetric(subsystem, name, "count")
}

// GetGaugeMetric returns every series of the given gauge.
func GetGaugeMetric(subsystem, name string) []Metric {
	return gatherMetric(subsystem, name, "gauge")
}

func gatherMetric(subsystem, name, metricType string) []Metric {
	mu.Lock()
	reg := registry
	mu.Unlock()

	families, err := reg.Gather()
	if err != nil {
		return nil
	}

	fqName := prometheus.BuildFQName("", subsystem, name)
	var out []Metric
	for _, fam := range families {
		if fam.GetName() != fqName {
			continue
		}
		for _, m := range fam.GetMetric() {
			out = append(out, Metric{metric: m, metricType: metricType})
		}
	}
	return out
}
