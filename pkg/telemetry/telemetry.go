// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package telemetry provides the SDK's internal metrics, backed by
// prometheus. Metrics are deduplicated by (subsystem, name): creating the
// same metric twice returns a handle to the same underlying series.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter tracks how many times something is happening.
type Counter interface {
	// Inc increments the counter for the given tag values.
	Inc(tagsValue ...string)
	// Add adds the given value to the counter for the given tag values.
	Add(value float64, tagsValue ...string)
}

// Gauge tracks a value that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value for the given tag values.
	Set(value float64, tagsValue ...string)
	// Inc increments the gauge for the given tag values.
	Inc(tagsValue ...string)
	// Add adds the given value to the gauge for the given tag values.
	Add(value float64, tagsValue ...string)
}

var (
	mu       sync.Mutex
	registry = prometheus.NewRegistry()
	metrics  = map[string]prometheus.Collector{}
)

func metricKey(subsystem, name string) string {
	return subsystem + "/" + name
}

// NewCounter creates a Counter with the given subsystem, name, tag keys and
// help text.
func NewCounter(subsystem, name string, tags []string, help string) Counter {
	mu.Lock()
	defer mu.Unlock()

	key := metricKey(subsystem, name)
	if c, ok := metrics[key]; ok {
		return &promCounter{cv: c.(*prometheus.CounterVec)}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, tags)
	registry.MustRegister(cv)
	metrics[key] = cv
	return &promCounter{cv: cv}
}

// NewGauge creates a Gauge with the given subsystem, name, tag keys and help
// text.
func NewGauge(subsystem, name string, tags []string, help string) Gauge {
	mu.Lock()
	defer mu.Unlock()

	key := metricKey(subsystem, name)
	if g, ok := metrics[key]; ok {
		return &promGauge{gv: g.(*prometheus.GaugeVec)}
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, tags)
	registry.MustRegister(gv)
	metrics[key] = gv
	return &promGauge{gv: gv}
}

// Reset discards every registered metric. Only for use in tests, before the
// instances under test are constructed.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	metrics = map[string]prometheus.Collector{}
}

type promCounter struct {
	cv *prometheus.CounterVec
}

func (c *promCounter) Inc(tagsValue ...string) {
	c.cv.WithLabelValues(tagsValue...).Inc()
}

func (c *promCounter) Add(value float64, tagsValue ...string) {
	c.cv.WithLabelValues(tagsValue...).Add(value)
}

type promGauge struct {
	gv *prometheus.GaugeVec
}

func (g *promGauge) Set(value float64, tagsValue ...string) {
	g.gv.WithLabelValues(tagsValue...).Set(value)
}

func (g *promGauge) Inc(tagsValue ...string) {
	g.gv.WithLabelValues(tagsValue...).Inc()
}

func (g *promGauge) Add(value float64, tagsValue ...string) {
	g.gv.WithLabelValues(tagsValue...).Add(value)
}
