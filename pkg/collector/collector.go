// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package collector ties a tracer capability to the aggregation and
// streaming paths: it stamps call entries, folds completed calls into
// per-function statistics, emits view records for them, and accounts for
// its own processing overhead.
package collector

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/DataDog/gputrace/pkg/ktime"
	"github.com/DataDog/gputrace/pkg/stats"
	"github.com/DataDog/gputrace/pkg/telemetry"
	"github.com/DataDog/gputrace/pkg/tracer"
	"github.com/DataDog/gputrace/pkg/util/log"
	"github.com/DataDog/gputrace/pkg/view"
)

// ErrUnavailable reports that the tracer capability could not be enabled.
// Construction fails with it instead of returning a partially initialized
// collector.
var ErrUnavailable = errors.New("tracer capability unavailable")

const telemetrySubsystem = "gputrace__collector"

type collectorTelemetry struct {
	callbacks        telemetry.Counter
	unknownFunctions telemetry.Counter
}

func newCollectorTelemetry() collectorTelemetry {
	return collectorTelemetry{
		callbacks:        telemetry.NewCounter(telemetrySubsystem, "callbacks", []string{"site"}, "Number of interception callbacks handled"),
		unknownFunctions: telemetry.NewCounter(telemetrySubsystem, "unknown_functions", nil, "Number of callbacks for functions missing from the tracer's table"),
	}
}

// Config selects what the collector traces and emits.
type Config struct {
	// EnabledKinds lists the record kinds emitted to the exchange. An
	// empty list aggregates statistics only.
	EnabledKinds []view.Kind

	// Functions restricts interception to the named functions. Empty
	// means every function the tracer reports.
	Functions []string
}

// Dependencies are the collaborators a Collector is built from.
type Dependencies struct {
	Tracer   tracer.Tracer
	Exchange *view.Exchange

	// Source may be nil, in which case a real-clock source is used.
	Source *ktime.Source
}

// Collector receives interception events and drives both output paths.
// Callbacks may arrive concurrently from any number of driver threads.
type Collector struct {
	tracer    tracer.Tracer
	exchange  *view.Exchange
	source    *ktime.Source
	stats     *stats.Aggregator
	functions map[tracer.FunctionID]tracer.FunctionInfo

	// correlation numbers completed calls; the same ID links a call's
	// view record to its external-correlation records.
	correlation atomic.Uint64

	externalMu sync.Mutex
	external   map[uint32][]uint64

	overheadMu    sync.Mutex
	overheadNs    uint64
	overheadCount uint64

	tm collectorTelemetry
}

// New builds a collector, registers its callback with the tracer and
// enables interception. A tracer that cannot be enabled fails construction
// with ErrUnavailable; no partially initialized collector is returned.
func New(cfg Config, deps Dependencies) (*Collector, error) {
	if deps.Tracer == nil || deps.Exchange == nil {
		return nil, fmt.Errorf("a tracer and an exchange are required")
	}
	source := deps.Source
	if source == nil {
		source = ktime.NewSource(nil)
	}

	infos := deps.Tracer.Functions()
	functions := make(map[tracer.FunctionID]tracer.FunctionInfo, len(infos))
	for _, info := range infos {
		functions[info.ID] = info
	}

	targets := infos
	if len(cfg.Functions) > 0 {
		byName := make(map[string]tracer.FunctionInfo, len(infos))
		for _, info := range infos {
			byName[info.Name] = info
		}
		targets = make([]tracer.FunctionInfo, 0, len(cfg.Functions))
		for _, name := range cfg.Functions {
			info, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("tracer does not expose function %q", name)
			}
			targets = append(targets, info)
		}
	}

	c := &Collector{
		tracer:    deps.Tracer,
		exchange:  deps.Exchange,
		source:    source,
		stats:     stats.NewAggregator(),
		functions: functions,
		external:  make(map[uint32][]uint64),
		tm:        newCollectorTelemetry(),
	}

	for _, k := range cfg.EnabledKinds {
		if err := deps.Exchange.EnableKind(k); err != nil {
			return nil, err
		}
	}

	if err := deps.Tracer.RegisterCallback(c.handleCallback); err != nil {
		return nil, fmt.Errorf("registering callback: %w", err)
	}
	for _, info := range targets {
		if err := deps.Tracer.EnableFunction(info.ID); err != nil {
			return nil, fmt.Errorf("%w: enabling function %q: %w", ErrUnavailable, info.Name, err)
		}
	}
	if err := deps.Tracer.Enable(); err != nil {
		_ = deps.Tracer.Disable()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	log.Debugf("collector enabled, tracing %d functions", len(targets))
	return c, nil
}

// handleCallback runs on the tracer's dispatch threads. The enter site
// only stamps the call's correlation slot; all bookkeeping happens at
// exit, and the time spent on it is accumulated as collection overhead.
func (c *Collector) handleCallback(d *tracer.CallbackData) {
	begin := c.source.Now()
	c.tm.callbacks.Inc(d.Site.String())

	switch d.Site {
	case tracer.SiteEnter:
		if d.Correlation != nil {
			d.Correlation.StartNs = begin
		}
	case tracer.SiteExit:
		c.finishCall(d, begin)
	}

	c.overheadMu.Lock()
	c.overheadNs += c.source.Now() - begin
	c.overheadCount++
	c.overheadMu.Unlock()
}

func (c *Collector) finishCall(d *tracer.CallbackData, nowNs uint64) {
	if d.Correlation == nil {
		log.Debugf("exit callback for function %d without correlation slot", d.FunctionID)
		return
	}
	start := d.Correlation.StartNs
	elapsed := nowNs - start

	info, known := c.functions[d.FunctionID]
	name := d.FunctionName
	if name == "" {
		name = info.Name
	}
	if name == "" {
		name = fmt.Sprintf("function_%d", d.FunctionID)
	}
	if !known {
		c.tm.unknownFunctions.Inc()
	}

	c.stats.Record(name, elapsed)

	var err error
	var correlationID uint64
	switch info.Op {
	case tracer.OpKernelLaunch:
		correlationID = c.correlation.Add(1)
		rec := &view.KernelRecord{
			StartNs:       start,
			EndNs:         nowNs,
			CorrelationID: correlationID,
			ThreadID:      d.ThreadID,
		}
		rec.SetKernelName(name)
		err = c.exchange.EmitKernel(rec)
	case tracer.OpMemoryCopy:
		correlationID = c.correlation.Add(1)
		err = c.exchange.EmitMemoryCopy(&view.MemoryCopyRecord{
			StartNs:       start,
			EndNs:         nowNs,
			CorrelationID: correlationID,
			Bytes:         d.Bytes,
			ThreadID:      d.ThreadID,
		})
	case tracer.OpMemoryFill:
		correlationID = c.correlation.Add(1)
		err = c.exchange.EmitMemoryFill(&view.MemoryFillRecord{
			StartNs:       start,
			EndNs:         nowNs,
			CorrelationID: correlationID,
			Bytes:         d.Bytes,
			ThreadID:      d.ThreadID,
		})
	default:
		// Timed only, no record kind.
		return
	}
	if err != nil {
		log.Debugf("dropping %s record: %v", info.Op, err)
		return
	}
	c.emitExternal(correlationID)
}

// emitExternal binds the completed call to the top of every active
// external correlation stack.
func (c *Collector) emitExternal(correlationID uint64) {
	c.externalMu.Lock()
	defer c.externalMu.Unlock()
	for kind, stack := range c.external {
		if len(stack) == 0 {
			continue
		}
		err := c.exchange.EmitExternalCorrelation(&view.ExternalCorrelationRecord{
			CorrelationID: correlationID,
			ExternalID:    stack[len(stack)-1],
			ExternalKind:  kind,
		})
		if err != nil {
			log.Debugf("dropping external correlation record: %v", err)
		}
	}
}

// PushExternalCorrelation tags records of subsequent completed calls with
// an ID from an external tracing system, until the matching Pop. Kinds
// keep independent stacks.
func (c *Collector) PushExternalCorrelation(kind uint32, id uint64) {
	c.externalMu.Lock()
	defer c.externalMu.Unlock()
	c.external[kind] = append(c.external[kind], id)
}

// PopExternalCorrelation removes and returns the most recent external ID
// of the given kind.
func (c *Collector) PopExternalCorrelation(kind uint32) (uint64, error) {
	c.externalMu.Lock()
	defer c.externalMu.Unlock()
	stack := c.external[kind]
	if len(stack) == 0 {
		return 0, fmt.Errorf("no external correlation of kind %d", kind)
	}
	id := stack[len(stack)-1]
	c.external[kind] = stack[:len(stack)-1]
	return id, nil
}

// emitOverhead flushes the accumulated callback processing time as one
// collection-overhead record and resets the accumulator.
func (c *Collector) emitOverhead() {
	c.overheadMu.Lock()
	ns, count := c.overheadNs, c.overheadCount
	c.overheadNs, c.overheadCount = 0, 0
	c.overheadMu.Unlock()
	if count == 0 {
		return
	}

	err := c.exchange.EmitOverhead(&view.OverheadRecord{
		TimestampNs:  c.source.Now(),
		DurationNs:   ns,
		Count:        count,
		OverheadKind: view.OverheadKindCollection,
	})
	if err != nil {
		log.Debugf("dropping overhead record: %v", err)
	}
}

// Flush emits the pending collection-overhead record and synchronously
// hands the active buffer to the consumer, so everything collected so far
// is visible before a measurement window closes.
func (c *Collector) Flush() error {
	c.emitOverhead()
	return c.exchange.Flush()
}

// Close disables interception and flushes pending records. The exchange
// stays open; its lifecycle belongs to whoever built it.
func (c *Collector) Close() error {
	err := c.tracer.Disable()
	if ferr := c.Flush(); err == nil {
		err = ferr
	}
	return err
}

// Snapshot returns a copy of the per-function statistics collected so
// far.
func (c *Collector) Snapshot() map[string]stats.FunctionStat {
	return c.stats.Snapshot()
}

// WriteReport renders the hot-functions table for everything aggregated
// so far.
func (c *Collector) WriteReport(w io.Writer) error {
	return stats.WriteReport(w, c.stats.Snapshot())
}
