// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package uprobe

import (
	"fmt"
	"sync"

	"github.com/DataDog/gputrace/pkg/telemetry"
	"github.com/DataDog/gputrace/pkg/tracer"
	"github.com/DataDog/gputrace/pkg/util/log"
)

const telemetrySubsystem = "gputrace__uprobe"

type dispatcherTelemetry struct {
	events         telemetry.Counter
	unmatchedExits telemetry.Counter
	unknownEvents  telemetry.Counter
	decodeErrors   telemetry.Counter
}

func newDispatcherTelemetry() dispatcherTelemetry {
	return dispatcherTelemetry{
		events:         telemetry.NewCounter(telemetrySubsystem, "events", []string{"site"}, "Number of probe events dispatched"),
		unmatchedExits: telemetry.NewCounter(telemetrySubsystem, "unmatched_exits", nil, "Number of exit events without a matching enter"),
		unknownEvents:  telemetry.NewCounter(telemetrySubsystem, "unknown_events", nil, "Number of events with an unknown function ID or site"),
		decodeErrors:   telemetry.NewCounter(telemetrySubsystem, "decode_errors", nil, "Number of ring buffer samples that failed to decode"),
	}
}

type inflightCall struct {
	function tracer.FunctionID
	slot     *tracer.CorrelationSlot
}

// dispatcher converts raw probe events into callback invocations. Enter
// and exit arrive as separate events; the per-thread in-flight stack
// bridges them and pairs nested traced calls LIFO, the order uretprobes
// fire in. Events are handled by the single ring buffer reader goroutine,
// so inflight needs no lock; mu only guards callback registration.
type dispatcher struct {
	functions map[tracer.FunctionID]tracer.FunctionInfo
	inflight  map[uint64][]inflightCall

	mu       sync.Mutex
	callback tracer.Callback

	tm dispatcherTelemetry
}

func newDispatcher(functions []tracer.FunctionInfo) *dispatcher {
	d := &dispatcher{
		functions: make(map[tracer.FunctionID]tracer.FunctionInfo, len(functions)),
		inflight:  make(map[uint64][]inflightCall),
		tm:        newDispatcherTelemetry(),
	}
	for _, f := range functions {
		d.functions[f.ID] = f
	}
	return d
}

func (d *dispatcher) setCallback(cb tracer.Callback) error {
	if cb == nil {
		return fmt.Errorf("nil callback")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
	return nil
}

// handleSample decodes one ring buffer sample and dispatches it.
func (d *dispatcher) handleSample(data []byte) {
	ev, err := decodeEvent(data)
	if err != nil {
		d.tm.decodeErrors.Inc()
		log.Debugf("dropping probe event: %v", err)
		return
	}
	d.dispatch(ev)
}

func (d *dispatcher) dispatch(ev *apiEvent) {
	info, ok := d.functions[tracer.FunctionID(ev.FunctionID)]
	if !ok {
		d.tm.unknownEvents.Inc()
		return
	}
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb == nil {
		return
	}

	// The low half of pid_tgid is the thread ID.
	threadID := uint32(ev.PidTgid)

	switch tracer.Site(ev.Site) {
	case tracer.SiteEnter:
		d.tm.events.Inc("enter")
		slot := &tracer.CorrelationSlot{}
		d.inflight[ev.PidTgid] = append(d.inflight[ev.PidTgid], inflightCall{function: info.ID, slot: slot})
		cb(&tracer.CallbackData{
			FunctionID:   info.ID,
			FunctionName: info.Name,
			Site:         tracer.SiteEnter,
			Correlation:  slot,
			ThreadID:     threadID,
		})
	case tracer.SiteExit:
		d.tm.events.Inc("exit")
		stack := d.inflight[ev.PidTgid]
		if len(stack) == 0 {
			// The probe attached while this call was already in flight.
			d.tm.unmatchedExits.Inc()
			return
		}
		top := stack[len(stack)-1]
		if len(stack) == 1 {
			delete(d.inflight, ev.PidTgid)
		} else {
			d.inflight[ev.PidTgid] = stack[:len(stack)-1]
		}
		if top.function != info.ID {
			d.tm.unmatchedExits.Inc()
			return
		}
		cb(&tracer.CallbackData{
			FunctionID:   info.ID,
			FunctionName: info.Name,
			Site:         tracer.SiteExit,
			Correlation:  top.slot,
			ThreadID:     threadID,
			Bytes:        ev.Bytes,
		})
	default:
		d.tm.unknownEvents.Inc()
	}
}
