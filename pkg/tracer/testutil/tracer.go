// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package testutil provides a scripted tracer for collector tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/DataDog/gputrace/pkg/tracer"
)

// Tracer is a scripted tracer.Tracer. Tests drive it with Invoke, which
// delivers a synthetic enter/exit pair through the registered callback on
// the calling goroutine, the way a driver thread would.
type Tracer struct {
	mu        sync.Mutex
	functions map[tracer.FunctionID]tracer.FunctionInfo
	order     []tracer.FunctionInfo
	callback  tracer.Callback
	enabled   map[tracer.FunctionID]bool
	running   bool

	// Error injection, returned by the matching method when set. Set
	// these before handing the tracer to the code under test.
	EnableFunctionErr error
	EnableErr         error
	DisableErr        error
}

// NewTracer returns a tracer exposing the given function table.
func NewTracer(functions ...tracer.FunctionInfo) *Tracer {
	t := &Tracer{
		functions: make(map[tracer.FunctionID]tracer.FunctionInfo, len(functions)),
		enabled:   make(map[tracer.FunctionID]bool),
	}
	for _, f := range functions {
		t.functions[f.ID] = f
		t.order = append(t.order, f)
	}
	return t
}

// DefaultFunctions returns a small CUDA runtime function table covering
// every operation class.
func DefaultFunctions() []tracer.FunctionInfo {
	return []tracer.FunctionInfo{
		{ID: 1, Name: "cudaLaunchKernel", Op: tracer.OpKernelLaunch},
		{ID: 2, Name: "cudaMemcpyAsync", Op: tracer.OpMemoryCopy},
		{ID: 3, Name: "cudaMemsetAsync", Op: tracer.OpMemoryFill},
		{ID: 4, Name: "cudaStreamSynchronize", Op: tracer.OpSync},
		{ID: 5, Name: "cudaMalloc", Op: tracer.OpOther},
	}
}

// Functions implements tracer.Tracer.
func (t *Tracer) Functions() []tracer.FunctionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]tracer.FunctionInfo(nil), t.order...)
}

// EnableFunction implements tracer.Tracer.
func (t *Tracer) EnableFunction(id tracer.FunctionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EnableFunctionErr != nil {
		return t.EnableFunctionErr
	}
	if _, ok := t.functions[id]; !ok {
		return fmt.Errorf("unknown function %d", id)
	}
	t.enabled[id] = true
	return nil
}

// Enable implements tracer.Tracer.
func (t *Tracer) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EnableErr != nil {
		return t.EnableErr
	}
	if t.callback == nil {
		return fmt.Errorf("no callback registered")
	}
	t.running = true
	return nil
}

// Disable implements tracer.Tracer.
func (t *Tracer) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DisableErr != nil {
		return t.DisableErr
	}
	t.running = false
	return nil
}

// RegisterCallback implements tracer.Tracer.
func (t *Tracer) RegisterCallback(cb tracer.Callback) error {
	if cb == nil {
		return fmt.Errorf("nil callback")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callback = cb
	return nil
}

// Close implements tracer.Tracer.
func (t *Tracer) Close() error {
	return t.Disable()
}

// Enabled reports whether EnableFunction was called for id.
func (t *Tracer) Enabled(id tracer.FunctionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled[id]
}

// Running reports whether Enable was called without a later Disable.
func (t *Tracer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Call describes one synthetic driver call.
type Call struct {
	Function tracer.FunctionID
	ThreadID uint32

	// Bytes is delivered with the exit event, mirroring how a real
	// backend reports the size argument of memory operations.
	Bytes uint64

	// Between runs after the enter callback returned and before the exit
	// callback fires. Tests use it to advance a fake clock.
	Between func()
}

// Invoke delivers the enter/exit pair for c. Calls for functions that are
// not enabled, or while the tracer is disabled, fire no callbacks; Between
// still runs so scripted clocks stay on schedule.
func (t *Tracer) Invoke(c Call) {
	t.mu.Lock()
	cb := t.callback
	info, known := t.functions[c.Function]
	deliver := t.running && t.enabled[c.Function] && cb != nil && known
	t.mu.Unlock()

	if !deliver {
		if c.Between != nil {
			c.Between()
		}
		return
	}

	slot := &tracer.CorrelationSlot{}
	cb(&tracer.CallbackData{
		FunctionID:   c.Function,
		FunctionName: info.Name,
		Site:         tracer.SiteEnter,
		Correlation:  slot,
		ThreadID:     c.ThreadID,
	})
	if c.Between != nil {
		c.Between()
	}
	cb(&tracer.CallbackData{
		FunctionID:   c.Function,
		FunctionName: info.Name,
		Site:         tracer.SiteExit,
		Correlation:  slot,
		ThreadID:     c.ThreadID,
		Bytes:        c.Bytes,
	})
}
