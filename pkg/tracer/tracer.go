// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package tracer defines the capability interface a driver-specific
// tracer must implement to feed the collector. The collector consumes
// this interface only; the interception mechanism (eBPF uprobes, a
// vendored driver layer) lives in subpackages.
package tracer

import "errors"

// ErrNotSupported is returned by tracer constructors on platforms where
// the interception mechanism is unavailable.
var ErrNotSupported = errors.New("tracer not supported on this platform")

// FunctionID identifies one interceptable driver function. IDs are stable
// for the lifetime of a Tracer instance, not across instances.
type FunctionID uint32

// Site distinguishes the two interception points of a call.
type Site uint32

const (
	// SiteEnter fires before the traced function body runs.
	SiteEnter Site = iota
	// SiteExit fires after the traced function body returned.
	SiteExit
)

func (s Site) String() string {
	switch s {
	case SiteEnter:
		return "enter"
	case SiteExit:
		return "exit"
	}
	return "unknown"
}

// Op classifies what a traced function does, so the collector knows which
// record kind a completed call produces.
type Op uint32

const (
	// OpOther covers functions that are timed but produce no record.
	OpOther Op = iota
	// OpKernelLaunch submits a device kernel.
	OpKernelLaunch
	// OpMemoryCopy transfers a memory range.
	OpMemoryCopy
	// OpMemoryFill fills a memory range with a value.
	OpMemoryFill
	// OpSync blocks until outstanding device work completes.
	OpSync
)

func (o Op) String() string {
	switch o {
	case OpKernelLaunch:
		return "kernel_launch"
	case OpMemoryCopy:
		return "memory_copy"
	case OpMemoryFill:
		return "memory_fill"
	case OpSync:
		return "sync"
	}
	return "other"
}

// FunctionInfo describes one function a Tracer can intercept.
type FunctionInfo struct {
	ID   FunctionID
	Name string
	Op   Op
}

// CorrelationSlot is the per-call scratch storage bridging an enter event
// to its matching exit event. The tracer allocates one slot when a call
// enters and passes the same slot to both callbacks of the pair; the slot
// must not be shared between in-flight calls. The collector writes the
// enter timestamp into StartNs and reads it back at exit. An exit without
// a preceding enter on the same slot is a contract violation, not a
// recoverable condition.
type CorrelationSlot struct {
	StartNs uint64
}

// CallbackData is the payload delivered to the registered callback at
// both interception sites of a call.
type CallbackData struct {
	FunctionID   FunctionID
	FunctionName string
	Site         Site
	Correlation  *CorrelationSlot

	// ThreadID is the OS thread the intercepted call ran on, 0 when the
	// mechanism cannot tell.
	ThreadID uint32

	// Bytes carries the size argument of memory operations. It is set on
	// exit events of such functions and 0 otherwise.
	Bytes uint64
}

// Callback receives interception events. It runs synchronously on
// whatever thread the tracer dispatches from, possibly several at once, so
// implementations must be safe for concurrent invocation. The CallbackData
// and its slot are only valid for the duration of the call.
type Callback func(*CallbackData)

// Tracer is the capability contract of a driver-specific interception
// backend.
type Tracer interface {
	// Functions lists every function this tracer can intercept.
	Functions() []FunctionInfo

	// EnableFunction marks one function for interception. It fails for
	// IDs the tracer did not report.
	EnableFunction(id FunctionID) error

	// Enable starts delivering events for the enabled functions.
	Enable() error

	// Disable stops event delivery. In-flight pairs still complete.
	Disable() error

	// RegisterCallback sets the event sink. It must be called before
	// Enable and fails on a nil callback.
	RegisterCallback(cb Callback) error

	// Close disables the tracer and releases its resources.
	Close() error
}
