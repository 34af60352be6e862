// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package view

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/DataDog/gputrace/pkg/telemetry"
)

// RequestFunc supplies a fresh writable buffer to the runtime. The
// consumer chooses the capacity; anything below MaxRecordSize is rejected
// and never written to.
type RequestFunc func() []byte

// CompleteFunc receives a filled buffer back. Ownership of the buffer
// passes to the consumer at this call. It runs synchronously on whatever
// producer thread filled the buffer, so implementations must be fast and
// non-blocking.
type CompleteFunc func(buf Buffer)

// Buffer is an owned byte region moved between the consumer and the
// runtime. Used delimits the valid record region of Data; bytes past Used
// are undefined.
type Buffer struct {
	Data []byte
	Used int
}

// Empty reports whether the buffer holds no records. Empty buffers are
// released without parsing.
func (b Buffer) Empty() bool {
	return len(b.Data) == 0 || b.Used == 0
}

const telemetrySubsystem = "gputrace__view"

type exchangeTelemetry struct {
	requested telemetry.Counter
	completed telemetry.Counter
	rejected  telemetry.Counter
	emitted   telemetry.Counter
	dropped   telemetry.Counter
}

func newExchangeTelemetry() exchangeTelemetry {
	return exchangeTelemetry{
		requested: telemetry.NewCounter(telemetrySubsystem, "buffers_requested", nil, "Number of buffers requested from the consumer"),
		completed: telemetry.NewCounter(telemetrySubsystem, "buffers_completed", nil, "Number of buffers handed back to the consumer"),
		rejected:  telemetry.NewCounter(telemetrySubsystem, "buffers_rejected", nil, "Number of supplied buffers rejected as too small"),
		emitted:   telemetry.NewCounter(telemetrySubsystem, "records_emitted", []string{"kind"}, "Number of records written to view buffers"),
		dropped:   telemetry.NewCounter(telemetrySubsystem, "records_dropped", nil, "Number of records dropped because no buffer could be obtained"),
	}
}

// Exchange moves record buffers between the tracing runtime and its
// consumer through a request/complete handshake. Emission may happen from
// any number of producer threads; appends are serialized by one lock, and
// the consumer callbacks run synchronously under it.
type Exchange struct {
	mu       sync.Mutex
	request  RequestFunc
	complete CompleteFunc
	active   Buffer
	closed   bool

	// kinds is a bitmask of record kinds currently enabled for emission.
	kinds atomic.Uint32

	tm exchangeTelemetry
}

// NewExchange registers the consumer's allocator and completion callbacks
// and returns the exchange. The allocator is probed once at registration:
// if it cannot supply a buffer of at least MaxRecordSize the registration
// itself fails, wrapping ErrBufferTooSmall, instead of deferring the
// failure to fill time. The probed buffer is retained as the first active
// buffer. No record kind is enabled yet; see EnableKind.
func NewExchange(request RequestFunc, complete CompleteFunc) (*Exchange, error) {
	if request == nil || complete == nil {
		return nil, fmt.Errorf("%w: request and completion callbacks are required", ErrBadArgument)
	}

	e := &Exchange{
		request:  request,
		complete: complete,
		tm:       newExchangeTelemetry(),
	}

	buf, err := e.requestBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArgument, err)
	}
	e.active = buf
	return e, nil
}

// EnableKind turns on emission of the given record kind.
func (e *Exchange) EnableKind(k Kind) error {
	if k == KindInvalid || k >= kindCount {
		return fmt.Errorf("%w: unknown record kind %d", ErrBadArgument, uint32(k))
	}
	for {
		old := e.kinds.Load()
		if e.kinds.CompareAndSwap(old, old|1<<k) {
			return nil
		}
	}
}

// DisableKind turns off emission of the given record kind. Records of a
// disabled kind are skipped at append time.
func (e *Exchange) DisableKind(k Kind) error {
	if k == KindInvalid || k >= kindCount {
		return fmt.Errorf("%w: unknown record kind %d", ErrBadArgument, uint32(k))
	}
	for {
		old := e.kinds.Load()
		if e.kinds.CompareAndSwap(old, old&^(1<<k)) {
			return nil
		}
	}
}

func (e *Exchange) kindEnabled(k Kind) bool {
	return e.kinds.Load()&(1<<k) != 0
}

// EmitKernel appends a kernel-execution record to the active buffer.
func (e *Exchange) EmitKernel(rec *KernelRecord) error {
	return appendRecord(e, KindKernel, rec)
}

// EmitMemoryCopy appends a memory-copy record to the active buffer.
func (e *Exchange) EmitMemoryCopy(rec *MemoryCopyRecord) error {
	return appendRecord(e, KindMemoryCopy, rec)
}

// EmitMemoryFill appends a memory-fill record to the active buffer.
func (e *Exchange) EmitMemoryFill(rec *MemoryFillRecord) error {
	return appendRecord(e, KindMemoryFill, rec)
}

// EmitExternalCorrelation appends an external-correlation record to the
// active buffer.
func (e *Exchange) EmitExternalCorrelation(rec *ExternalCorrelationRecord) error {
	return appendRecord(e, KindExternalCorrelation, rec)
}

// EmitOverhead appends a collection-overhead record to the active buffer.
func (e *Exchange) EmitOverhead(rec *OverheadRecord) error {
	return appendRecord(e, KindOverhead, rec)
}

// appendRecord stamps rec's leading header and copies it into reserved
// space in the active buffer. Records of disabled kinds are dropped
// silently; that is the kind filter, not an error.
func appendRecord[T any](e *Exchange, kind Kind, rec *T) error {
	if rec == nil {
		return ErrBadArgument
	}
	if !e.kindEnabled(kind) {
		return nil
	}

	size := int(unsafe.Sizeof(*rec))
	header := (*RecordHeader)(unsafe.Pointer(rec))
	header.Kind = kind
	header.Size = uint32(size)

	e.mu.Lock()
	defer e.mu.Unlock()

	region, err := e.reserve(size)
	if err != nil {
		e.tm.dropped.Inc()
		return err
	}
	*(*T)(unsafe.Pointer(&region[0])) = *rec
	e.tm.emitted.Inc(kind.String())
	return nil
}

// reserve returns n writable bytes of the active buffer, completing it and
// requesting a new one when the remaining capacity is short. Caller holds
// e.mu.
func (e *Exchange) reserve(n int) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.active.Data == nil {
		buf, err := e.requestBuffer()
		if err != nil {
			return nil, err
		}
		e.active = buf
	}
	if len(e.active.Data)-e.active.Used < n {
		e.completeActive()
		buf, err := e.requestBuffer()
		if err != nil {
			return nil, err
		}
		e.active = buf
	}

	region := e.active.Data[e.active.Used : e.active.Used+n]
	e.active.Used += n
	return region, nil
}

// requestBuffer invokes the consumer's allocator once and applies the
// rejection policy: a buffer below MaxRecordSize is never used and never
// completed.
func (e *Exchange) requestBuffer() (Buffer, error) {
	data := e.request()
	e.tm.requested.Inc()
	if len(data) < MaxRecordSize {
		e.tm.rejected.Inc()
		return Buffer{}, fmt.Errorf("rejecting %d byte buffer: %w (need at least %d)",
			len(data), ErrBufferTooSmall, MaxRecordSize)
	}
	return Buffer{Data: data}, nil
}

// completeActive hands the active buffer to the consumer. Caller holds
// e.mu.
func (e *Exchange) completeActive() {
	if e.active.Data == nil {
		return
	}
	e.complete(e.active)
	e.tm.completed.Inc()
	e.active = Buffer{}
}

// Flush synchronously hands the active buffer to the consumer, even when
// it holds no records yet, so that everything emitted so far is visible
// before a measurement window closes. It blocks until the completion
// callback has returned.
func (e *Exchange) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completeActive()
	return nil
}

// Close flushes pending data and stops the exchange. Emissions after
// Close fail with ErrClosed. Closing twice is a no-op.
func (e *Exchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.completeActive()
	e.closed = true
	return nil
}
