// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package view

import "unsafe"

// Record points at one decoded record inside a completed buffer. The
// zero value is invalid until a Decoder fills it; it stays pointed at the
// last decoded record once the walk reaches the end of the buffer.
type Record struct {
	header *RecordHeader
}

// Valid reports whether the Record points at a decoded record.
func (r *Record) Valid() bool {
	return r.header != nil
}

// Kind returns the decoded record's kind, or KindInvalid for the zero
// Record.
func (r *Record) Kind() Kind {
	if r.header == nil {
		return KindInvalid
	}
	return r.header.Kind
}

// Size returns the decoded record's total length in bytes.
func (r *Record) Size() int {
	if r.header == nil {
		return 0
	}
	return int(r.header.Size)
}

// Kernel returns the record as a kernel-execution record, or nil if it is
// of another kind.
func (r *Record) Kernel() *KernelRecord {
	if r.header == nil || r.header.Kind != KindKernel {
		return nil
	}
	return (*KernelRecord)(unsafe.Pointer(r.header))
}

// MemoryCopy returns the record as a memory-copy record, or nil if it is
// of another kind.
func (r *Record) MemoryCopy() *MemoryCopyRecord {
	if r.header == nil || r.header.Kind != KindMemoryCopy {
		return nil
	}
	return (*MemoryCopyRecord)(unsafe.Pointer(r.header))
}

// MemoryFill returns the record as a memory-fill record, or nil if it is
// of another kind.
func (r *Record) MemoryFill() *MemoryFillRecord {
	if r.header == nil || r.header.Kind != KindMemoryFill {
		return nil
	}
	return (*MemoryFillRecord)(unsafe.Pointer(r.header))
}

// ExternalCorrelation returns the record as an external-correlation
// record, or nil if it is of another kind.
func (r *Record) ExternalCorrelation() *ExternalCorrelationRecord {
	if r.header == nil || r.header.Kind != KindExternalCorrelation {
		return nil
	}
	return (*ExternalCorrelationRecord)(unsafe.Pointer(r.header))
}

// Overhead returns the record as a collection-overhead record, or nil if
// it is of another kind.
func (r *Record) Overhead() *OverheadRecord {
	if r.header == nil || r.header.Kind != KindOverhead {
		return nil
	}
	return (*OverheadRecord)(unsafe.Pointer(r.header))
}

// Decoder is a resumable cursor over one completed view buffer. It
// validates each record's declared length before exposing it, never
// allocates, and never mutates the buffer. A Decoder serves a single
// goroutine; the consumer owns the buffer exclusively while decoding.
type Decoder struct {
	buf  []byte
	used int
	off  int
}

// NewDecoder returns a Decoder over the first used bytes of buf. A used
// value beyond len(buf) is clamped to it.
func NewDecoder(buf []byte, used int) *Decoder {
	if used > len(buf) {
		used = len(buf)
	}
	return &Decoder{
		buf:  buf,
		used: used,
	}
}

// Next advances the cursor and points rec at the next record, in storage
// order.
//
// A nil rec fails with ErrBadArgument: there is nowhere to deliver the
// result. A nil buffer, a used count too small to hold one record header,
// and every call after the last record return ErrEndOfBuffer with rec left
// untouched, so the caller's last decoded record stays valid. A record
// whose declared length is impossible or overruns the used region fails
// with ErrTruncatedRecord; the cursor does not move past it.
func (d *Decoder) Next(rec *Record) error {
	if rec == nil {
		return ErrBadArgument
	}
	if d.buf == nil || d.used < HeaderSize {
		return ErrEndOfBuffer
	}
	if d.off >= d.used {
		return ErrEndOfBuffer
	}
	if d.used-d.off < HeaderSize {
		// A trailing stub cannot hold a header: the producer's used count
		// does not match the records it wrote.
		return ErrTruncatedRecord
	}

	header := (*RecordHeader)(unsafe.Pointer(&d.buf[d.off]))
	size := int(header.Size)
	if size < HeaderSize || size%recordAlign != 0 || size > d.used-d.off {
		return ErrTruncatedRecord
	}

	rec.header = header
	d.off += size
	return nil
}
