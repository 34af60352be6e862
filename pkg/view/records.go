// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package view implements the binary record-streaming protocol of the
// tracing runtime: fixed-layout trace records, the buffer exchange that
// moves them to a consumer, and the decoder that walks completed buffers.
package view

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kind discriminates the record types a view buffer can hold.
type Kind uint32

const (
	// KindInvalid is never emitted.
	KindInvalid Kind = iota
	// KindKernel marks a kernel-execution record.
	KindKernel
	// KindMemoryCopy marks a memory-copy record.
	KindMemoryCopy
	// KindMemoryFill marks a memory-fill record.
	KindMemoryFill
	// KindExternalCorrelation marks an external-correlation record.
	KindExternalCorrelation
	// KindOverhead marks a collection-overhead record.
	KindOverhead

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindKernel:
		return "kernel"
	case KindMemoryCopy:
		return "memory_copy"
	case KindMemoryFill:
		return "memory_fill"
	case KindExternalCorrelation:
		return "external_correlation"
	case KindOverhead:
		return "overhead"
	}
	return fmt.Sprintf("invalid(%d)", uint32(k))
}

// KindFromString parses the configuration name of a record kind.
func KindFromString(s string) (Kind, error) {
	for k := KindKernel; k < kindCount; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown record kind %q", s)
}

// MemoryKind identifies the location of one side of a memory transfer.
type MemoryKind uint32

const (
	// MemoryKindUnknown is used when the tracer cannot classify a side.
	MemoryKindUnknown MemoryKind = iota
	// MemoryKindHost is pageable or pinned host memory.
	MemoryKindHost
	// MemoryKindDevice is device-resident memory.
	MemoryKindDevice
	// MemoryKindShared is memory migrated between host and device.
	MemoryKindShared
)

func (m MemoryKind) String() string {
	switch m {
	case MemoryKindHost:
		return "host"
	case MemoryKindDevice:
		return "device"
	case MemoryKindShared:
		return "shared"
	}
	return "unknown"
}

// OverheadKind identifies what produced a collection-overhead record.
type OverheadKind uint32

const (
	// OverheadKindUnknown is used when the source of the overhead is not known.
	OverheadKindUnknown OverheadKind = iota
	// OverheadKindCollection is time spent inside the collector's own
	// instrumentation callbacks.
	OverheadKindCollection
)

// Records are packed back to back in a buffer, each starting with a
// RecordHeader. Every record type declares a fixed layout whose size is a
// multiple of recordAlign, so all records in a well-formed buffer start
// 8-byte aligned and can be reinterpreted in place.
const recordAlign = 8

// RecordHeader prefixes every record with its kind and total byte length,
// header included. It must be the first field of every record type:
// appendRecord stamps it through the record pointer.
type RecordHeader struct {
	Kind Kind
	Size uint32
}

// KernelRecord reports one device kernel execution.
type KernelRecord struct {
	Header        RecordHeader
	StartNs       uint64
	EndNs         uint64
	CorrelationID uint64
	ThreadID      uint32
	DeviceIndex   uint32
	Name          [64]byte
}

// MemoryCopyRecord reports one memory transfer.
type MemoryCopyRecord struct {
	Header        RecordHeader
	StartNs       uint64
	EndNs         uint64
	CorrelationID uint64
	Bytes         uint64
	ThreadID      uint32
	SrcKind       MemoryKind
	DstKind       MemoryKind
	_             [4]byte
}

// MemoryFillRecord reports one memory fill.
type MemoryFillRecord struct {
	Header        RecordHeader
	StartNs       uint64
	EndNs         uint64
	CorrelationID uint64
	Bytes         uint64
	Value         uint32
	ThreadID      uint32
}

// ExternalCorrelationRecord binds an API correlation ID to an ID from an
// external tracing system.
type ExternalCorrelationRecord struct {
	Header        RecordHeader
	CorrelationID uint64
	ExternalID    uint64
	ExternalKind  uint32
	_             [4]byte
}

// OverheadRecord reports time the collector spent on its own bookkeeping.
type OverheadRecord struct {
	Header       RecordHeader
	TimestampNs  uint64
	DurationNs   uint64
	Count        uint64
	OverheadKind OverheadKind
	_            [4]byte
}

// Record sizes in bytes. HeaderSize is the smallest amount of used bytes a
// decoder can make sense of; MaxRecordSize is the minimum viable capacity
// of an exchange buffer.
const (
	HeaderSize = int(unsafe.Sizeof(RecordHeader{}))

	KernelRecordSize              = int(unsafe.Sizeof(KernelRecord{}))
	MemoryCopyRecordSize          = int(unsafe.Sizeof(MemoryCopyRecord{}))
	MemoryFillRecordSize          = int(unsafe.Sizeof(MemoryFillRecord{}))
	ExternalCorrelationRecordSize = int(unsafe.Sizeof(ExternalCorrelationRecord{}))
	OverheadRecordSize            = int(unsafe.Sizeof(OverheadRecord{}))

	MaxRecordSize = KernelRecordSize
)

// KernelName returns the kernel name stored in the record's fixed field.
func (r *KernelRecord) KernelName() string {
	return cstring(r.Name[:])
}

// SetKernelName stores name into the record's fixed field, truncating it
// to the field size.
func (r *KernelRecord) SetKernelName(name string) {
	setCString(r.Name[:], name)
}

func cstring(b []byte) string {
	return unix.ByteSliceToString(b)
}

func setCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
