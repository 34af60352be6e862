// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package uprobe implements the tracer capability with eBPF user-space
// probes on the CUDA runtime library. A generic uprobe/uretprobe program
// pair reports enter and exit events through a ring buffer; the attach
// cookie carries the function ID, so one program serves every hooked
// symbol.
package uprobe

import (
	"fmt"
	"unsafe"

	"github.com/DataDog/gputrace/pkg/tracer"
)

// apiEvent mirrors struct api_event_t written by the eBPF programs. The
// layout is shared with the C side; fields are native endian. Site holds a
// tracer.Site value. Bytes carries the size argument of memory operations
// on exit events, stashed at entry by the BPF side.
type apiEvent struct {
	PidTgid    uint64
	Bytes      uint64
	FunctionID uint32
	Site       uint32
}

const apiEventSize = int(unsafe.Sizeof(apiEvent{}))

// decodeEvent reinterprets one ring buffer sample in place. The returned
// event aliases data and must not outlive it.
func decodeEvent(data []byte) (*apiEvent, error) {
	if len(data) < apiEventSize {
		return nil, fmt.Errorf("event too short: %d bytes, need %d", len(data), apiEventSize)
	}
	return (*apiEvent)(unsafe.Pointer(&data[0])), nil
}

// functionSpecs lists the CUDA runtime symbols the eBPF programs can
// hook. The IDs double as attach cookies.
var functionSpecs = []tracer.FunctionInfo{
	{ID: 1, Name: "cudaLaunchKernel", Op: tracer.OpKernelLaunch},
	{ID: 2, Name: "cudaMemcpy", Op: tracer.OpMemoryCopy},
	{ID: 3, Name: "cudaMemcpyAsync", Op: tracer.OpMemoryCopy},
	{ID: 4, Name: "cudaMemset", Op: tracer.OpMemoryFill},
	{ID: 5, Name: "cudaMemsetAsync", Op: tracer.OpMemoryFill},
	{ID: 6, Name: "cudaStreamSynchronize", Op: tracer.OpSync},
	{ID: 7, Name: "cudaDeviceSynchronize", Op: tracer.OpSync},
	{ID: 8, Name: "cudaMalloc", Op: tracer.OpOther},
	{ID: 9, Name: "cudaFree", Op: tracer.OpOther},
}
