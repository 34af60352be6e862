// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package uprobe

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/gputrace/pkg/telemetry"
	"github.com/DataDog/gputrace/pkg/tracer"
)

func eventBytes(ev apiEvent) []byte {
	buf := make([]byte, apiEventSize)
	*(*apiEvent)(unsafe.Pointer(&buf[0])) = ev
	return buf
}

type recordingCallback struct {
	calls []tracer.CallbackData
}

func (r *recordingCallback) cb(d *tracer.CallbackData) {
	r.calls = append(r.calls, *d)
}

func newTestDispatcher(t *testing.T) (*dispatcher, *recordingCallback) {
	t.Helper()
	telemetry.Reset()
	d := newDispatcher(functionSpecs)
	rec := &recordingCallback{}
	require.NoError(t, d.setCallback(rec.cb))
	return d, rec
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	var total float64
	for _, m := range telemetry.GetCountMetric(telemetrySubsystem, name) {
		total += m.Value()
	}
	return total
}

func TestDecodeEvent(t *testing.T) {
	ev := apiEvent{PidTgid: 0x0000123400005678, Bytes: 4096, FunctionID: 2, Site: uint32(tracer.SiteExit)}
	got, err := decodeEvent(eventBytes(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, *got)

	_, err = decodeEvent(make([]byte, apiEventSize-1))
	require.Error(t, err)
}

func TestDispatchPairsEnterAndExit(t *testing.T) {
	d, rec := newTestDispatcher(t)

	pidTgid := uint64(42)<<32 | 1001
	d.dispatch(&apiEvent{PidTgid: pidTgid, FunctionID: 1, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: pidTgid, FunctionID: 1, Site: uint32(tracer.SiteExit)})

	require.Len(t, rec.calls, 2)
	enter, exit := rec.calls[0], rec.calls[1]
	assert.Equal(t, tracer.SiteEnter, enter.Site)
	assert.Equal(t, tracer.SiteExit, exit.Site)
	assert.Equal(t, "cudaLaunchKernel", enter.FunctionName)
	assert.Equal(t, uint32(1001), enter.ThreadID)
	// Both callbacks see the same per-call slot.
	assert.Same(t, enter.Correlation, exit.Correlation)
	assert.Empty(t, d.inflight)
}

func TestDispatchCarriesBytesOnExit(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 3, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 3, Site: uint32(tracer.SiteExit), Bytes: 8192})

	require.Len(t, rec.calls, 2)
	assert.Equal(t, uint64(0), rec.calls[0].Bytes)
	assert.Equal(t, uint64(8192), rec.calls[1].Bytes)
}

func TestDispatchNestedCallsPairLIFO(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 2, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 8, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 8, Site: uint32(tracer.SiteExit)})
	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 2, Site: uint32(tracer.SiteExit)})

	require.Len(t, rec.calls, 4)
	assert.Same(t, rec.calls[1].Correlation, rec.calls[2].Correlation)
	assert.Same(t, rec.calls[0].Correlation, rec.calls[3].Correlation)
	assert.NotSame(t, rec.calls[0].Correlation, rec.calls[1].Correlation)
	assert.Empty(t, d.inflight)
}

func TestDispatchThreadsDoNotShareSlots(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 1, FunctionID: 1, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 2, FunctionID: 1, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 1, FunctionID: 1, Site: uint32(tracer.SiteExit)})
	d.dispatch(&apiEvent{PidTgid: 2, FunctionID: 1, Site: uint32(tracer.SiteExit)})

	require.Len(t, rec.calls, 4)
	assert.Same(t, rec.calls[0].Correlation, rec.calls[2].Correlation)
	assert.Same(t, rec.calls[1].Correlation, rec.calls[3].Correlation)
	assert.NotSame(t, rec.calls[0].Correlation, rec.calls[1].Correlation)
}

func TestDispatchUnmatchedExit(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 1, Site: uint32(tracer.SiteExit)})

	assert.Empty(t, rec.calls)
	assert.Equal(t, float64(1), counterValue(t, "unmatched_exits"))
}

func TestDispatchMismatchedExitDropsCall(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 1, Site: uint32(tracer.SiteEnter)})
	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 2, Site: uint32(tracer.SiteExit)})

	require.Len(t, rec.calls, 1)
	assert.Equal(t, tracer.SiteEnter, rec.calls[0].Site)
	assert.Equal(t, float64(1), counterValue(t, "unmatched_exits"))
	assert.Empty(t, d.inflight)
}

func TestDispatchUnknownFunction(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.dispatch(&apiEvent{PidTgid: 7, FunctionID: 999, Site: uint32(tracer.SiteEnter)})

	assert.Empty(t, rec.calls)
	assert.Equal(t, float64(1), counterValue(t, "unknown_events"))
}

func TestHandleSampleRejectsShortData(t *testing.T) {
	d, rec := newTestDispatcher(t)

	d.handleSample(make([]byte, 4))

	assert.Empty(t, rec.calls)
	assert.Equal(t, float64(1), counterValue(t, "decode_errors"))
}

func TestSetCallbackRejectsNil(t *testing.T) {
	telemetry.Reset()
	d := newDispatcher(functionSpecs)
	require.Error(t, d.setCallback(nil))
}
