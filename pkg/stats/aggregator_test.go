// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

func TestRecordSeedsFirstObservation(t *testing.T) {
	a := NewAggregator()
	a.Record("launchKernel", 250)

	snap := a.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, FunctionStat{TotalNs: 250, MinNs: 250, MaxNs: 250, Calls: 1}, snap["launchKernel"])
}

func TestRecordFoldsSubsequentCalls(t *testing.T) {
	a := NewAggregator()
	a.Record("foo", 100)
	a.Record("foo", 300)
	a.Record("bar", 50)

	snap := a.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, FunctionStat{TotalNs: 400, MinNs: 100, MaxNs: 300, Calls: 2}, snap["foo"])
	assert.Equal(t, FunctionStat{TotalNs: 50, MinNs: 50, MaxNs: 50, Calls: 1}, snap["bar"])
}

func TestConcurrentRecords(t *testing.T) {
	const (
		goroutines = 8
		iterations = 100
	)
	names := []string{"launchKernel", "memcpyAsync", "deviceSynchronize"}

	a := NewAggregator()
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for k, name := range names {
					a.Record(name, uint64(k*1000+i+1))
				}
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	assert.ElementsMatch(t, names, maps.Keys(snap))

	for k, name := range names {
		st := snap[name]
		base := uint64(k * 1000)
		var perGoroutine uint64
		for i := 1; i <= iterations; i++ {
			perGoroutine += base + uint64(i)
		}
		assert.Equal(t, uint64(goroutines*iterations), st.Calls, name)
		assert.Equal(t, goroutines*perGoroutine, st.TotalNs, name)
		assert.Equal(t, base+1, st.MinNs, name)
		assert.Equal(t, base+uint64(iterations), st.MaxNs, name)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.Record("foo", 10)

	snap := a.Snapshot()
	snap["foo"] = FunctionStat{TotalNs: 999, MinNs: 999, MaxNs: 999, Calls: 999}
	snap["injected"] = FunctionStat{Calls: 1}

	fresh := a.Snapshot()
	require.Len(t, fresh, 1)
	assert.Equal(t, FunctionStat{TotalNs: 10, MinNs: 10, MaxNs: 10, Calls: 1}, fresh["foo"])
}

func TestEmptySnapshot(t *testing.T) {
	a := NewAggregator()
	assert.Empty(t, a.Snapshot())
}
