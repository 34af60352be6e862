// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package stats aggregates per-function call durations collected from
// concurrent tracing callbacks and renders them as a hot-functions report.
package stats

import (
	"sync"

	"github.com/twmb/murmur3"
)

// FunctionStat holds the running statistics for one traced function.
type FunctionStat struct {
	TotalNs uint64
	MinNs   uint64
	MaxNs   uint64
	Calls   uint64
}

// shardCount must be a power of two, see shardFor.
const shardCount = 32

// Aggregator maintains per-function statistics under updates from an
// unbounded set of driver threads. Updates for one function are serialized
// by its shard's lock; functions hashing to different shards do not
// contend. Entries are never removed during the aggregator's lifetime.
type Aggregator struct {
	shards [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	stats map[string]*FunctionStat
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	for i := range a.shards {
		a.shards[i].stats = make(map[string]*FunctionStat)
	}
	return a
}

func (a *Aggregator) shardFor(name string) *shard {
	return &a.shards[murmur3.StringSum32(name)&(shardCount-1)]
}

// Record folds one completed call of name with the given duration into the
// statistics. The first observation of a name seeds every field with
// elapsedNs.
func (a *Aggregator) Record(name string, elapsedNs uint64) {
	s := a.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[name]
	if !ok {
		s.stats[name] = &FunctionStat{
			TotalNs: elapsedNs,
			MinNs:   elapsedNs,
			MaxNs:   elapsedNs,
			Calls:   1,
		}
		return
	}
	st.TotalNs += elapsedNs
	if elapsedNs < st.MinNs {
		st.MinNs = elapsedNs
	}
	if elapsedNs > st.MaxNs {
		st.MaxNs = elapsedNs
	}
	st.Calls++
}

// Snapshot returns a copy of every function's statistics. All shard locks
// are held while copying, so concurrent Record calls cannot tear the view.
func (a *Aggregator) Snapshot() map[string]FunctionStat {
	for i := range a.shards {
		a.shards[i].mu.Lock()
	}
	defer func() {
		for i := range a.shards {
			a.shards[i].mu.Unlock()
		}
	}()

	n := 0
	for i := range a.shards {
		n += len(a.shards[i].stats)
	}
	out := make(map[string]FunctionStat, n)
	for i := range a.shards {
		for name, st := range a.shards[i].stats {
			out[name] = *st
		}
	}
	return out
}
