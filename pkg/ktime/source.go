// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package ktime provides the monotonic timestamp source used to stamp
// traced calls.
package ktime

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Source returns nanoseconds elapsed since a base instant captured at
// construction. Readings are monotonic for the real clock (time.Time
// carries a monotonic reading) and safe to take from any goroutine.
type Source struct {
	clock clock.Clock
	base  time.Time
}

// NewSource returns a Source based at the current instant of clk. A nil clk
// selects the real clock; tests pass a clock.Mock.
func NewSource(clk clock.Clock) *Source {
	if clk == nil {
		clk = clock.New()
	}
	return NewSourceAt(clk, clk.Now())
}

// NewSourceAt returns a Source with an externally supplied base instant, so
// several collectors can share one time origin.
func NewSourceAt(clk clock.Clock, base time.Time) *Source {
	if clk == nil {
		clk = clock.New()
	}
	return &Source{
		clock: clk,
		base:  base,
	}
}

// Now returns nanoseconds elapsed since the base instant.
func (s *Source) Now() uint64 {
	return uint64(s.clock.Since(s.base))
}

// Base returns the base instant readings are relative to.
func (s *Source) Base() time.Time {
	return s.base
}
