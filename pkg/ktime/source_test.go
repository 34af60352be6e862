// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package ktime

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowAdvancesWithClock(t *testing.T) {
	mock := clock.NewMock()
	src := NewSource(mock)

	assert.Equal(t, uint64(0), src.Now())

	mock.Add(150 * time.Nanosecond)
	assert.Equal(t, uint64(150), src.Now())

	mock.Add(2 * time.Millisecond)
	assert.Equal(t, uint64(150+2*1000*1000), src.Now())
}

func TestSharedBaseAlignsSources(t *testing.T) {
	mock := clock.NewMock()
	first := NewSource(mock)

	mock.Add(500 * time.Nanosecond)
	second := NewSourceAt(mock, first.Base())

	assert.Equal(t, first.Now(), second.Now())
}

func TestRealClockIsMonotonic(t *testing.T) {
	src := NewSource(nil)

	a := src.Now()
	b := src.Now()
	require.GreaterOrEqual(t, b, a)
}
