// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package log

import (
	"bytes"
	"testing"

	"github.com/cihub/seelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger() {
	logger = nil
	bufferMutex.Lock()
	logsBuffer = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex.Unlock()
}

func newTestLogger(t *testing.T) (*bytes.Buffer, seelog.LoggerInterface) {
	var b bytes.Buffer
	l, err := seelog.LoggerFromWriterWithMinLevelAndFormat(&b, seelog.TraceLvl, "%LEVEL %Msg%n")
	require.NoError(t, err)
	return &b, l
}

func TestLinesBufferedBeforeInit(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	Infof("early %s", "bird")

	b, l := newTestLogger(t)
	SetupLogger(l, "debug")
	Flush()

	assert.Contains(t, b.String(), "early bird")
}

func TestLevelGate(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	b, l := newTestLogger(t)
	SetupLogger(l, "warn")

	Debugf("too quiet")
	Infof("still too quiet")
	err := Warnf("loud enough: %d", 42)
	require.Error(t, err)
	assert.Equal(t, "loud enough: 42", err.Error())
	Flush()

	out := b.String()
	assert.NotContains(t, out, "too quiet")
	assert.Contains(t, out, "loud enough: 42")
}

func TestErrorfReturnsError(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	b, l := newTestLogger(t)
	SetupLogger(l, "trace")

	err := Errorf("bad state: %s", "oops")
	require.EqualError(t, err, "bad state: oops")
	Flush()
	assert.Contains(t, b.String(), "bad state: oops")
}

func TestBadLevelDefaultsToInfo(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	b, l := newTestLogger(t)
	SetupLogger(l, "not-a-level")

	Debugf("hidden")
	Infof("visible")
	Flush()

	out := b.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestBuildConsoleLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := BuildConsoleLogger("nope")
	require.Error(t, err)
}
