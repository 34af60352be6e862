// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package log wraps seelog behind leveled package functions so the rest of
// the SDK never touches the logging backend directly.
package log

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

var (
	logger *sdkLogger

	// This buffer holds log lines emitted before the logger is set up, so
	// that early construction paths can log without caring about init
	// order. It is replayed and discarded on SetupLogger.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex

	// Two frames between the exported functions and the seelog call site.
	defaultStackDepth = 2
)

// sdkLogger wraps a seelog logger with a level gate.
type sdkLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	l     sync.RWMutex
}

// SetupLogger installs the given seelog logger at the given level and
// replays any lines buffered before initialization.
func SetupLogger(l seelog.LoggerInterface, level string) {
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		lvl = seelog.InfoLvl
	}

	logger = &sdkLogger{
		inner: l,
		level: lvl,
	}
	logger.inner.SetAdditionalStackDepth(defaultStackDepth) //nolint:errcheck

	bufferMutex.Lock()
	defer bufferMutex.Unlock()
	bufferLogsBeforeInit = false
	for _, logLine := range logsBuffer {
		logLine()
	}
	logsBuffer = []func(){}
}

// BuildConsoleLogger returns a seelog logger writing to the console with the
// standard line format, ready to be passed to SetupLogger.
func BuildConsoleLogger(level string) (seelog.LoggerInterface, error) {
	if _, ok := seelog.LogLevelFromString(strings.ToLower(level)); !ok {
		return nil, fmt.Errorf("unknown log level: %s", level)
	}
	config := fmt.Sprintf(
		`<seelog minlevel=%q>
	<outputs formatid="common"><console/></outputs>
	<formats>
		<format id="common" format="%%Date(2006-01-02 15:04:05 MST) | GPUTRACE | %%LEVEL | (%%ShortFilePath:%%Line in %%FuncShort) | %%Msg%%n"/>
	</formats>
</seelog>`, strings.ToLower(level))
	return seelog.LoggerFromConfigAsString(config)
}

func addLogToBuffer(logHandle func()) {
	bufferMutex.Lock()
	defer bufferMutex.Unlock()

	if bufferLogsBeforeInit {
		logsBuffer = append(logsBuffer, logHandle)
	}
}

func (sw *sdkLogger) shouldLog(level seelog.LogLevel) bool {
	sw.l.RLock()
	defer sw.l.RUnlock()
	return level >= sw.level
}

// Tracef formats and logs at the trace level.
func Tracef(format string, params ...interface{}) {
	if logger == nil {
		addLogToBuffer(func() { Tracef(format, params...) })
		return
	}
	if logger.shouldLog(seelog.TraceLvl) {
		logger.inner.Tracef(format, params...)
	}
}

// Debugf formats and logs at the debug level.
func Debugf(format string, params ...interface{}) {
	if logger == nil {
		addLogToBuffer(func() { Debugf(format, params...) })
		return
	}
	if logger.shouldLog(seelog.DebugLvl) {
		logger.inner.Debugf(format, params...)
	}
}

// Infof formats and logs at the info level.
func Infof(format string, params ...interface{}) {
	if logger == nil {
		addLogToBuffer(func() { Infof(format, params...) })
		return
	}
	if logger.shouldLog(seelog.InfoLvl) {
		logger.inner.Infof(format, params...)
	}
}

// Warnf formats and logs at the warn level and returns the formatted message
// as an error so callers can both log and propagate in one statement.
func Warnf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	if logger == nil {
		addLogToBuffer(func() { warn(err) })
		return err
	}
	warn(err)
	return err
}

// Errorf formats and logs at the error level and returns the formatted
// message as an error.
func Errorf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	if logger == nil {
		addLogToBuffer(func() { logError(err) })
		return err
	}
	logError(err)
	return err
}

func warn(err error) {
	if logger.shouldLog(seelog.WarnLvl) {
		logger.inner.Warn(err) //nolint:errcheck
	}
}

func logError(err error) {
	if logger.shouldLog(seelog.ErrorLvl) {
		logger.inner.Error(err) //nolint:errcheck
	}
}

// Flush flushes the underlying logger's I/O.
func Flush() {
	if logger != nil {
		logger.inner.Flush()
	}
}
