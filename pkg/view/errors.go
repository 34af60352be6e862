// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package view

import "errors"

var (
	// ErrEndOfBuffer signals normal exhaustion of a record walk. It is the
	// decoder's termination condition, not a failure.
	ErrEndOfBuffer = errors.New("end of buffer")

	// ErrBadArgument reports a caller mistake detected synchronously at
	// the call site, such as a nil output record or a nil callback.
	ErrBadArgument = errors.New("bad argument")

	// ErrBufferTooSmall reports a supplied buffer below MaxRecordSize.
	// Such buffers are never written to and never completed.
	ErrBufferTooSmall = errors.New("buffer smaller than largest record")

	// ErrTruncatedRecord reports a record whose declared length does not
	// fit the buffer's used region. Parsing of that buffer cannot
	// continue.
	ErrTruncatedRecord = errors.New("record overruns buffer")

	// ErrClosed reports an emission on a closed exchange.
	ErrClosed = errors.New("exchange is closed")
)
