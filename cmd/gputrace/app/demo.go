// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package app

import (
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/DataDog/gputrace/pkg/collector"
	"github.com/DataDog/gputrace/pkg/ktime"
	"github.com/DataDog/gputrace/pkg/tracer/testutil"
	"github.com/DataDog/gputrace/pkg/util/log"
)

var (
	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Trace a synthetic workload",
		Long: `Drives a scripted GEMM-style workload through the in-process fake
tracer and prints the hot-functions table. Needs neither a GPU nor root,
useful for trying the record stream and the decoder.`,
		RunE: demo,
	}

	demoIterations int
	demoRecordPath string
)

func init() {
	GputraceCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVarP(&demoIterations, "iterations", "i", 4, "number of workload iterations")
	demoCmd.Flags().StringVarP(&demoRecordPath, "output", "o", "", "append completed record buffers to this file")
}

func demo(_ *cobra.Command, _ []string) error {
	kinds, err := cfg.Kinds()
	if err != nil {
		return err
	}

	var out *os.File
	if demoRecordPath != "" {
		out, err = os.Create(demoRecordPath)
		if err != nil {
			return fmt.Errorf("creating record file: %w", err)
		}
		defer out.Close() //nolint:errcheck
	}

	exchange, err := newFileExchange(out)
	if err != nil {
		return err
	}

	// A mock clock keeps the scripted durations, and therefore the
	// report, deterministic.
	mock := clock.NewMock()
	tr := testutil.NewTracer(testutil.DefaultFunctions()...)

	coll, err := collector.New(
		collector.Config{EnabledKinds: kinds, Functions: cfg.Functions},
		collector.Dependencies{Tracer: tr, Exchange: exchange, Source: ktime.NewSource(mock)},
	)
	if err != nil {
		return err
	}

	advance := func(d time.Duration) func() {
		return func() { mock.Add(d) }
	}

	for i := 0; i < demoIterations; i++ {
		coll.PushExternalCorrelation(0, uint64(i+1))

		tr.Invoke(testutil.Call{Function: 5, ThreadID: 1, Between: advance(2 * time.Microsecond)})
		tr.Invoke(testutil.Call{Function: 2, ThreadID: 1, Bytes: 1 << 20, Between: advance(250 * time.Microsecond)})
		tr.Invoke(testutil.Call{Function: 3, ThreadID: 1, Bytes: 1 << 12, Between: advance(30 * time.Microsecond)})
		for k := 0; k < 3; k++ {
			tr.Invoke(testutil.Call{Function: 1, ThreadID: 1, Between: advance(400 * time.Microsecond)})
		}
		tr.Invoke(testutil.Call{Function: 4, ThreadID: 1, Between: advance(1500 * time.Microsecond)})
		tr.Invoke(testutil.Call{Function: 2, ThreadID: 1, Bytes: 1 << 20, Between: advance(250 * time.Microsecond)})

		if _, err := coll.PopExternalCorrelation(0); err != nil {
			return err
		}
	}

	if err := coll.Close(); err != nil {
		log.Warnf("stopping the collector: %v", err) //nolint:errcheck
	}
	return writeReport(coll)
}
