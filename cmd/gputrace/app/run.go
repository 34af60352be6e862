// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package app

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/gputrace/pkg/collector"
	"github.com/DataDog/gputrace/pkg/nvml"
	"github.com/DataDog/gputrace/pkg/tracer/uprobe"
	"github.com/DataDog/gputrace/pkg/util/log"
	"github.com/DataDog/gputrace/pkg/view"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Trace the GPU runtime in the foreground",
		Long: `Attaches to the GPU runtime library and traces API calls until the
duration elapses or an interrupt arrives, then prints the per-function
call report.`,
		RunE: run,
	}

	runDuration time.Duration
	recordPath  string
)

func init() {
	GputraceCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 0, "stop after this long, 0 runs until interrupted")
	runCmd.Flags().StringVarP(&recordPath, "output", "o", "", "append completed record buffers to this file")
}

func run(_ *cobra.Command, _ []string) error {
	kinds, err := cfg.Kinds()
	if err != nil {
		return err
	}

	// The device inventory is informative only, tracing works without it.
	if devices, err := nvml.Devices(); err != nil {
		log.Debugf("GPU inventory unavailable: %v", err)
	} else {
		for _, d := range devices {
			log.Infof("GPU %d: %s (%s, %d MiB)", d.Index, d.Name, d.UUID, d.MemoryBytes/(1024*1024))
		}
	}

	t, err := uprobe.New(uprobe.Config{
		BPFObjectPath: cfg.BPFObjectPath,
		LibraryPath:   cfg.LibraryPath,
	})
	if err != nil {
		return fmt.Errorf("unable to start the tracer: %w", err)
	}
	defer t.Close() //nolint:errcheck

	var out *os.File
	if recordPath != "" {
		out, err = os.Create(recordPath)
		if err != nil {
			return fmt.Errorf("creating record file: %w", err)
		}
		defer out.Close() //nolint:errcheck
	}

	exchange, err := newFileExchange(out)
	if err != nil {
		return err
	}

	coll, err := collector.New(
		collector.Config{EnabledKinds: kinds, Functions: cfg.Functions},
		collector.Dependencies{Tracer: t, Exchange: exchange},
	)
	if err != nil {
		return err
	}

	log.Infof("tracing started")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	if runDuration > 0 {
		select {
		case <-signalCh:
		case <-time.After(runDuration):
		}
	} else {
		<-signalCh
	}

	if err := coll.Close(); err != nil {
		log.Warnf("stopping the collector: %v", err) //nolint:errcheck
	}

	if err := writeReport(coll); err != nil {
		return err
	}
	log.Flush()
	return nil
}

// newFileExchange returns an exchange whose completed buffers are appended
// to out, or discarded when out is nil. Completions run on producer
// threads, so the file write carries its own serialization.
func newFileExchange(out *os.File) (*view.Exchange, error) {
	var mu sync.Mutex
	return view.NewExchange(
		func() []byte { return make([]byte, cfg.BufferSize) },
		func(buf view.Buffer) {
			if out == nil || buf.Empty() {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if _, err := out.Write(buf.Data[:buf.Used]); err != nil {
				log.Warnf("writing record buffer: %v", err) //nolint:errcheck
			}
		},
	)
}

// writeReport prints the hot-functions table to the configured
// destination.
func writeReport(coll *collector.Collector) error {
	if cfg.ReportPath == "" {
		return coll.WriteReport(os.Stdout)
	}
	f, err := os.Create(cfg.ReportPath)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return coll.WriteReport(f)
}
