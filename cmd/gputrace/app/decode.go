// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/gputrace/pkg/view"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Print the records of a capture file",
	Long: `Decodes a file written with run --output and prints one line per
record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return decodeFile(os.Stdout, args[0])
	},
}

func init() {
	GputraceCmd.AddCommand(decodeCmd)
}

func decodeFile(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCORRELATION\tTHREAD\tDURATION\tDETAIL")

	count := 0
	dec := view.NewDecoder(data, len(data))
	var rec view.Record
	for {
		err := dec.Next(&rec)
		if errors.Is(err, view.ErrEndOfBuffer) {
			break
		}
		if err != nil {
			return fmt.Errorf("decoding %s after %d records: %w", path, count, err)
		}
		count++
		writeRecordRow(tw, &rec)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d records\n", count)
	return err
}

func writeRecordRow(w io.Writer, rec *view.Record) {
	switch rec.Kind() {
	case view.KindKernel:
		k := rec.Kernel()
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s on device %d\n",
			rec.Kind(), k.CorrelationID, k.ThreadID,
			time.Duration(k.EndNs-k.StartNs), k.KernelName(), k.DeviceIndex)
	case view.KindMemoryCopy:
		m := rec.MemoryCopy()
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d bytes %s to %s\n",
			rec.Kind(), m.CorrelationID, m.ThreadID,
			time.Duration(m.EndNs-m.StartNs), m.Bytes, m.SrcKind, m.DstKind)
	case view.KindMemoryFill:
		m := rec.MemoryFill()
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d bytes with %#x\n",
			rec.Kind(), m.CorrelationID, m.ThreadID,
			time.Duration(m.EndNs-m.StartNs), m.Bytes, m.Value)
	case view.KindExternalCorrelation:
		e := rec.ExternalCorrelation()
		fmt.Fprintf(w, "%s\t%d\t\t\texternal %d/%d\n",
			rec.Kind(), e.CorrelationID, e.ExternalKind, e.ExternalID)
	case view.KindOverhead:
		o := rec.Overhead()
		fmt.Fprintf(w, "%s\t\t\t%s\t%d callbacks\n",
			rec.Kind(), time.Duration(o.DurationNs), o.Count)
	default:
		fmt.Fprintf(w, "%s\t\t\t\t%d bytes\n", rec.Kind(), rec.Size())
	}
}
