// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package stats

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// WriteReport writes the hot-functions table for the given snapshot to w.
// Rows are ordered by total time descending, then call count descending,
// then function name. Nothing is written when the aggregate total over all
// functions is zero.
func WriteReport(w io.Writer, snap map[string]FunctionStat) error {
	var grand uint64
	for _, st := range snap {
		grand += st.TotalNs
	}
	if grand == 0 {
		return nil
	}

	type entry struct {
		name string
		stat FunctionStat
	}
	entries := make([]entry, 0, len(snap))
	for name, st := range snap {
		entries = append(entries, entry{name: name, stat: st})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.stat.TotalNs != b.stat.TotalNs {
			return a.stat.TotalNs > b.stat.TotalNs
		}
		if a.stat.Calls != b.stat.Calls {
			return a.stat.Calls > b.stat.Calls
		}
		return a.name < b.name
	})

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Function\tCalls\tTime (ns)\tTime (%)\tAverage (ns)\tMin (ns)\tMax (ns)\t")
	for _, e := range entries {
		percent := 100 * float64(e.stat.TotalNs) / float64(grand)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%d\t%d\t%d\t\n",
			e.name, e.stat.Calls, e.stat.TotalNs, percent,
			e.stat.TotalNs/e.stat.Calls, e.stat.MinNs, e.stat.MaxNs)
	}
	return tw.Flush()
}
