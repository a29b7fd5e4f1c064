// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package results

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/absmach/brokerperf/perf"
)

// Render writes runs as an aligned table.
func Render(w io.Writer, runs []perf.RunResult) error {
	tw := tabwriter.NewWriter(w, 2, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tTRANSPORT\tUSERS\tTARGET\tSENT\tRECEIVED\tDURATION_MS\tMPS\tAVG_LATENCY_MS\tERROR")
	for _, r := range runs {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%s\n",
			shortID(r.ID),
			r.Mode,
			r.Transport,
			r.Users,
			r.Target,
			r.Sent,
			r.Received,
			r.DurationMS,
			r.SendRateMPS,
			r.AvgLatencyMS,
			errText,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
