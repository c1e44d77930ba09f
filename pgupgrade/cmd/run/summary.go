/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package run

import (
	"fmt"
	"io"
	"time"

	"github.com/hypermodeinc/pgupgrade/upgrade"
)

// PrintSummary writes one line per step followed by the facts the run ended with.
func PrintSummary(w io.Writer, f *upgrade.Facts) {
	fmt.Fprintf(w, "Run %s on %s\n", f.RunID, f.DataDir)
	for i, s := range f.Steps {
		fmt.Fprintf(w, "%2d. %-26s %-9s", i+1, s.Name, s.Status)
		if s.Duration > 0 {
			fmt.Fprintf(w, " %s", s.Duration.Round(time.Millisecond))
		}
		if s.Error != "" {
			fmt.Fprintf(w, " (%s)", s.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, f)
}
