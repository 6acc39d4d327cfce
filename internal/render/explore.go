package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/guillermoBallester/colscope/internal/core/service"
)

// Exploration writes the console form of a single-table exploration.
func Exploration(w io.Writer, e *service.TableExploration) error {
	p := &printer{w: w}

	p.linef("Table: %s", e.Table)
	if e.RowCount < 0 {
		p.line("Rows: unavailable")
	} else {
		p.linef("Rows: %d", e.RowCount)
	}

	p.section("COLUMNS")
	if p.err == nil {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, c := range e.Columns {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.DataType)
		}
		p.err = tw.Flush()
	}

	p.section("SAMPLE ROWS")
	if len(e.SampleRows) == 0 {
		p.line("  (none)")
	}
	for i, row := range e.SampleRows {
		p.linef("  Row %d: %s", i+1, formatRow(row))
	}

	if len(e.PatternSamples) > 0 {
		p.section("PATTERN SAMPLES")
		for _, ps := range e.PatternSamples {
			p.linef("  [%s] %s: %s", ps.Pattern, ps.Column, strings.Join(ps.Values, ", "))
		}
	}

	return p.err
}

// RowCounts writes one line per table; failed counts print as -1 with the error.
func RowCounts(w io.Writer, counts []service.RowCount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		if c.Error != "" {
			fmt.Fprintf(tw, "%s\t%d\t(%s)\n", c.Table, c.Rows, c.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", c.Table, c.Rows)
	}
	return tw.Flush()
}

// formatRow prints a row's columns in name order so output is stable.
func formatRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, row[k])
	}
	return strings.Join(parts, ", ")
}
