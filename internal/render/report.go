// Package render writes analysis results to a terminal or as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/guillermoBallester/colscope/internal/core/domain"
)

const (
	ruleWide   = 80
	ruleNarrow = 40
)

// JSON writes v as indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report writes the console form of an analysis report: duplicate
// information, shared columns, table-specific columns, redundant columns,
// and any tables that were skipped.
func Report(w io.Writer, r *domain.AnalysisReport) error {
	p := &printer{w: w}

	p.line(strings.Repeat("=", ruleWide))
	p.line("COLUMN ANALYSIS REPORT")
	p.linef("Run %s at %s", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	p.line(strings.Repeat("=", ruleWide))

	p.section("1. DUPLICATE INFORMATION")
	for _, table := range r.Tables {
		duplicates(p, r, table)
	}

	p.section("2. SHARED COLUMNS ACROSS TABLES")
	if len(r.SharedColumns) == 0 {
		p.linef("  No columns appear in %d or more tables.", r.MinOccurrence)
	} else {
		p.linef("\nColumns appearing in at least %d of %d tables:\n", r.MinOccurrence, len(r.Tables))
		for _, c := range r.SharedColumns {
			p.linef("  - %s  |  Appears in %d tables: %s", c.Column, c.Count, strings.Join(c.Tables, ", "))
		}
	}

	p.section("3. MOST IMPORTANT TABLE-SPECIFIC COLUMNS")
	for _, table := range r.Tables {
		imp := r.Importance[table]
		p.linef("\nTable: %s", table)
		if len(imp.MostCritical) > 0 {
			p.linef("  Most critical: %s", strings.Join(imp.MostCritical, ", "))
		}
		if len(imp.ConfigurationSpecific) > 0 {
			p.linef("  Configuration-specific: %s", strings.Join(imp.ConfigurationSpecific, ", "))
		}
	}

	p.section("4. REDUNDANT COLUMNS")
	for _, table := range r.Tables {
		red := r.Redundancy[table]
		p.linef("\nTable: %s", table)
		verdicts(p, "Likely redundant", red.LikelyRedundant)
		verdicts(p, "Potentially redundant", red.PotentiallyRedundant)
	}

	if len(r.Skipped) > 0 {
		p.section("SKIPPED TABLES")
		for _, s := range r.Skipped {
			p.linef("  - %s: %s", s.Table, s.Reason)
		}
	}

	return p.err
}

// Shared writes the standalone shared-columns listing.
func Shared(w io.Writer, minOccurrence int, shared []domain.SharedColumn, skipped []domain.SkippedTable) error {
	p := &printer{w: w}

	if len(shared) == 0 {
		p.linef("No columns appear in %d or more tables.", minOccurrence)
	}
	for _, c := range shared {
		p.linef("%s  |  Appears in %d tables: %s", c.Column, c.Count, strings.Join(c.Tables, ", "))
	}
	for _, s := range skipped {
		p.linef("skipped %s: %s", s.Table, s.Reason)
	}

	return p.err
}

func duplicates(p *printer, r *domain.AnalysisReport, table string) {
	nm := r.NameMatches[table]
	semantic := r.SemanticMatchesFor(table)

	p.linef("\nTable: %s", table)
	if len(nm.Within) > 0 {
		p.linef("  Within-table duplicates (name match): %s", strings.Join(nm.Within, ", "))
	}
	for _, a := range nm.Across {
		p.linef("  Cross-table duplicates with %s (name match): %s", a.Table, strings.Join(a.Columns, ", "))
	}
	if len(semantic) > 0 {
		p.line("  Semantic data duplicates:")
		for _, m := range semantic {
			col, other, otherCol := m.ColumnA, m.TableB, m.ColumnB
			if m.TableA != table {
				col, other, otherCol = m.ColumnB, m.TableA, m.ColumnA
			}
			p.linef("    - '%s' (in %s) and '%s' (in %s) have high data overlap (%.2f). Reason: %s",
				col, table, otherCol, other, m.Similarity, m.Reason())
		}
	}
	if len(nm.Within) == 0 && len(nm.Across) == 0 && len(semantic) == 0 {
		p.line("  No significant duplicates found (by name or data sample).")
	}
}

func verdicts(p *printer, title string, vs []domain.RedundancyVerdict) {
	if len(vs) == 0 {
		return
	}
	p.linef("  %s:", title)
	for _, v := range vs {
		p.linef("    - %s: %s", v.Column, v.Reason)
	}
}

// printer remembers the first write error so callers check once at the end.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) linef(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func (p *printer) section(title string) {
	p.linef("\n%s", title)
	p.line(strings.Repeat("-", ruleNarrow))
}
