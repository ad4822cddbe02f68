package rulesmith

import (
	"fmt"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
)

// Report is the run's reporting sink: ingest and clustering counts plus
// per-column summaries of the numeric feature matrix.
type Report struct {
	// FilesScanned is how many candidate files the scanner found.
	FilesScanned int

	// ParseFailures is how many files could not be read at all. Files
	// with recoverable header damage still produce (partial) records and
	// are not counted here.
	ParseFailures int

	// PartialRecords is how many records carry parse warnings.
	PartialRecords int

	// Records is the feature-table row count.
	Records int

	// FeatureColumns is the numeric matrix width handed to clustering.
	FeatureColumns int

	// CacheHit marks a run that loaded the table from the cache instead
	// of re-parsing.
	CacheHit bool

	// Clusters is how many non-noise clusters labeling produced.
	Clusters int

	// Labeled and Noise partition the rows by label.
	Labeled int
	Noise   int

	// RulesWritten is how many rules reached the store.
	RulesWritten int

	// ClustersSkipped is how many clusters yielded no optional-header
	// patterns and were not emitted.
	ClustersSkipped int

	// Duration is the wall-clock run time.
	Duration time.Duration

	// Columns summarizes each numeric feature column.
	Columns []ColumnSummary
}

// ColumnSummary is the numeric profile of one feature column.
type ColumnSummary struct {
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// summarizeColumns profiles the numeric projection of a table.
func summarizeColumns(t *Table) []ColumnSummary {
	matrix, fields := t.Matrix()
	if len(matrix) == 0 {
		return nil
	}

	out := make([]ColumnSummary, 0, len(fields))
	col := make([]float64, len(matrix))
	for j, f := range fields {
		for i := range matrix {
			col[i] = matrix[i][j]
		}
		mean, _ := stats.Mean(col)
		sd, _ := stats.StandardDeviation(col)
		lo, _ := stats.Min(col)
		hi, _ := stats.Max(col)
		out = append(out, ColumnSummary{
			Name:   f.Name(),
			Mean:   mean,
			StdDev: sd,
			Min:    lo,
			Max:    hi,
		})
	}
	return out
}

// Render produces the textual run summary.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString("rulesmith run summary\n")
	fmt.Fprintf(&b, "  files scanned:    %d\n", r.FilesScanned)
	fmt.Fprintf(&b, "  parse failures:   %d\n", r.ParseFailures)
	fmt.Fprintf(&b, "  partial records:  %d\n", r.PartialRecords)
	fmt.Fprintf(&b, "  records:          %d", r.Records)
	if r.CacheHit {
		b.WriteString(" (from cache)")
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  feature columns:  %d\n", r.FeatureColumns)
	fmt.Fprintf(&b, "  clusters:         %d\n", r.Clusters)
	fmt.Fprintf(&b, "  labeled samples:  %d\n", r.Labeled)
	fmt.Fprintf(&b, "  noise samples:    %d\n", r.Noise)
	fmt.Fprintf(&b, "  rules written:    %d\n", r.RulesWritten)
	fmt.Fprintf(&b, "  clusters skipped: %d\n", r.ClustersSkipped)
	if r.Duration > 0 {
		fmt.Fprintf(&b, "  duration:         %s\n", r.Duration.Round(time.Millisecond))
	}

	if len(r.Columns) > 0 {
		b.WriteString("\n  column profiles:\n")
		for _, c := range r.Columns {
			fmt.Fprintf(&b, "    %-24s mean=%.2f stddev=%.2f min=%.0f max=%.0f\n",
				c.Name, c.Mean, c.StdDev, c.Min, c.Max)
		}
	}
	return b.String()
}
