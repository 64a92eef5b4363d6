// Package serialize turns a validated table into the text blocks that go
// into model prompts. Output is deterministic: the same table always
// serializes to byte-identical text.
package serialize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/churnlabs/churnguard/internal/ingest"
)

// TableText renders the full analysis serialization: dataset overview,
// the complete row dump (every row, deliberately not a sample: the model
// must see the whole truncated table), per-column statistics, and the
// output reminder. It never fails; on an internal error it falls back to
// an unstructured rendering rather than breaking the pipeline.
func TableText(t *ingest.Table) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fallbackText(t)
		}
	}()

	var b strings.Builder
	b.WriteString("Dataset Overview:\n")
	fmt.Fprintf(&b, "- Total Records: %d\n", t.NumRows())
	fmt.Fprintf(&b, "- Columns: %s\n\n", strings.Join(t.Columns, ", "))

	b.WriteString("Customer Data:\n")
	b.WriteString(renderRows(t))
	b.WriteString("\n\n")

	b.WriteString(statisticalSummary(t))

	fmt.Fprintf(&b, "\n\nIMPORTANT: Generate churn predictions for these %d customers. ", t.NumRows())
	b.WriteString("Each customer needs: customer_id, churn_probability, risk_level, ")
	b.WriteString("primary_risk_factors, retention_recommendation, and estimated_revenue_impact.\n")

	return b.String()
}

// renderRows renders every row as an aligned plain-text table.
func renderRows(t *ingest.Table) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)

	header := make(table.Row, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	w.AppendHeader(header)

	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		w.AppendRow(r)
	}

	return w.Render()
}

func statisticalSummary(t *ingest.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statistical Summary (%d records):\n", t.NumRows())

	for i, col := range t.Columns {
		values := t.Column(i)
		if nums, ok := numericValues(values); ok {
			fmt.Fprintf(&b, "- %s: min=%s, max=%s, mean=%.2f, median=%.2f, std=%.2f\n",
				col, formatNumber(minOf(nums)), formatNumber(maxOf(nums)),
				mean(nums), median(nums), stddev(nums))
			continue
		}
		distinct := distinctValues(values)
		fmt.Fprintf(&b, "- %s: %d unique values", col, len(distinct))
		if len(distinct) <= 10 {
			fmt.Fprintf(&b, " (%s)", strings.Join(distinct, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// SummaryStatistics renders only the per-column statistics, used as the
// compact context for summary-mode questions.
func SummaryStatistics(t *ingest.Table) string {
	var b strings.Builder

	for i, col := range t.Columns {
		values := t.Column(i)
		if nums, ok := numericValues(values); ok {
			fmt.Fprintf(&b, "\n%s:\n", col)
			fmt.Fprintf(&b, "  - Min: %s\n", formatNumber(minOf(nums)))
			fmt.Fprintf(&b, "  - Max: %s\n", formatNumber(maxOf(nums)))
			fmt.Fprintf(&b, "  - Mean: %.2f\n", mean(nums))
			fmt.Fprintf(&b, "  - Median: %.2f\n", median(nums))
			continue
		}
		distinct := distinctValues(values)
		fmt.Fprintf(&b, "\n%s: %d unique values", col, len(distinct))
		if len(distinct) <= 10 {
			fmt.Fprintf(&b, " - (%s)", strings.Join(distinct, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func fallbackText(t *ingest.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, ", "))
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// numericValues reports whether the column is numeric (every cell parses
// as a number) and returns the parsed values.
func numericValues(values []string) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, true
}

// distinctValues preserves first-appearance order.
func distinctValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	distinct := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		distinct = append(distinct, v)
	}
	return distinct
}

// formatNumber prints integers without a decimal point, mirroring how
// the values appeared in the source data.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func minOf(nums []float64) float64 {
	m := nums[0]
	for _, v := range nums[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(nums []float64) float64 {
	m := nums[0]
	for _, v := range nums[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func mean(nums []float64) float64 {
	var sum float64
	for _, v := range nums {
		sum += v
	}
	return sum / float64(len(nums))
}

func median(nums []float64) float64 {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stddev is the sample standard deviation. Zero for a single value.
func stddev(nums []float64) float64 {
	if len(nums) < 2 {
		return 0
	}
	m := mean(nums)
	var sum float64
	for _, v := range nums {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(nums)-1))
}
