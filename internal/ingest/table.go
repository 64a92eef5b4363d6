package ingest

import "strings"

// Table is an in-memory rectangular dataset: an ordered list of named
// columns and an ordered list of rows. It is immutable after validation.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t *Table) NumRows() int    { return len(t.Rows) }
func (t *Table) NumColumns() int { return len(t.Columns) }

// ColumnIndex returns the index of the named column, matching loosely:
// case-insensitive with underscores and spaces ignored, so "CustomerID",
// "customer_id" and "Customer ID" all resolve the same. Returns -1 when
// no column matches.
func (t *Table) ColumnIndex(name string) int {
	want := normalizeColumn(name)
	for i, col := range t.Columns {
		if normalizeColumn(col) == want {
			return i
		}
	}
	return -1
}

// Column returns all values of the column at index i in row order.
func (t *Table) Column(i int) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[i])
	}
	return values
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, " ", "")
	return name
}
