package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLimits() Limits {
	return Limits{MaxFileSizeMB: 10, MaxRows: 100, MaxColumns: 30, MinRows: 1}
}

// makeCSV builds a CSV with the given number of data rows and columns.
// Cell values encode their position so truncation order is checkable.
func makeCSV(rows, cols int) []byte {
	var b strings.Builder
	for c := 0; c < cols; c++ {
		if c > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "col%d", c)
	}
	b.WriteByte('\n')
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "r%dc%d", r, c)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func TestValidateWithinLimits(t *testing.T) {
	v := NewValidator(testLimits(), zap.NewNop())

	table, outcome, err := v.Validate(makeCSV(50, 5))
	require.NoError(t, err)

	assert.Equal(t, 50, table.NumRows())
	assert.Equal(t, 5, table.NumColumns())
	assert.Equal(t, 50, outcome.NumRows)
	assert.Equal(t, 50, outcome.OriginalRowCount)
	assert.False(t, outcome.WasLimited)
	assert.Equal(t, []string{"col0", "col1", "col2", "col3", "col4"}, outcome.Columns)
}

func TestValidateTruncatesRowsAboveLimit(t *testing.T) {
	v := NewValidator(testLimits(), zap.NewNop())

	table, outcome, err := v.Validate(makeCSV(150, 5))
	require.NoError(t, err)

	assert.Equal(t, 100, table.NumRows())
	assert.Equal(t, 100, outcome.NumRows)
	assert.Equal(t, 150, outcome.OriginalRowCount)
	assert.True(t, outcome.WasLimited)

	// Kept rows are the first 100 in original order.
	assert.Equal(t, "r0c0", table.Rows[0][0])
	assert.Equal(t, "r99c0", table.Rows[99][0])
}

func TestValidateRejectsTooManyColumns(t *testing.T) {
	v := NewValidator(testLimits(), zap.NewNop())

	_, _, err := v.Validate(makeCSV(10, 31))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "CSV has 31 columns, maximum allowed is 30", verr.Reason)
}

func TestValidateRejectsTooFewRows(t *testing.T) {
	v := NewValidator(testLimits(), zap.NewNop())

	_, _, err := v.Validate(makeCSV(0, 3))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "CSV has 0 rows, minimum required is 1", verr.Reason)
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	v := NewValidator(Limits{MaxFileSizeMB: 1, MaxRows: 1000000, MaxColumns: 30, MinRows: 1}, zap.NewNop())

	content := make([]byte, 1024*1024+1)
	_, _, err := v.Validate(content)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "exceeds maximum allowed size (1 MB)")
}

func TestValidateRejectsMalformedCSV(t *testing.T) {
	v := NewValidator(testLimits(), zap.NewNop())

	// Ragged rows fail the parser.
	_, _, err := v.Validate([]byte("a,b,c\n1,2\n"))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "failed to parse CSV file")
}

func TestColumnIndexNormalization(t *testing.T) {
	table := &Table{Columns: []string{"CustomerID", "Email Address", "monthly_revenue"}}

	assert.Equal(t, 0, table.ColumnIndex("customer_id"))
	assert.Equal(t, 1, table.ColumnIndex("emailaddress"))
	assert.Equal(t, 2, table.ColumnIndex("MonthlyRevenue"))
	assert.Equal(t, -1, table.ColumnIndex("missing"))
}
