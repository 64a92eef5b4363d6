package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"go.uber.org/zap"
)

// ValidationError is a policy violation: the upload breaks a hard limit.
// It is never retried and never downgraded; the message carries the
// offending measurement and the limit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Limits are the free tier ceilings applied to every upload.
type Limits struct {
	MaxFileSizeMB int
	MaxRows       int
	MaxColumns    int
	MinRows       int
}

// Outcome pairs validation metadata with the (possibly truncated) table.
// NumRows is the effective row count; OriginalRowCount the pre-truncation
// count, so callers can report "N of M rows processed".
type Outcome struct {
	FileSizeBytes    int      `json:"file_size_bytes"`
	FileSizeMB       float64  `json:"file_size_mb"`
	NumRows          int      `json:"num_rows"`
	OriginalRowCount int      `json:"original_row_count"`
	NumColumns       int      `json:"num_columns"`
	Columns          []string `json:"columns"`
	WasLimited       bool     `json:"was_limited"`
}

// Validator enforces file-size, column-count and row-count policy on
// uploaded CSV content.
type Validator struct {
	limits Limits
	logger *zap.Logger
}

func NewValidator(limits Limits, logger *zap.Logger) *Validator {
	return &Validator{limits: limits, logger: logger}
}

func (v *Validator) Limits() Limits { return v.limits }

// Validate checks the raw upload against policy and returns the parsed
// table with its outcome metadata. Size, parse, minimum-row and
// maximum-column violations are hard failures. A row count above
// MaxRows is handled softly: the table is truncated to the first
// MaxRows rows, in original order, and WasLimited is set.
func (v *Validator) Validate(content []byte) (*Table, *Outcome, error) {
	maxBytes := v.limits.MaxFileSizeMB * 1024 * 1024
	sizeMB := float64(len(content)) / (1024 * 1024)

	if len(content) > maxBytes {
		return nil, nil, validationErrorf(
			"file size (%.2f MB) exceeds maximum allowed size (%d MB)",
			sizeMB, v.limits.MaxFileSizeMB)
	}

	table, err := parseCSV(content)
	if err != nil {
		return nil, nil, validationErrorf("failed to parse CSV file: %v", err)
	}

	originalRows := table.NumRows()

	if originalRows < v.limits.MinRows {
		return nil, nil, validationErrorf(
			"CSV has %d rows, minimum required is %d",
			originalRows, v.limits.MinRows)
	}

	if table.NumColumns() > v.limits.MaxColumns {
		return nil, nil, validationErrorf(
			"CSV has %d columns, maximum allowed is %d",
			table.NumColumns(), v.limits.MaxColumns)
	}

	if originalRows > v.limits.MaxRows {
		v.logger.Info("limiting CSV rows for free tier",
			zap.Int("rows", originalRows),
			zap.Int("limit", v.limits.MaxRows))
		table = &Table{Columns: table.Columns, Rows: table.Rows[:v.limits.MaxRows]}
	}

	outcome := &Outcome{
		FileSizeBytes:    len(content),
		FileSizeMB:       sizeMB,
		NumRows:          table.NumRows(),
		OriginalRowCount: originalRows,
		NumColumns:       table.NumColumns(),
		Columns:          table.Columns,
		WasLimited:       originalRows > table.NumRows(),
	}

	v.logger.Info("CSV validation passed",
		zap.Int("rows", outcome.NumRows),
		zap.Int("original_rows", outcome.OriginalRowCount),
		zap.Int("columns", outcome.NumColumns),
		zap.Bool("was_limited", outcome.WasLimited))

	return table, outcome, nil
}

// ParseCSV parses raw content as a delimited table without applying any
// policy. Used to rehydrate tables from stored uploads.
func ParseCSV(content []byte) (*Table, error) {
	return parseCSV(content)
}

func parseCSV(content []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file contains no data")
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}
