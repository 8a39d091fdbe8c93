package backend

import (
	"time"
)

// Row is a single result row keyed by column name, carrying driver-native values.
type Row = map[string]any

// QueryResult is the DTO returned by every execute operation of a backend adapter.
//
// Columns preserves the column order of the result set, which is lost in the Row maps.
// For statements without a result set, Columns and Rows are nil and AffectedRows carries
// the driver's row count.
type QueryResult struct {
	Columns      []string
	Rows         []Row
	AffectedRows int64
	Duration     time.Duration
}

// HasRows reports whether the result carries a result set.
func (r QueryResult) HasRows() bool {
	return len(r.Rows) > 0
}
