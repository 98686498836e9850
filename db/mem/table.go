package mem

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"travelbook/codec"
	dbt "travelbook/db/db"
)

// InMemoryTableWrapper is an in-memory implementation of dbt.TableWrapper.
// Failures can be switched on to exercise the callers' error paths.
type InMemoryTableWrapper struct {
	rows []codec.Row

	// FailLoad and FailReplace make the next calls return a BackendError.
	FailLoad    bool
	FailReplace bool

	LoadCalls    int
	ReplaceCalls int

	// Mutex for thread-safety, the wrapper is shared between a store and its tests.
	mu sync.RWMutex
}

// NewInMemoryTableWrapper creates a wrapper holding a copy of the given rows,
// which include the header when not empty.
func NewInMemoryTableWrapper(rows ...codec.Row) *InMemoryTableWrapper {
	return &InMemoryTableWrapper{rows: copyRows(rows)}
}

// Load returns a copy of the stored rows.
func (db *InMemoryTableWrapper) Load(_ context.Context) ([]codec.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.LoadCalls++
	if db.FailLoad {
		return nil, &dbt.BackendError{Backend: dbt.BackendMem, Op: "load", Msg: "load failure injected"}
	}
	return copyRows(db.rows), nil
}

// ReplaceAll stores the header followed by a copy of rows.
func (db *InMemoryTableWrapper) ReplaceAll(_ context.Context, rows []codec.Row) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.ReplaceCalls++
	if db.FailReplace {
		return &dbt.BackendError{Backend: dbt.BackendMem, Op: "replace_all", Msg: "replace failure injected"}
	}
	for i, row := range rows {
		if len(row) != len(codec.Columns) {
			return &dbt.BackendError{Backend: dbt.BackendMem, Op: "replace_all", Msg: fmt.Sprintf("row %d has %d cells, want %d", i+1, len(row), len(codec.Columns))}
		}
	}
	db.rows = append([]codec.Row{codec.Header()}, copyRows(rows)...)
	return nil
}

// Rows returns a copy of the stored table, header included.
func (db *InMemoryTableWrapper) Rows() []codec.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return copyRows(db.rows)
}

func copyRows(rows []codec.Row) []codec.Row {
	out := make([]codec.Row, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}
	return out
}
