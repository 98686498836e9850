package db

import (
	"context"

	"travelbook/codec"
)

// TableWrapper is the storage primitive shared by every backend. A backend
// only knows how to read the whole table and overwrite the whole table; it
// never patches single rows.
type TableWrapper interface {
	// Load returns the header row followed by every data row. An empty store
	// returns no rows at all.
	Load(ctx context.Context) ([]codec.Row, error)
	// ReplaceAll overwrites the stored table with the header and the given data rows.
	ReplaceAll(ctx context.Context, rows []codec.Row) error
}
