package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateOrderRows, downCreateOrderRows)
}

func upCreateOrderRows(ctx context.Context, tx *sql.Tx) error {
	// Create order_rows table, position 0 is the header row
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE order_rows (
			position INTEGER PRIMARY KEY,
			cells JSONB NOT NULL,
			CONSTRAINT chk_order_rows_position CHECK (position >= 0),
			CONSTRAINT chk_order_rows_cells CHECK (jsonb_typeof(cells) = 'array')
		);
	`)
	return err
}

func downCreateOrderRows(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS order_rows;`)
	return err
}
