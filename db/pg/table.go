// Package pg stores the order table in PostgreSQL, one jsonb row per table row.
package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"travelbook/codec"
	dbt "travelbook/db/db"
)

// GORMTableWrapper is a GORM-based PostgreSQL implementation of dbt.TableWrapper.
type GORMTableWrapper struct {
	db *gorm.DB
}

// NewGORMTableWrapper creates and returns a new instance of GORMTableWrapper.
func NewGORMTableWrapper(db *gorm.DB) *GORMTableWrapper {
	return &GORMTableWrapper{
		db: db,
	}
}

// Load reads every row ordered by position.
func (pgdb *GORMTableWrapper) Load(ctx context.Context) ([]codec.Row, error) {
	var models []RowModel
	result := pgdb.db.WithContext(ctx).Order("position").Find(&models)
	if result.Error != nil {
		return nil, dbt.NewBackendError(dbt.BackendPG, "load", result.Error)
	}

	rows := make([]codec.Row, 0, len(models))
	for _, m := range models {
		row, err := decodeCells(m.Cells)
		if err != nil {
			return nil, dbt.NewBackendError(dbt.BackendPG, "load", fmt.Errorf("row %d: %w", m.Position, err))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReplaceAll deletes every stored row and inserts header plus rows in one transaction.
func (pgdb *GORMTableWrapper) ReplaceAll(ctx context.Context, rows []codec.Row) error {
	models := make([]RowModel, 0, len(rows)+1)
	for i, row := range append([]codec.Row{codec.Header()}, rows...) {
		cells, err := encodeCells(row)
		if err != nil {
			return dbt.NewBackendError(dbt.BackendPG, "replace_all", fmt.Errorf("row %d: %w", i, err))
		}
		models = append(models, RowModel{Position: i, Cells: cells})
	}

	err := pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&RowModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete rows: %w", err)
		}
		if err := tx.CreateInBatches(&models, 500).Error; err != nil {
			return fmt.Errorf("failed to insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return dbt.NewBackendError(dbt.BackendPG, "replace_all", err)
	}
	return nil
}

// encodeCells stores every cell as text so numbers come back in the same form
// the file backend produces.
func encodeCells(row codec.Row) (string, error) {
	cells := make([]string, len(row))
	for i, cell := range row {
		cells[i] = codec.CellText(cell)
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeCells(raw string) (codec.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var row codec.Row
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	if row == nil {
		row = codec.Row{}
	}
	return row, nil
}
