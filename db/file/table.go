// Package file stores the order table as a CSV file on local disk.
package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"travelbook/codec"
	dbt "travelbook/db/db"
)

// utf8BOM keeps spreadsheet programs from guessing a legacy encoding for Chinese text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVTableWrapper implements dbt.TableWrapper over a single CSV file.
type CSVTableWrapper struct {
	path string
}

// NewCSVTableWrapper returns a wrapper for the file at path. The file does not
// need to exist yet.
func NewCSVTableWrapper(path string) *CSVTableWrapper {
	return &CSVTableWrapper{path: path}
}

// Path returns the backing file path.
func (w *CSVTableWrapper) Path() string {
	return w.path
}

func (w *CSVTableWrapper) fail(op string, err error) error {
	return &dbt.BackendError{Backend: dbt.BackendFile, Op: op, Msg: w.path, Err: err}
}

// Load reads every row of the file. A missing or empty file is an empty table.
func (w *CSVTableWrapper) Load(ctx context.Context) ([]codec.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, w.fail("load", err)
	}
	content, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("order file not found, starting with an empty table", "path", w.path)
		return []codec.Row{}, nil
	}
	if err != nil {
		return nil, w.fail("load", err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		slog.Info("order file is empty", "path", w.path)
		return []codec.Row{}, nil
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, w.fail("load", fmt.Errorf("parse csv: %w", err))
	}

	rows := make([]codec.Row, len(records))
	for i, record := range records {
		row := make(codec.Row, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		rows[i] = row
	}
	slog.Debug("loaded order file", "path", w.path, "rows", len(rows))
	return rows, nil
}

// ReplaceAll writes the header and rows to a temporary file next to the
// target and renames it into place, so a failed write leaves the old file intact.
func (w *CSVTableWrapper) ReplaceAll(ctx context.Context, rows []codec.Row) error {
	if err := ctx.Err(); err != nil {
		return w.fail("replace_all", err)
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, toRecord(codec.Header()))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return w.fail("replace_all", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return w.fail("replace_all", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(utf8BOM); err != nil {
		tmp.Close()
		return w.fail("replace_all", err)
	}
	writer := csv.NewWriter(tmp)
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		return w.fail("replace_all", err)
	}
	if err := tmp.Close(); err != nil {
		return w.fail("replace_all", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return w.fail("replace_all", err)
	}
	slog.Debug("saved order file", "path", w.path, "rows", len(rows))
	return nil
}

func toRecord(row codec.Row) []string {
	record := make([]string, len(row))
	for i, cell := range row {
		record[i] = codec.CellText(cell)
	}
	return record
}
