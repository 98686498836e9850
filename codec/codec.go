package codec

import (
	"fmt"
	"log/slog"
	"strings"

	"travelbook/order"
)

// SchemaMismatchError is returned when a stored header differs from ExpectedColumns.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Expected) != len(e.Got) {
		return fmt.Sprintf("table header mismatch: expected %d columns, got %d (%s)",
			len(e.Expected), len(e.Got), strings.Join(e.Got, ","))
	}
	for i := range e.Expected {
		if e.Expected[i] != e.Got[i] {
			return fmt.Sprintf("table header mismatch at column %d: expected %q, got %q", i+1, e.Expected[i], e.Got[i])
		}
	}
	return "table header mismatch"
}

func headerNames(header Row) []string {
	names := make([]string, len(header))
	for i, cell := range header {
		name := CellText(cell)
		if i == 0 {
			name = strings.TrimPrefix(name, bom)
		}
		names[i] = name
	}
	return names
}

// CheckHeader accepts only the exact ExpectedColumns sequence.
func CheckHeader(header Row) error {
	got := headerNames(header)
	expected := ExpectedColumns()
	if len(got) != len(expected) {
		return &SchemaMismatchError{Expected: expected, Got: got}
	}
	for i := range expected {
		if got[i] != expected[i] {
			return &SchemaMismatchError{Expected: expected, Got: got}
		}
	}
	return nil
}

// Encode projects an order onto the column layout.
func Encode(o order.Order) Row {
	row := make(Row, len(Columns))
	for i, c := range Columns {
		switch c.Kind {
		case Integer:
			row[i] = *c.integer(&o)
		case Decimal:
			row[i] = *c.decimal(&o)
		case Text:
			row[i] = *c.text(&o)
		case JSONArray:
			row[i] = encodeList(c.list(&o))
		}
	}
	return row
}

// EncodeTable encodes every order. The header is not included.
func EncodeTable(orders []order.Order) []Row {
	rows := make([]Row, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, Encode(o))
	}
	return rows
}

// Decode reads a data row by column name. Unparsable cells become zero values
// and are logged; columns missing from the header stay zero.
func Decode(header Row, row Row) order.Order {
	index := make(map[string]int, len(header))
	for i, name := range headerNames(header) {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	o := order.Order{
		Draft: order.Draft{
			PaymentMethods: []string{},
			Lines:          []string{},
			Partners:       []order.Partner{},
		},
	}
	for _, c := range Columns {
		var cell any
		if i, ok := index[c.Name]; ok && i < len(row) {
			cell = row[i]
		}
		switch c.Kind {
		case Integer:
			*c.integer(&o) = decodeInteger(c.Name, cell)
		case Decimal:
			*c.decimal(&o) = decodeDecimal(c.Name, cell, c.Signed)
		case Text:
			*c.text(&o) = CellText(cell)
		case JSONArray:
			c.setList(&o, decodeList(c.Name, cell))
		}
	}
	return o
}

// IsBlankRow reports whether every cell of the row is empty.
func IsBlankRow(row Row) bool {
	for _, cell := range row {
		if !isBlank(cell) {
			return false
		}
	}
	return true
}

// DecodeTable decodes a header row followed by data rows. A header that is not
// exactly ExpectedColumns fails the whole table; blank rows are skipped.
func DecodeTable(rows []Row) ([]order.Order, error) {
	if len(rows) == 0 {
		return []order.Order{}, nil
	}
	header := rows[0]
	if err := CheckHeader(header); err != nil {
		return []order.Order{}, err
	}
	orders := make([]order.Order, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if IsBlankRow(row) {
			slog.Debug("codec: skipping blank row", "row", i+2)
			continue
		}
		orders = append(orders, Decode(header, row))
	}
	return orders, nil
}
