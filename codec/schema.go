// Package codec maps orders to flat rows of cells and back.
//
// The column table below is the only description of the row layout; Encode,
// Decode and CheckHeader all walk it, so adding a column means adding one entry.
package codec

import "travelbook/order"

// Kind is the storage type of a column.
type Kind int

const (
	Integer Kind = iota
	Decimal
	Text
	JSONArray
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Text:
		return "text"
	case JSONArray:
		return "json_array"
	}
	return "unknown"
}

// Row is one line of a table. Cells are string, float64, int, int64,
// json.Number, bool, []any (rich text from remote sheets) or nil.
type Row []any

// Column describes one position of the row layout.
type Column struct {
	Name string
	Kind Kind
	// Signed decimals keep negative values; every other number is clamped at zero.
	Signed bool

	integer func(o *order.Order) *int
	decimal func(o *order.Order) *float64
	text    func(o *order.Order) *string
	list    func(o *order.Order) any
	setList func(o *order.Order, items []any)
}

func intCol(name string, f func(o *order.Order) *int) Column {
	return Column{Name: name, Kind: Integer, integer: f}
}

func decCol(name string, f func(o *order.Order) *float64) Column {
	return Column{Name: name, Kind: Decimal, decimal: f}
}

func textCol(name string, f func(o *order.Order) *string) Column {
	return Column{Name: name, Kind: Text, text: f}
}

func listCol(name string, get func(o *order.Order) any, set func(o *order.Order, items []any)) Column {
	return Column{Name: name, Kind: JSONArray, list: get, setList: set}
}

// Columns is the fixed, ordered schema shared by every backend.
var Columns = []Column{
	intCol("id", func(o *order.Order) *int { return &o.ID }),
	textCol("customer_name", func(o *order.Order) *string { return &o.CustomerName }),
	textCol("customer_phone", func(o *order.Order) *string { return &o.CustomerPhone }),
	textCol("departure_date", func(o *order.Order) *string { return &o.DepartureDate }),
	textCol("customer_notes", func(o *order.Order) *string { return &o.CustomerNotes }),
	listCol("payment_methods",
		func(o *order.Order) any { return nonNil(o.PaymentMethods) },
		func(o *order.Order, items []any) { o.PaymentMethods = textItems("payment_methods", items) }),
	decCol("deposit_amount", func(o *order.Order) *float64 { return &o.DepositAmount }),
	decCol("final_payment_amount", func(o *order.Order) *float64 { return &o.FinalPaymentAmount }),
	decCol("total_payment_amount", func(o *order.Order) *float64 { return &o.TotalPaymentAmount }),
	listCol("lines",
		func(o *order.Order) any { return nonNil(o.Lines) },
		func(o *order.Order, items []any) { o.Lines = textItems("lines", items) }),
	intCol("adult_count", func(o *order.Order) *int { return &o.AdultCount }),
	intCol("child_count", func(o *order.Order) *int { return &o.ChildCount }),
	decCol("adult_price", func(o *order.Order) *float64 { return &o.AdultPrice }),
	decCol("child_price", func(o *order.Order) *float64 { return &o.ChildPrice }),
	decCol("total_pax_price", func(o *order.Order) *float64 { return &o.TotalPaxPrice }),
	listCol("partners",
		func(o *order.Order) any { return nonNil(o.Partners) },
		func(o *order.Order, items []any) { o.Partners = partnerItems(items) }),
	decCol("total_revenue", func(o *order.Order) *float64 { return &o.TotalRevenue }),
	decCol("total_cost", func(o *order.Order) *float64 { return &o.TotalCost }),
	{Name: "profit", Kind: Decimal, Signed: true, decimal: func(o *order.Order) *float64 { return &o.Profit }},
	decCol("total_collection", func(o *order.Order) *float64 { return &o.TotalCollection }),
	textCol("created_at", func(o *order.Order) *string { return &o.CreatedAt }),
	textCol("updated_at", func(o *order.Order) *string { return &o.UpdatedAt }),
}

// ExpectedColumns returns the column names in storage order.
func ExpectedColumns() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Header returns the header row.
func Header() Row {
	row := make(Row, len(Columns))
	for i, c := range Columns {
		row[i] = c.Name
	}
	return row
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
