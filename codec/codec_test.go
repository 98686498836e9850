package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/order"
)

func sampleOrder() order.Order {
	return order.Order{
		ID: 7,
		Draft: order.Draft{
			CustomerName:       "李雷",
			CustomerPhone:      "13800000000",
			CustomerNotes:      `素食 "no <meat>" & 'quotes'`,
			DepartureDate:      "2025-01-01",
			PaymentMethods:     []string{"微信", "现金"},
			DepositAmount:      300.5,
			FinalPaymentAmount: 699.5,
			TotalPaymentAmount: 1000,
			Lines:              []string{"北京一日游", "长城", "北京一日游"},
			AdultCount:         2,
			ChildCount:         1,
			AdultPrice:         300,
			ChildPrice:         0.1,
			Partners: []order.Partner{
				order.NewPartner("Bob", 200, 0, ""),
				order.NewPartner("地接社", 120.25, 30, "含门票"),
			},
		},
		Derived: order.Derived{
			TotalPaxPrice:   600.1,
			TotalRevenue:    1000,
			TotalCost:       320.25,
			Profit:          679.75,
			TotalCollection: 30,
		},
		CreatedAt: "2025-01-01 10:00:00",
	}
}

func TestExpectedColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "customer_name", "customer_phone", "departure_date", "customer_notes", "payment_methods",
		"deposit_amount", "final_payment_amount", "total_payment_amount", "lines", "adult_count", "child_count",
		"adult_price", "child_price", "total_pax_price", "partners", "total_revenue", "total_cost", "profit",
		"total_collection", "created_at", "updated_at",
	}, ExpectedColumns())
}

func TestRoundTrip(t *testing.T) {
	o := sampleOrder()
	got := Decode(Header(), Encode(o))
	assert.Equal(t, o.WithoutUIKeys(), got)
}

func TestRoundTripEmptySequences(t *testing.T) {
	o := order.Order{ID: 1, Draft: order.Draft{CustomerName: "A"}}
	row := Encode(o)
	assert.Equal(t, "[]", row[5])
	assert.Equal(t, "[]", row[9])
	assert.Equal(t, "[]", row[15])

	got := Decode(Header(), row)
	assert.Equal(t, []string{}, got.PaymentMethods)
	assert.Equal(t, []string{}, got.Lines)
	assert.Equal(t, []order.Partner{}, got.Partners)
}

func TestEncodeJSONIsCompactAndKeepsText(t *testing.T) {
	row := Encode(sampleOrder())
	assert.Equal(t, `["微信","现金"]`, row[5])
	assert.Equal(t, `[{"name":"Bob","settlement":200,"collection":0,"notes":""},{"name":"地接社","settlement":120.25,"collection":30,"notes":"含门票"}]`, row[15])
	assert.Equal(t, 7, row[0])
	assert.Equal(t, 300.5, row[6])
}

func TestEncodeProfitKeepsSign(t *testing.T) {
	o := sampleOrder()
	o.Profit = -20
	got := Decode(Header(), Encode(o))
	assert.Equal(t, -20.0, got.Profit)
}

func TestDecodeMapsByName(t *testing.T) {
	header := Row{"customer_name", "id", "adult_count"}
	row := Row{"Li", "3", "2"}
	o := Decode(header, row)
	assert.Equal(t, 3, o.ID)
	assert.Equal(t, "Li", o.CustomerName)
	assert.Equal(t, 2, o.AdultCount)
	assert.Equal(t, 0.0, o.TotalPaymentAmount)
	assert.NotNil(t, o.Partners)
}

func TestDecodeCellCoercion(t *testing.T) {
	tests := []struct {
		name   string
		column string
		cell   any
		check  func(t *testing.T, o order.Order)
	}{
		{"integer from decimal text", "adult_count", "2.9", func(t *testing.T, o order.Order) { assert.Equal(t, 2, o.AdultCount) }},
		{"integer from float", "id", 4.0, func(t *testing.T, o order.Order) { assert.Equal(t, 4, o.ID) }},
		{"integer blank", "id", "", func(t *testing.T, o order.Order) { assert.Equal(t, 0, o.ID) }},
		{"integer garbage", "child_count", "two", func(t *testing.T, o order.Order) { assert.Equal(t, 0, o.ChildCount) }},
		{"integer negative", "child_count", "-1", func(t *testing.T, o order.Order) { assert.Equal(t, 0, o.ChildCount) }},
		{"decimal json number", "deposit_amount", json.Number("12.5"), func(t *testing.T, o order.Order) { assert.Equal(t, 12.5, o.DepositAmount) }},
		{"decimal nan", "deposit_amount", "NaN", func(t *testing.T, o order.Order) { assert.Equal(t, 0.0, o.DepositAmount) }},
		{"decimal negative", "total_cost", "-3", func(t *testing.T, o order.Order) { assert.Equal(t, 0.0, o.TotalCost) }},
		{"decimal garbage", "total_cost", "lots", func(t *testing.T, o order.Order) { assert.Equal(t, 0.0, o.TotalCost) }},
		{"decimal thousands separator", "total_payment_amount", "1,200.5", func(t *testing.T, o order.Order) { assert.Equal(t, 1200.5, o.TotalPaymentAmount) }},
		{"text nil", "customer_notes", nil, func(t *testing.T, o order.Order) { assert.Equal(t, "", o.CustomerNotes) }},
		{"text from number", "customer_phone", float64(13800000000), func(t *testing.T, o order.Order) { assert.Equal(t, "13800000000", o.CustomerPhone) }},
		{"text rich segments", "customer_name", []any{map[string]any{"text": "Li "}, map[string]any{"text": "Lei"}}, func(t *testing.T, o order.Order) {
			assert.Equal(t, "Li Lei", o.CustomerName)
		}},
		{"list single quotes", "lines", "['长城', '故宫']", func(t *testing.T, o order.Order) { assert.Equal(t, []string{"长城", "故宫"}, o.Lines) }},
		{"list broken", "lines", "[unterminated", func(t *testing.T, o order.Order) { assert.Equal(t, []string{}, o.Lines) }},
		{"list not an array", "payment_methods", `{"a":1}`, func(t *testing.T, o order.Order) { assert.Equal(t, []string{}, o.PaymentMethods) }},
		{"list nan", "lines", "nan", func(t *testing.T, o order.Order) { assert.Equal(t, []string{}, o.Lines) }},
		{"list from rich text", "lines", []any{map[string]any{"type": "text", "text": `["长城",`}, map[string]any{"type": "text", "text": `"故宫"]`}}, func(t *testing.T, o order.Order) {
			assert.Equal(t, []string{"长城", "故宫"}, o.Lines)
		}},
		{"list drops blanks", "lines", `["a", "", "  "]`, func(t *testing.T, o order.Order) { assert.Equal(t, []string{"a"}, o.Lines) }},
		{"partners python dicts", "partners", "[{'id': 0, 'name': 'Bob', 'settlement': 200.0, 'collection': 0.0, 'notes': ''}]", func(t *testing.T, o order.Order) {
			require.Len(t, o.Partners, 1)
			assert.Equal(t, order.Partner{Name: "Bob", Settlement: 200}, o.Partners[0])
		}},
		{"partners with string numbers and blank name", "partners", `[{"name":"A","settlement":"100","collection":"x"},{"name":" ","settlement":5}]`, func(t *testing.T, o order.Order) {
			require.Len(t, o.Partners, 1)
			assert.Equal(t, 100.0, o.Partners[0].Settlement)
			assert.Equal(t, 0.0, o.Partners[0].Collection)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Decode(Row{tt.column}, Row{tt.cell})
			tt.check(t, o)
		})
	}
}

func TestDecodeShortRow(t *testing.T) {
	o := Decode(Header(), Row{5, "Li"})
	assert.Equal(t, 5, o.ID)
	assert.Equal(t, "Li", o.CustomerName)
	assert.Equal(t, "", o.UpdatedAt)
}

func TestCheckHeader(t *testing.T) {
	assert.NoError(t, CheckHeader(Header()))

	withBOM := Header()
	withBOM[0] = bom + "id"
	assert.NoError(t, CheckHeader(withBOM))

	swapped := Header()
	swapped[1], swapped[2] = swapped[2], swapped[1]
	renamed := Header()
	renamed[3] = "date"
	shorter := Header()[:len(Columns)-1]
	longer := append(Header(), "extra")
	padded := Header()
	padded[0] = " id "

	for name, header := range map[string]Row{"swapped": swapped, "renamed": renamed, "shorter": shorter, "longer": longer, "padded": padded} {
		t.Run(name, func(t *testing.T) {
			err := CheckHeader(header)
			var mismatch *SchemaMismatchError
			require.True(t, errors.As(err, &mismatch), "expected SchemaMismatchError, got %v", err)
			assert.NotEmpty(t, mismatch.Error())
		})
	}
}

func TestDecodeTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		orders, err := DecodeTable(nil)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("skips blank rows", func(t *testing.T) {
		blank := make(Row, len(Columns))
		for i := range blank {
			blank[i] = " "
		}
		rows := []Row{Header(), Encode(sampleOrder()), blank, {nil, ""}}
		orders, err := DecodeTable(rows)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, sampleOrder().WithoutUIKeys(), orders[0])
	})

	t.Run("header mismatch decodes nothing", func(t *testing.T) {
		header := Header()
		header[0], header[1] = header[1], header[0]
		orders, err := DecodeTable([]Row{header, Encode(sampleOrder())})
		var mismatch *SchemaMismatchError
		assert.True(t, errors.As(err, &mismatch))
		assert.Empty(t, orders)
	})
}
