package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/codec"
	dbt "travelbook/db/db"
	"travelbook/order"
)

func newWrapper(t *testing.T) *CSVTableWrapper {
	t.Helper()
	return NewCSVTableWrapper(filepath.Join(t.TempDir(), "travel_orders.csv"))
}

func TestLoadMissingFile(t *testing.T) {
	rows, err := newWrapper(t).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadEmptyFile(t *testing.T) {
	w := newWrapper(t)
	require.NoError(t, os.WriteFile(w.Path(), nil, 0o644))
	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, os.WriteFile(w.Path(), utf8BOM, 0o644))
	rows, err = w.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadMalformedFile(t *testing.T) {
	w := newWrapper(t)
	require.NoError(t, os.WriteFile(w.Path(), []byte("id,customer_name\n1,\"unterminated\n"), 0o644))
	_, err := w.Load(context.Background())
	var backendErr *dbt.BackendError
	require.True(t, errors.As(err, &backendErr), "expected BackendError, got %v", err)
	assert.Equal(t, dbt.BackendFile, backendErr.Backend)
	assert.Contains(t, err.Error(), "parse csv")
}

func TestReplaceAllRoundTrip(t *testing.T) {
	w := newWrapper(t)
	o := order.Order{
		ID: 1,
		Draft: order.Draft{
			CustomerName:       "李雷",
			CustomerPhone:      "123",
			CustomerNotes:      "line one\nline \"two\", with comma",
			DepartureDate:      "2025-01-01",
			PaymentMethods:     []string{"支付宝"},
			TotalPaymentAmount: 1000,
			Lines:              []string{"九寨沟"},
			AdultCount:         2,
			AdultPrice:         300,
			Partners:           []order.Partner{{Name: "Bob", Settlement: 200}},
		},
		Derived:   order.Derived{TotalPaxPrice: 600, TotalRevenue: 1000, TotalCost: 200, Profit: 800},
		CreatedAt: "2025-01-01 09:30:00",
	}

	require.NoError(t, w.ReplaceAll(context.Background(), []codec.Row{codec.Encode(o)}))

	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, utf8BOM), "file should start with a UTF-8 BOM")

	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NoError(t, codec.CheckHeader(rows[0]))

	orders, err := codec.DecodeTable(rows)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o, orders[0])
}

func TestReplaceAllOverwrites(t *testing.T) {
	w := newWrapper(t)
	first := []codec.Row{
		codec.Encode(order.Order{ID: 1}),
		codec.Encode(order.Order{ID: 2}),
	}
	require.NoError(t, w.ReplaceAll(context.Background(), first))
	require.NoError(t, w.ReplaceAll(context.Background(), first[1:]))

	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[1][0])

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(w.Path()), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := newWrapper(t)
	assert.Error(t, w.ReplaceAll(ctx, nil))
	_, err := w.Load(ctx)
	assert.Error(t, err)
}
