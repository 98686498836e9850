package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/calc"
	"travelbook/order"
)

const draft = `{"customer_name":"张三","customer_phone":"138","departure_date":"2024-07-01","total_payment_amount":1000,"lines":["桂林"],"partners":[{"name":"地接社","settlement":200}]}`

func setupFileBackend(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	t.Setenv("TRAVELBOOK_CONFIG", "")
	t.Setenv("TRAVELBOOK_BACKEND", "file")
	t.Setenv("TRAVELBOOK_FILE", path)
	t.Setenv("MQ_MODE", "none")
	t.Setenv("AMOUNT_POLICY", "non_negative")
	t.Setenv("LOG_FORMAT", "text")
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestOrdersCommands(t *testing.T) {
	setupFileBackend(t)

	out, err := run(t, draft, "orders", "create")
	require.NoError(t, err, out)
	var created order.Order
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, 800.0, created.Profit)
	assert.Contains(t, out, "张三", "non-ASCII text is printed as is")

	out, err = run(t, strings.Replace(draft, "张三", "李四", 1), "orders", "update", "1")
	require.NoError(t, err, out)

	out, err = run(t, "", "orders", "get", "1")
	require.NoError(t, err)
	var got order.Order
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "李四", got.CustomerName)

	out, err = run(t, "", "orders", "search", "桂林")
	require.NoError(t, err)
	var found []order.Order
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	assert.Len(t, found, 1)

	out, err = run(t, "", "orders", "summary")
	require.NoError(t, err)
	var sum calc.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, 800.0, sum.TotalProfit)

	out, err = run(t, "", "orders", "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted order 1\n", out)

	out, err = run(t, "", "orders", "list")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestOrdersCommandErrors(t *testing.T) {
	setupFileBackend(t)

	_, err := run(t, `{"customer_name":""}`, "orders", "create")
	var vErr *order.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = run(t, `{"unknown_field":1}`, "orders", "create")
	assert.ErrorContains(t, err, "failed to parse draft")

	_, err = run(t, "", "orders", "get", "zero")
	assert.ErrorContains(t, err, "invalid order id")

	_, err = run(t, "", "orders", "delete", "7")
	assert.ErrorContains(t, err, "order 7 not found")
}

func TestPreviewDoesNotWrite(t *testing.T) {
	path := setupFileBackend(t)

	withPayments := strings.Replace(draft, `"total_payment_amount":1000`, `"total_payment_amount":1000,"deposit_amount":300,"final_payment_amount":200`, 1)
	out, err := run(t, withPayments, "orders", "preview")
	require.NoError(t, err)
	var p calc.Preview
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 800.0, p.Profit)
	assert.Equal(t, 500.0, p.Received)
	assert.NoFileExists(t, path)
}

func TestInvalidConfig(t *testing.T) {
	setupFileBackend(t)
	_, err := run(t, "", "orders", "list", "--backend", "sheet")
	assert.ErrorContains(t, err, "SHEET_APP_ID")
}
