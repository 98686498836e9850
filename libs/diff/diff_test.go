package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/order"
)

func sampleOrder() order.Order {
	o := order.Order{ID: 3, CreatedAt: "2024-05-01 10:00:00"}
	o.CustomerName = "王五"
	o.Lines = []string{"成都", "九寨沟"}
	o.PaymentMethods = []string{}
	o.Partners = []order.Partner{order.NewPartner("地接", 100, 50, "")}
	o.TotalPaymentAmount = 1000
	return o
}

func TestOrderChangesIgnoresUIKeys(t *testing.T) {
	before := sampleOrder()
	after := before.Clone()
	after.Partners[0] = order.NewPartner("地接", 100, 50, "")
	require.NotEqual(t, before.Partners[0].UIKey, after.Partners[0].UIKey)

	changes, err := OrderChanges(GetCustomDiffer(), before, after)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestOrderChangesPaths(t *testing.T) {
	before := sampleOrder()
	after := before.Clone()
	after.CustomerName = "王六"
	after.Partners[0].Settlement = 120
	after.Profit = -5
	after.UpdatedAt = "2024-05-02 09:00:00"

	changes, err := OrderChanges(GetCustomDiffer(), before, after)
	require.NoError(t, err)

	paths := make(map[string]Change, len(changes))
	for _, c := range changes {
		paths[c.Path] = c
	}
	require.Contains(t, paths, "CustomerName")
	assert.Equal(t, "王五", paths["CustomerName"].From)
	assert.Equal(t, "王六", paths["CustomerName"].To)
	assert.Contains(t, paths, "Partners.0.Settlement")
	assert.Contains(t, paths, "Profit")
	assert.Contains(t, paths, "UpdatedAt")
	assert.Len(t, changes, 4)
	assert.Equal(t, "update CustomerName: 王五 -> 王六", paths["CustomerName"].String())
}

func TestOrderChangesLines(t *testing.T) {
	before := sampleOrder()
	after := before.Clone()
	after.Lines = append(after.Lines, "黄龙")

	changes, err := OrderChanges(GetCustomDiffer(), before, after)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "create", changes[0].Type)
	assert.Equal(t, "Lines.2", changes[0].Path)
	assert.Equal(t, "黄龙", changes[0].To)
}
