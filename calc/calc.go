// Package calc computes the derived financial fields of an order.
// Every function is pure; inputs that are negative, NaN or infinite count as zero.
package calc

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"travelbook/order"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(order.NonNegative(v))
}

func signed(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func count(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(max(n, 0)))
}

// PaxPrice is adults*adultPrice + children*childPrice.
func PaxPrice(adults int, adultPrice float64, children int, childPrice float64) float64 {
	total := count(adults).Mul(dec(adultPrice)).Add(count(children).Mul(dec(childPrice)))
	return total.InexactFloat64()
}

// Received is the money already collected from the customer. It is informational
// and does not enter the profit.
func Received(deposit, finalPayment float64) float64 {
	return dec(deposit).Add(dec(finalPayment)).InexactFloat64()
}

// PartnerTotals sums settlement and collection over partners with a non-blank name.
func PartnerTotals(partners []order.Partner) (float64, float64) {
	cost, collection := decimal.Zero, decimal.Zero
	for _, p := range partners {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		cost = cost.Add(dec(p.Settlement))
		collection = collection.Add(dec(p.Collection))
	}
	return cost.InexactFloat64(), collection.InexactFloat64()
}

// Profit is the contracted receivable minus the partner cost. It may be negative.
func Profit(totalPayment, totalCost float64) float64 {
	return dec(totalPayment).Sub(dec(totalCost)).InexactFloat64()
}

// Derive computes every derived field of a draft.
func Derive(d order.Draft) order.Derived {
	cost, collection := PartnerTotals(d.Partners)
	return order.Derived{
		TotalPaxPrice:   PaxPrice(d.AdultCount, d.AdultPrice, d.ChildCount, d.ChildPrice),
		TotalRevenue:    order.NonNegative(d.TotalPaymentAmount),
		TotalCost:       cost,
		Profit:          Profit(d.TotalPaymentAmount, cost),
		TotalCollection: collection,
	}
}

// Preview is what an order would compute to, plus the money already received.
type Preview struct {
	order.Derived
	Received float64 `json:"received"`
}

// PreviewDraft computes the preview figures of a draft.
func PreviewDraft(d order.Draft) Preview {
	return Preview{
		Derived:  Derive(d),
		Received: Received(d.DepositAmount, d.FinalPaymentAmount),
	}
}
