package calc

import (
	"github.com/shopspring/decimal"

	"travelbook/order"
)

// Summary aggregates the financial figures of a collection of orders.
type Summary struct {
	Count           int     `json:"count"`
	TotalRevenue    float64 `json:"total_revenue"`
	TotalReceived   float64 `json:"total_received"`
	TotalCost       float64 `json:"total_cost"`
	TotalProfit     float64 `json:"total_profit"`
	TotalCollection float64 `json:"total_collection"`
}

// Summarize adds up the stored derived fields of every order.
func Summarize(orders []order.Order) Summary {
	revenue, received, cost, profit, collection := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(dec(o.TotalRevenue))
		received = received.Add(decimal.NewFromFloat(Received(o.DepositAmount, o.FinalPaymentAmount)))
		cost = cost.Add(dec(o.TotalCost))
		profit = profit.Add(signed(o.Profit))
		collection = collection.Add(dec(o.TotalCollection))
	}
	return Summary{
		Count:           len(orders),
		TotalRevenue:    revenue.InexactFloat64(),
		TotalReceived:   received.InexactFloat64(),
		TotalCost:       cost.InexactFloat64(),
		TotalProfit:     profit.InexactFloat64(),
		TotalCollection: collection.InexactFloat64(),
	}
}
