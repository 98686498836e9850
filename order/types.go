package order

import "github.com/google/uuid"

// TimeLayout is the layout of created_at and updated_at.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the layout of departure_date.
const DateLayout = "2006-01-02"

// PaymentMethodOptions is the fixed list of accepted payment method tags.
var PaymentMethodOptions = []string{"支付宝", "微信", "对公转账", "现金", "其他"}

// Partner is a third party sharing settlement and collection for one order.
type Partner struct {
	// UIKey identifies a partner row while it is being edited. It is never persisted.
	UIKey      uuid.UUID `json:"-"`
	Name       string    `json:"name"`
	Settlement float64   `json:"settlement"`
	Collection float64   `json:"collection"`
	Notes      string    `json:"notes"`
}

// Draft holds every hand-edited field of an order.
type Draft struct {
	CustomerName       string    `json:"customer_name"`
	CustomerPhone      string    `json:"customer_phone"`
	CustomerNotes      string    `json:"customer_notes"`
	DepartureDate      string    `json:"departure_date"`
	PaymentMethods     []string  `json:"payment_methods"`
	DepositAmount      float64   `json:"deposit_amount"`
	FinalPaymentAmount float64   `json:"final_payment_amount"`
	TotalPaymentAmount float64   `json:"total_payment_amount"`
	Lines              []string  `json:"lines"`
	AdultCount         int       `json:"adult_count"`
	ChildCount         int       `json:"child_count"`
	AdultPrice         float64   `json:"adult_price"`
	ChildPrice         float64   `json:"child_price"`
	Partners           []Partner `json:"partners"`
}

// Derived holds the fields recomputed on every save.
type Derived struct {
	TotalPaxPrice   float64 `json:"total_pax_price"`
	TotalRevenue    float64 `json:"total_revenue"`
	TotalCost       float64 `json:"total_cost"`
	Profit          float64 `json:"profit"`
	TotalCollection float64 `json:"total_collection"`
}

// Order is a persisted travel booking.
type Order struct {
	ID int `json:"id"`
	Draft
	Derived
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewPartner returns a partner with a fresh UI key.
func NewPartner(name string, settlement, collection float64, notes string) Partner {
	return Partner{
		UIKey:      uuid.New(),
		Name:       name,
		Settlement: settlement,
		Collection: collection,
		Notes:      notes,
	}
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	o.Draft = o.Draft.Clone()
	return o
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	d.PaymentMethods = append(make([]string, 0, len(d.PaymentMethods)), d.PaymentMethods...)
	d.Lines = append(make([]string, 0, len(d.Lines)), d.Lines...)
	d.Partners = append(make([]Partner, 0, len(d.Partners)), d.Partners...)
	return d
}

// WithoutUIKeys returns a copy whose partners carry no UI key, which is how
// the order looks after a round trip through storage.
func (o Order) WithoutUIKeys() Order {
	o = o.Clone()
	for i := range o.Partners {
		o.Partners[i].UIKey = uuid.Nil
	}
	return o
}
