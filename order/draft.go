package order

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// AmountPolicy decides which total_payment_amount values are acceptable.
type AmountPolicy int

const (
	// AmountNonNegative accepts zero totals.
	AmountNonNegative AmountPolicy = iota
	// AmountPositive rejects zero totals.
	AmountPositive
)

// ParseAmountPolicy maps a configuration value to an AmountPolicy.
func ParseAmountPolicy(s string) (AmountPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "non_negative", "nonnegative":
		return AmountNonNegative, nil
	case "positive":
		return AmountPositive, nil
	}
	return AmountNonNegative, fmt.Errorf("unknown amount policy %q", s)
}

// ValidationError reports every problem found in a draft.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + strings.Join(e.Problems, "; ")
}

// Validate checks the required fields of a draft before anything is mutated.
func (d Draft) Validate(policy AmountPolicy) error {
	var problems []string
	if strings.TrimSpace(d.CustomerName) == "" {
		problems = append(problems, "customer name is required")
	}
	if strings.TrimSpace(d.CustomerPhone) == "" {
		problems = append(problems, "customer phone is required")
	}
	date := strings.TrimSpace(d.DepartureDate)
	if date == "" {
		problems = append(problems, "departure date is required")
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		problems = append(problems, fmt.Sprintf("departure date %q must be YYYY-MM-DD", d.DepartureDate))
	}
	switch {
	case math.IsNaN(d.TotalPaymentAmount) || math.IsInf(d.TotalPaymentAmount, 0):
		problems = append(problems, "total payment amount must be a finite number")
	case d.TotalPaymentAmount < 0:
		problems = append(problems, "total payment amount cannot be negative")
	case policy == AmountPositive && d.TotalPaymentAmount == 0:
		problems = append(problems, "total payment amount must be greater than zero")
	}
	for _, m := range d.PaymentMethods {
		if !slices.Contains(PaymentMethodOptions, strings.TrimSpace(m)) {
			problems = append(problems, fmt.Sprintf("unknown payment method %q", m))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Normalize returns a copy of the draft in its persisted shape: trimmed text,
// non-negative finite numbers, no empty lines, no unnamed partners and no nil
// sequences.
func (d Draft) Normalize() Draft {
	out := d.Clone()
	out.CustomerName = strings.TrimSpace(d.CustomerName)
	out.CustomerPhone = strings.TrimSpace(d.CustomerPhone)
	out.DepartureDate = strings.TrimSpace(d.DepartureDate)
	out.DepositAmount = NonNegative(d.DepositAmount)
	out.FinalPaymentAmount = NonNegative(d.FinalPaymentAmount)
	out.TotalPaymentAmount = NonNegative(d.TotalPaymentAmount)
	out.AdultPrice = NonNegative(d.AdultPrice)
	out.ChildPrice = NonNegative(d.ChildPrice)
	out.AdultCount = max(d.AdultCount, 0)
	out.ChildCount = max(d.ChildCount, 0)

	out.PaymentMethods = make([]string, 0, len(d.PaymentMethods))
	for _, m := range d.PaymentMethods {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(out.PaymentMethods, m) {
			out.PaymentMethods = append(out.PaymentMethods, m)
		}
	}

	out.Lines = make([]string, 0, len(d.Lines))
	for _, line := range d.Lines {
		if line = strings.TrimSpace(line); line != "" {
			out.Lines = append(out.Lines, line)
		}
	}

	out.Partners = make([]Partner, 0, len(d.Partners))
	for _, p := range d.Partners {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		p.Name = strings.TrimSpace(p.Name)
		p.Settlement = NonNegative(p.Settlement)
		p.Collection = NonNegative(p.Collection)
		out.Partners = append(out.Partners, p)
	}
	return out
}

// ParseLines splits free text into route names, one per line.
func ParseLines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// NonNegative maps NaN, infinities and negative values to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
