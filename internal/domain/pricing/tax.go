package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrOverlappingBrackets = errors.New("tax brackets overlap")
	ErrInvalidBracket      = errors.New("tax bracket is invalid")
)

// TaxRule maps an inclusive subtotal range to a flat rate.
type TaxRule struct {
	Min  decimal.Decimal `json:"min"`
	Max  decimal.Decimal `json:"max"`
	Rate decimal.Decimal `json:"rate"`
}

func (r TaxRule) matches(subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(r.Min) && subtotal.LessThanOrEqual(r.Max)
}

// TaxTable is a validated, min-sorted list of tax brackets.
// Brackets may touch (prev.Max == next.Min); the lower bracket wins there.
type TaxTable struct {
	rules []TaxRule
}

// NewTaxTable sorts and validates rules.
func NewTaxTable(rules []TaxRule) (TaxTable, error) {
	sorted := make([]TaxRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Min.LessThan(sorted[j].Min)
	})

	for i, r := range sorted {
		if r.Min.GreaterThan(r.Max) {
			return TaxTable{}, fmt.Errorf("%w: min %s greater than max %s", ErrInvalidBracket, r.Min, r.Max)
		}
		if r.Rate.IsNegative() {
			return TaxTable{}, fmt.Errorf("%w: negative rate %s", ErrInvalidBracket, r.Rate)
		}
		if i > 0 && r.Min.LessThan(sorted[i-1].Max) {
			return TaxTable{}, fmt.Errorf("%w: [%s, %s] and [%s, %s]",
				ErrOverlappingBrackets, sorted[i-1].Min, sorted[i-1].Max, r.Min, r.Max)
		}
	}

	return TaxTable{rules: sorted}, nil
}

// Rules returns a copy of the sorted brackets.
func (t TaxTable) Rules() []TaxRule {
	out := make([]TaxRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Lookup returns the first bracket containing subtotal.
func (t TaxTable) Lookup(subtotal decimal.Decimal) (TaxRule, bool) {
	for _, r := range t.rules {
		if r.matches(subtotal) {
			return r, true
		}
	}
	return TaxRule{}, false
}

// Tax returns subtotal * rate for the matching bracket, or zero.
func (t TaxTable) Tax(subtotal decimal.Decimal) decimal.Decimal {
	rule, ok := t.Lookup(subtotal)
	if !ok {
		return decimal.Zero
	}
	return subtotal.Mul(rule.Rate)
}
