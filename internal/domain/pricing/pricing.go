// Package pricing resolves the unit price of an order line from the rule
// hierarchy and evaluates the offering's pricing strategy into a subtotal.
//
// Resolution is deliberately forgiving: a missing rule, a missing default or
// missing dimensions degrade to a zero price rather than an error. Operators
// want a pricing gap to show up as a zero-priced line they can fix, not as a
// failed order.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/washly/order-engine/internal/domain/catalog"
)

// Input holds the measured properties of the line being priced.
type Input struct {
	Quantity int
	// LengthM and WidthM are set only for dimension-priced goods.
	LengthM *decimal.Decimal
	WidthM  *decimal.Decimal
}

// Quote is the result of pricing one line.
type Quote struct {
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	AppliedUnit string
	Strategy    catalog.Strategy
}

// resolvedPrice is the outcome of one step in the resolution chain. Either
// field may be nil when the matched source does not carry that price.
type resolvedPrice struct {
	unitPrice    *decimal.Decimal
	pricePerArea *decimal.Decimal
}

// resolveStep tries one tier of the rule hierarchy and returns nil on no match.
type resolveStep func() *resolvedPrice

// Evaluate resolves the applicable price for the offering and scope and
// applies the offering's strategy. Pure; never fails.
//
// The chain is tried in order: exact customer rule, customer-type rule,
// offering defaults. The first matching step wins even if it carries only one
// of the two price fields.
func Evaluate(off catalog.Offering, rules []catalog.PricingRule, customerID, customerTypeID string, in Input) Quote {
	steps := []resolveStep{
		matchRule(rules, func(r catalog.PricingRule) bool {
			return customerID != "" && r.CustomerID == customerID
		}),
		matchRule(rules, func(r catalog.PricingRule) bool {
			return customerTypeID != "" && r.CustomerTypeID == customerTypeID
		}),
		offeringDefaults(off),
	}

	var price *resolvedPrice
	for _, step := range steps {
		if p := step(); p != nil {
			price = p
			break
		}
	}
	if price == nil {
		price = &resolvedPrice{}
	}

	switch off.Strategy {
	case catalog.StrategyDimension:
		return evaluateDimension(off, price, in)
	default:
		return evaluatePerUnit(off, price, in)
	}
}

func matchRule(rules []catalog.PricingRule, match func(catalog.PricingRule) bool) resolveStep {
	return func() *resolvedPrice {
		for _, r := range rules {
			if match(r) {
				return &resolvedPrice{unitPrice: r.UnitPrice, pricePerArea: r.PricePerArea}
			}
		}
		return nil
	}
}

func offeringDefaults(off catalog.Offering) resolveStep {
	return func() *resolvedPrice {
		return &resolvedPrice{unitPrice: &off.UnitPrice, pricePerArea: &off.PricePerArea}
	}
}

// evaluatePerUnit covers both fixed and measure strategies: subtotal is the
// unit price times the quantity. For measure the quantity denotes a measured
// amount (kilograms) rather than a piece count.
func evaluatePerUnit(off catalog.Offering, price *resolvedPrice, in Input) Quote {
	unit := decimal.Zero
	if price.unitPrice != nil {
		unit = *price.unitPrice
	}

	qty := decimal.NewFromInt(int64(in.Quantity))
	return Quote{
		UnitPrice:   unit,
		Subtotal:    unit.Mul(qty).Round(2),
		AppliedUnit: off.UnitLabel,
		Strategy:    off.Strategy,
	}
}

// evaluateDimension charges length * width * price-per-area * quantity.
//
// A rule that matched but supplied only a flat unit price must not be treated
// as a per-area price: the offering's per-area default applies instead.
// Missing dimensions produce a zero subtotal while still reporting the
// resolved per-area price.
func evaluateDimension(off catalog.Offering, price *resolvedPrice, in Input) Quote {
	perArea := off.PricePerArea
	if price.pricePerArea != nil {
		perArea = *price.pricePerArea
	}

	q := Quote{
		UnitPrice:   perArea,
		Subtotal:    decimal.Zero,
		AppliedUnit: "m² total",
		Strategy:    catalog.StrategyDimension,
	}
	if in.LengthM == nil || in.WidthM == nil {
		return q
	}

	area := in.LengthM.Mul(*in.WidthM)
	qty := decimal.NewFromInt(int64(in.Quantity))
	q.Subtotal = area.Mul(perArea).Mul(qty).Round(2)
	return q
}
