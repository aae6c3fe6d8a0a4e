package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/washly/order-engine/internal/domain/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func fixedOffering(unitPrice string) catalog.Offering {
	return catalog.Offering{
		ID:        "wash-shirt",
		Strategy:  catalog.StrategyFixed,
		UnitLabel: "pcs",
		UnitPrice: dec(unitPrice),
		Active:    true,
	}
}

func dimensionOffering(pricePerArea string) catalog.Offering {
	return catalog.Offering{
		ID:           "wash-carpet",
		Strategy:     catalog.StrategyDimension,
		UnitLabel:    "m²",
		PricePerArea: dec(pricePerArea),
		Active:       true,
	}
}

func TestEvaluate_FixedStrategy(t *testing.T) {
	q := Evaluate(fixedOffering("10"), nil, "", "", Input{Quantity: 3})

	assert.True(t, dec("10").Equal(q.UnitPrice))
	assert.True(t, dec("30").Equal(q.Subtotal))
	assert.Equal(t, "pcs", q.AppliedUnit)
	assert.Equal(t, catalog.StrategyFixed, q.Strategy)
}

func TestEvaluate_DimensionStrategy(t *testing.T) {
	q := Evaluate(dimensionOffering("5"), nil, "", "", Input{
		Quantity: 1,
		LengthM:  decPtr("2"),
		WidthM:   decPtr("3"),
	})

	assert.True(t, dec("5").Equal(q.UnitPrice))
	assert.True(t, dec("30").Equal(q.Subtotal))
	assert.Equal(t, "m² total", q.AppliedUnit)
}

func TestEvaluate_MeasureStrategy(t *testing.T) {
	off := catalog.Offering{
		ID:        "wash-kilo",
		Strategy:  catalog.StrategyMeasure,
		UnitLabel: "kg",
		UnitPrice: dec("7.50"),
	}

	// Quantity denotes kilograms here, not pieces.
	q := Evaluate(off, nil, "", "", Input{Quantity: 4})

	assert.True(t, dec("30").Equal(q.Subtotal))
	assert.Equal(t, "kg", q.AppliedUnit)
	assert.Equal(t, catalog.StrategyMeasure, q.Strategy)
}

func TestEvaluate_CustomerRuleBeatsCustomerTypeRule(t *testing.T) {
	rules := []catalog.PricingRule{
		{OfferingID: "wash-shirt", CustomerTypeID: "hotels", UnitPrice: decPtr("8")},
		{OfferingID: "wash-shirt", CustomerID: "c1", UnitPrice: decPtr("6")},
	}

	q := Evaluate(fixedOffering("10"), rules, "c1", "hotels", Input{Quantity: 2})

	assert.True(t, dec("6").Equal(q.UnitPrice))
	assert.True(t, dec("12").Equal(q.Subtotal))
}

func TestEvaluate_CustomerTypeRuleFallback(t *testing.T) {
	rules := []catalog.PricingRule{
		{OfferingID: "wash-shirt", CustomerTypeID: "hotels", UnitPrice: decPtr("8")},
	}

	q := Evaluate(fixedOffering("10"), rules, "c1", "hotels", Input{Quantity: 1})

	assert.True(t, dec("8").Equal(q.UnitPrice))
}

func TestEvaluate_OfferingDefaultWhenNoRuleMatches(t *testing.T) {
	rules := []catalog.PricingRule{
		{OfferingID: "wash-shirt", CustomerID: "someone-else", UnitPrice: decPtr("1")},
	}

	q := Evaluate(fixedOffering("10"), rules, "c1", "", Input{Quantity: 1})

	assert.True(t, dec("10").Equal(q.UnitPrice))
}

func TestEvaluate_DimensionRuleWithFlatPriceOnly(t *testing.T) {
	// The rule carries only a flat unit price. It must not be misread as a
	// per-area price; the offering's per-area default applies.
	rules := []catalog.PricingRule{
		{OfferingID: "wash-carpet", CustomerID: "c1", UnitPrice: decPtr("99")},
	}

	q := Evaluate(dimensionOffering("5"), rules, "c1", "", Input{
		Quantity: 1,
		LengthM:  decPtr("2"),
		WidthM:   decPtr("3"),
	})

	assert.True(t, dec("5").Equal(q.UnitPrice))
	assert.True(t, dec("30").Equal(q.Subtotal))
}

func TestEvaluate_DimensionRuleWithPerAreaPrice(t *testing.T) {
	rules := []catalog.PricingRule{
		{OfferingID: "wash-carpet", CustomerID: "c1", PricePerArea: decPtr("4")},
	}

	q := Evaluate(dimensionOffering("5"), rules, "c1", "", Input{
		Quantity: 1,
		LengthM:  decPtr("2"),
		WidthM:   decPtr("3"),
	})

	assert.True(t, dec("4").Equal(q.UnitPrice))
	assert.True(t, dec("24").Equal(q.Subtotal))
}

func TestEvaluate_MissingDimensionsPriceToZero(t *testing.T) {
	q := Evaluate(dimensionOffering("5"), nil, "", "", Input{Quantity: 1})

	assert.True(t, dec("5").Equal(q.UnitPrice))
	assert.True(t, q.Subtotal.IsZero())
}

func TestEvaluate_NoPriceDataAnywhere(t *testing.T) {
	off := catalog.Offering{ID: "unpriced", Strategy: catalog.StrategyFixed, UnitLabel: "pcs"}

	q := Evaluate(off, nil, "c1", "hotels", Input{Quantity: 5})

	assert.True(t, q.UnitPrice.IsZero())
	assert.True(t, q.Subtotal.IsZero())
}

func TestEvaluate_SubtotalRounding(t *testing.T) {
	q := Evaluate(dimensionOffering("3.33"), nil, "", "", Input{
		Quantity: 1,
		LengthM:  decPtr("1.5"),
		WidthM:   decPtr("1.1"),
	})

	// 1.5 * 1.1 * 3.33 = 5.4945, rounded to 5.49.
	assert.True(t, dec("5.49").Equal(q.Subtotal))
}
