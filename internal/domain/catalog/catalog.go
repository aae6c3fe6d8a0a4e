package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrOfferingNotFound is returned when a requested offering does not exist.
var ErrOfferingNotFound = errors.New("offering not found")

// Strategy selects the formula that turns a resolved unit price into a line
// subtotal. It is persisted explicitly on the offering; callers must never
// infer it from which price columns happen to be filled.
type Strategy string

const (
	// StrategyFixed charges unit price times piece count.
	StrategyFixed Strategy = "fixed"
	// StrategyDimension charges per area: length * width * price per area.
	StrategyDimension Strategy = "dimension"
	// StrategyMeasure charges unit price times a measured amount (e.g. kilograms).
	// Arithmetically identical to fixed; the quantity means weight, not pieces.
	StrategyMeasure Strategy = "measure"
)

// Offering is a sellable combination of a product type and a service variant,
// carrying default prices and the pricing strategy.
type Offering struct {
	ID           string
	Name         string
	CategoryID   string
	Strategy     Strategy
	UnitLabel    string
	UnitPrice    decimal.Decimal
	PricePerArea decimal.Decimal
	Active       bool
}

// PricingRule overrides an offering's default price for a specific customer
// (CustomerID set) or a whole customer type (CustomerTypeID set). Price fields
// are pointers: a nil field means the rule does not supply that price.
type PricingRule struct {
	ID             string
	OfferingID     string
	CustomerID     string
	CustomerTypeID string
	UnitPrice      *decimal.Decimal
	PricePerArea   *decimal.Decimal
}

// Category groups offerings for kitchen/counter routing and owns the
// per-category sequence counter.
type Category struct {
	ID              string
	Name            string
	SequencePrefix  string
	SequenceEnabled bool
	CurrentSequence int64
}

// Repository defines read operations for catalog configuration.
type Repository interface {
	GetOffering(ctx context.Context, id string) (*Offering, error)
	GetOfferings(ctx context.Context, ids []string) ([]Offering, error)
	// FindPricingRules returns every rule for the offering scoped to the given
	// customer or its customer type. Empty scope arguments match nothing.
	FindPricingRules(ctx context.Context, offeringID, customerID, customerTypeID string) ([]PricingRule, error)
	GetCategories(ctx context.Context, ids []string) ([]Category, error)
}
