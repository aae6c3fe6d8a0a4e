package pricing

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/washly/order-engine/internal/domain/catalog"
	"github.com/washly/order-engine/internal/domain/customer"
)

// Service loads the offering, the customer and the applicable pricing rules,
// then delegates to Evaluate.
type Service struct {
	catalog   catalog.Repository
	customers customer.Repository
}

// NewService creates a pricing Service backed by the given repositories.
func NewService(cat catalog.Repository, customers customer.Repository) *Service {
	return &Service{catalog: cat, customers: customers}
}

// CalculatePrice prices one prospective order line. An unknown or inactive
// offering and an unknown customer degrade to a zero quote; only
// infrastructure failures surface as errors.
func (s *Service) CalculatePrice(ctx context.Context, offeringID, customerID string, in Input) (Quote, error) {
	off, err := s.catalog.GetOffering(ctx, offeringID)
	if err != nil {
		if errors.Is(err, catalog.ErrOfferingNotFound) {
			return Quote{}, nil
		}
		return Quote{}, errors.Wrap(err, "get offering")
	}
	if !off.Active {
		return Quote{}, nil
	}

	customerTypeID := ""
	if customerID != "" {
		c, err := s.customers.GetByID(ctx, customerID)
		switch {
		case errors.Is(err, customer.ErrNotFound):
			customerID = ""
		case err != nil:
			return Quote{}, errors.Wrap(err, "get customer")
		default:
			customerTypeID = c.CustomerTypeID
		}
	}

	rules, err := s.catalog.FindPricingRules(ctx, offeringID, customerID, customerTypeID)
	if err != nil {
		return Quote{}, errors.Wrap(err, "find pricing rules")
	}

	return Evaluate(*off, rules, customerID, customerTypeID, in), nil
}
