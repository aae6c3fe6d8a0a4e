package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/washly/order-engine/internal/domain/catalog"
)

const (
	offeringColumns = `id, name, category_id, strategy, unit_label, unit_price, price_per_area, active`

	getOfferingSQL  = `SELECT ` + offeringColumns + ` FROM offerings WHERE id = $1`
	getOfferingsSQL = `SELECT ` + offeringColumns + ` FROM offerings WHERE id = ANY($1) ORDER BY id`

	// NULLIF turns an empty scope argument into NULL, which matches no row.
	findPricingRulesSQL = `SELECT id, offering_id, COALESCE(customer_id, ''), COALESCE(customer_type_id, ''),
		unit_price, price_per_area
		FROM pricing_rules
		WHERE offering_id = $1
		  AND (customer_id = NULLIF($2, '') OR customer_type_id = NULLIF($3, ''))`

	categoryColumns = `id, name, sequence_prefix, sequence_enabled, current_sequence`

	getCategoriesSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1) ORDER BY id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db DB
}

// NewCatalogRepository returns a CatalogRepository over the given database
// handle (pool or transaction).
func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetOffering returns a single offering by its identifier. Returns
// catalog.ErrOfferingNotFound when no matching offering exists.
func (r *CatalogRepository) GetOffering(ctx context.Context, id string) (*catalog.Offering, error) {
	rows, err := r.db.Query(ctx, getOfferingSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting offering %q: %w", id, err)
	}

	off, err := pgx.CollectExactlyOneRow(rows, scanOffering)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOfferingNotFound
		}
		return nil, fmt.Errorf("getting offering %q: %w", id, err)
	}
	return &off, nil
}

// GetOfferings returns the offerings matching the given IDs. Unknown IDs are
// silently omitted.
func (r *CatalogRepository) GetOfferings(ctx context.Context, ids []string) ([]catalog.Offering, error) {
	rows, err := r.db.Query(ctx, getOfferingsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting offerings: %w", err)
	}

	offerings, err := pgx.CollectRows(rows, scanOffering)
	if err != nil {
		return nil, fmt.Errorf("getting offerings: %w", err)
	}
	return offerings, nil
}

// FindPricingRules returns all rules for the offering scoped to the customer
// or its customer type. Empty scope arguments match nothing.
func (r *CatalogRepository) FindPricingRules(ctx context.Context, offeringID, customerID, customerTypeID string) ([]catalog.PricingRule, error) {
	rows, err := r.db.Query(ctx, findPricingRulesSQL, offeringID, customerID, customerTypeID)
	if err != nil {
		return nil, fmt.Errorf("finding pricing rules for offering %q: %w", offeringID, err)
	}

	rules, err := pgx.CollectRows(rows, scanPricingRule)
	if err != nil {
		return nil, fmt.Errorf("finding pricing rules for offering %q: %w", offeringID, err)
	}
	return rules, nil
}

// GetCategories returns the categories matching the given IDs, ordered by ID.
func (r *CatalogRepository) GetCategories(ctx context.Context, ids []string) ([]catalog.Category, error) {
	rows, err := r.db.Query(ctx, getCategoriesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}

	categories, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}
	return categories, nil
}

func scanOffering(row pgx.CollectableRow) (catalog.Offering, error) {
	var off catalog.Offering
	err := row.Scan(&off.ID, &off.Name, &off.CategoryID, &off.Strategy,
		&off.UnitLabel, &off.UnitPrice, &off.PricePerArea, &off.Active)
	return off, err
}

func scanPricingRule(row pgx.CollectableRow) (catalog.PricingRule, error) {
	var r catalog.PricingRule
	err := row.Scan(&r.ID, &r.OfferingID, &r.CustomerID, &r.CustomerTypeID,
		&r.UnitPrice, &r.PricePerArea)
	return r, err
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.SequencePrefix, &c.SequenceEnabled, &c.CurrentSequence)
	return c, err
}
