package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/washly/order-engine/internal/domain/customer"
)

const getCustomerSQL = `SELECT id, name, COALESCE(customer_type_id, '')
	FROM customers WHERE id = $1`

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository returns a CustomerRepository over the given database
// handle.
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByID returns a single customer by its identifier. Returns
// customer.ErrNotFound when no matching customer exists.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.QueryRow(ctx, getCustomerSQL, id).Scan(&c.ID, &c.Name, &c.CustomerTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}
