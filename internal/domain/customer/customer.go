package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer references a buyer. CustomerTypeID is empty for walk-in customers
// that belong to no type.
type Customer struct {
	ID             string
	Name           string
	CustomerTypeID string
}

// Repository defines read operations for customers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
