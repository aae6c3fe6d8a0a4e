package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/washly/order-engine/internal/domain/sequence"
)

const (
	// The row lock taken by UPDATE makes increment-and-read one atomic step;
	// concurrent callers serialize on the category row and each observe a
	// distinct value.
	nextSequenceSQL = `UPDATE categories
		SET current_sequence = current_sequence + 1
		WHERE id = $1
		RETURNING current_sequence`

	getAllocationSQL = `SELECT value FROM order_sequences WHERE order_id = $1 AND category_id = $2`

	saveAllocationSQL = `INSERT INTO order_sequences (order_id, category_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, category_id) DO NOTHING`
)

var _ sequence.CounterStore = (*CategoryCounterStore)(nil)

// CategoryCounterStore implements sequence.CounterStore on the categories
// table.
type CategoryCounterStore struct {
	db DB
}

// NewCategoryCounterStore returns a CategoryCounterStore over the given
// database handle.
func NewCategoryCounterStore(db DB) *CategoryCounterStore {
	return &CategoryCounterStore{db: db}
}

// NextValue atomically increments the category's counter and returns the new
// value.
func (s *CategoryCounterStore) NextValue(ctx context.Context, categoryID string) (int64, error) {
	var value int64
	err := s.db.QueryRow(ctx, nextSequenceSQL, categoryID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("next sequence: category %q not found", categoryID)
		}
		return 0, fmt.Errorf("next sequence for category %q: %w", categoryID, err)
	}
	return value, nil
}

var _ sequence.AllocationStore = (*AllocationStore)(nil)

// AllocationStore implements sequence.AllocationStore on the order_sequences
// table.
type AllocationStore struct {
	db DB
}

// NewAllocationStore returns an AllocationStore over the given database
// handle.
func NewAllocationStore(db DB) *AllocationStore {
	return &AllocationStore{db: db}
}

// Get returns the counter value recorded for the order and category, if any.
func (s *AllocationStore) Get(ctx context.Context, orderID, categoryID string) (int64, bool, error) {
	var value int64
	err := s.db.QueryRow(ctx, getAllocationSQL, orderID, categoryID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("getting allocation for order %q category %q: %w", orderID, categoryID, err)
	}
	return value, true, nil
}

// Save records the counter value handed to the order for the category. The
// first record wins; a repeated save is a no-op.
func (s *AllocationStore) Save(ctx context.Context, orderID, categoryID string, value int64) error {
	_, err := s.db.Exec(ctx, saveAllocationSQL, orderID, categoryID, value)
	if err != nil {
		return fmt.Errorf("saving allocation for order %q category %q: %w", orderID, categoryID, err)
	}
	return nil
}
