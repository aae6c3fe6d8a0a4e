package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washly/order-engine/internal/domain/order"
)

var _ order.TxRunner = (*TxRunner)(nil)

// TxRunner implements order.TxRunner: every mutation pipeline runs against a
// repository set bound to a single transaction, so line writes, the total
// correction and sequence allocation records commit or roll back together.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a TxRunner over the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx begins a transaction, builds transaction-bound stores and runs fn.
// An error from fn rolls the transaction back.
func (t *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, s order.Stores) error) error {
	err := pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStores(tx))
	})
	if err != nil {
		return errors.Wrap(err, "tx")
	}
	return nil
}

// NewStores builds the full repository set over one database handle.
func NewStores(db DB) order.Stores {
	return order.Stores{
		Orders:      NewOrderRepository(db),
		Catalog:     NewCatalogRepository(db),
		Customers:   NewCustomerRepository(db),
		Counters:    NewCategoryCounterStore(db),
		Allocations: NewAllocationStore(db),
	}
}
