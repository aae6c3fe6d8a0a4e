//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/washly/order-engine/internal/domain/order"
	"github.com/washly/order-engine/internal/storage/postgres"
)

var (
	pool *pgxpool.Pool
	svc  *order.Service
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("engine"),
		tcpostgres.WithUsername("engine"),
		tcpostgres.WithPassword("engine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	if err := seed(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	svc = order.NewService(postgres.NewTxRunner(pool))

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func seed(ctx context.Context) error {
	stmts := []string{
		`INSERT INTO customer_types (id, name) VALUES ('hotels', 'Hotels')`,
		`INSERT INTO customers (id, name, customer_type_id) VALUES ('c1', 'Grand Hotel', 'hotels')`,
		`INSERT INTO categories (id, name, sequence_prefix, sequence_enabled)
			VALUES ('laundry', 'Laundry', 'Z', TRUE), ('misc', 'Misc', '', FALSE)`,
		`INSERT INTO offerings (id, name, category_id, strategy, unit_label, unit_price, price_per_area) VALUES
			('wash-shirt', 'Shirt wash', 'laundry', 'fixed', 'pcs', 10.00, 0),
			('wash-carpet', 'Carpet wash', 'misc', 'dimension', 'm²', 0, 5.00)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateOrder_TotalsAndSequences(t *testing.T) {
	ctx := context.Background()
	l, w := dec("2"), dec("3")

	ord, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		CustomerID: "c1",
		Lines: []order.LineInput{
			{OfferingID: "wash-shirt", Quantity: 2},
			{OfferingID: "wash-carpet", Quantity: 1, LengthM: &l, WidthM: &w},
		},
	})
	require.NoError(t, err)

	assert.True(t, dec("50").Equal(ord.TotalAmount), "total is %s", ord.TotalAmount)

	stored, err := postgres.NewOrderRepository(pool).GetByID(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(stored.LineTotal()))
	// Only the sequence-enabled laundry category gets a label.
	assert.Contains(t, stored.CategorySequences["laundry"], "Z")
	assert.NotContains(t, stored.CategorySequences, "misc")
}

func TestConcurrentOrders_UniqueSequenceValues(t *testing.T) {
	ctx := context.Background()
	const n = 20

	labels := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			ord, err := svc.CreateOrder(gctx, order.CreateOrderRequest{
				Lines: []order.LineInput{{OfferingID: "wash-shirt", Quantity: 1}},
			})
			if err != nil {
				return err
			}
			labels[i] = ord.CategorySequences["laundry"]
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, n)
	for _, label := range labels {
		require.NotEmpty(t, label)
		assert.False(t, seen[label], "duplicate label %s", label)
		seen[label] = true
	}
}

func TestSequenceStability_AfterQuantityEdit(t *testing.T) {
	ctx := context.Background()

	ord, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		Lines: []order.LineInput{{OfferingID: "wash-shirt", Quantity: 3}},
	})
	require.NoError(t, err)
	before := ord.CategorySequences["laundry"]

	ord, err = svc.UpdateLine(ctx, ord.ID, ord.Lines[0].ID, order.LineInput{
		OfferingID: "wash-shirt", Quantity: 7,
	})
	require.NoError(t, err)
	after := ord.CategorySequences["laundry"]

	// Same counter value, refreshed item count.
	assert.Equal(t, before[:len(before)-2], after[:len(after)-2])
	assert.NotEqual(t, before, after)
}

func TestFailedAddLine_RollsBackAllWrites(t *testing.T) {
	ctx := context.Background()

	ord, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		Lines: []order.LineInput{{OfferingID: "wash-shirt", Quantity: 2}},
	})
	require.NoError(t, err)
	label := ord.CategorySequences["laundry"]

	// The bogus offering prices as zero, then violates the order_lines foreign
	// key. The whole mutation must roll back.
	_, err = svc.AddLine(ctx, ord.ID, order.LineInput{OfferingID: "no-such-offering", Quantity: 1})
	require.Error(t, err)

	stored, err := postgres.NewOrderRepository(pool).GetByID(ctx, ord.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
	assert.True(t, dec("20").Equal(stored.TotalAmount), "total is %s", stored.TotalAmount)
	assert.Equal(t, label, stored.CategorySequences["laundry"])

	var allocations int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_sequences WHERE order_id = $1`, ord.ID).Scan(&allocations))
	assert.Equal(t, 1, allocations)
}

func TestFailedCreateOrder_LeavesNoOrphanWrites(t *testing.T) {
	ctx := context.Background()

	before := tableCounts(t, ctx)

	// The first line inserts fine; the second fails, discarding both.
	_, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		Lines: []order.LineInput{
			{OfferingID: "wash-shirt", Quantity: 1},
			{OfferingID: "no-such-offering", Quantity: 1},
		},
	})
	require.Error(t, err)

	assert.Equal(t, before, tableCounts(t, ctx))
}

func tableCounts(t *testing.T, ctx context.Context) map[string]int {
	t.Helper()
	counts := make(map[string]int, 3)
	for _, table := range []string{"orders", "order_lines", "order_sequences"} {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n))
		counts[table] = n
	}
	return counts
}

func TestTotalOverride_CorrectedByReconcile(t *testing.T) {
	ctx := context.Background()

	ord, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		Lines: []order.LineInput{{OfferingID: "wash-shirt", Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetTotalOverride(ctx, ord.ID, dec("999")))

	stored, err := postgres.NewOrderRepository(pool).GetByID(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, dec("999").Equal(stored.TotalAmount))

	ord, err = svc.Reconcile(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(ord.TotalAmount))
}

func TestReprice_PicksUpNewRule(t *testing.T) {
	ctx := context.Background()

	ord, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		CustomerID: "c1",
		Lines:      []order.LineInput{{OfferingID: "wash-shirt", Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, dec("20").Equal(ord.TotalAmount))

	_, err = pool.Exec(ctx, `INSERT INTO pricing_rules (id, offering_id, customer_id, unit_price)
		VALUES ('rule-c1-shirt', 'wash-shirt', 'c1', 6.00)`)
	require.NoError(t, err)
	defer func() {
		_, _ = pool.Exec(ctx, `DELETE FROM pricing_rules WHERE id = 'rule-c1-shirt'`)
	}()

	ord, err = svc.Reprice(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, dec("12").Equal(ord.TotalAmount))
}
