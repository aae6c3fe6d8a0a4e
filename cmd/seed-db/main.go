// Command seed-db creates the schema and loads a small development catalog:
// customer types, categories with sequencing enabled, offerings for the three
// pricing strategies and a couple of rule overrides.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/washly/order-engine/internal/storage/postgres"
)

const (
	insertCustomerTypeSQL = `INSERT INTO customer_types (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	insertCustomerSQL = `INSERT INTO customers (id, name, customer_type_id) VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO NOTHING`

	insertCategorySQL = `INSERT INTO categories (id, name, sequence_prefix, sequence_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	insertOfferingSQL = `INSERT INTO offerings (id, name, category_id, strategy, unit_label, unit_price, price_per_area)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	insertRuleSQL = `INSERT INTO pricing_rules (id, offering_id, customer_id, customer_type_id, unit_price, price_per_area)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO NOTHING`
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seed(ctx, pool)
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	type row struct {
		sql  string
		args []any
	}

	rows := []row{
		{insertCustomerTypeSQL, []any{"hotels", "Hotels"}},
		{insertCustomerTypeSQL, []any{"restaurants", "Restaurants"}},

		{insertCustomerSQL, []any{"cust-grandhotel", "Grand Hotel", "hotels"}},
		{insertCustomerSQL, []any{"cust-walkin", "Walk-in", ""}},

		{insertCategorySQL, []any{"laundry", "Laundry", "Z", true}},
		{insertCategorySQL, []any{"ironing", "Ironing", "S", true}},
		{insertCategorySQL, []any{"misc", "Miscellaneous", "", false}},

		{insertOfferingSQL, []any{"wash-shirt", "Shirt wash", "laundry", "fixed", "pcs", "10.00", "0"}},
		{insertOfferingSQL, []any{"wash-kilo", "Wash by weight", "laundry", "measure", "kg", "7.50", "0"}},
		{insertOfferingSQL, []any{"wash-carpet", "Carpet wash", "misc", "dimension", "m²", "0", "5.00"}},
		{insertOfferingSQL, []any{"iron-shirt", "Shirt ironing", "ironing", "fixed", "pcs", "4.00", "0"}},

		{insertRuleSQL, []any{"rule-hotel-shirts", "wash-shirt", "", "hotels", "8.00", nil}},
		{insertRuleSQL, []any{"rule-grandhotel-carpet", "wash-carpet", "cust-grandhotel", "", nil, "4.50"}},
	}

	for _, r := range rows {
		if _, err := pool.Exec(ctx, r.sql, r.args...); err != nil {
			return errors.Wrapf(err, "seed row %v", r.args[0])
		}
	}

	slog.Info("seed rows written", slog.Int("count", len(rows)))
	return nil
}
