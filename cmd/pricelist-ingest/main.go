// Command pricelist-ingest bulk-imports pricing rules from gzipped CSV
// price-list exports.
//
// Each line has the form
//
//	offering_id,scope,scope_id,unit_price,price_per_area
//
// where scope is "customer" or "type" and either price field may be empty.
// Duplicate (offering, scope) keys across the input are collapsed, first
// occurrence wins; the unique indexes on pricing_rules are the final guard.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/washly/order-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

const insertRuleSQL = `INSERT INTO pricing_rules (id, offering_id, customer_id, customer_type_id, unit_price, price_per_area)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT DO NOTHING`

// rule is one parsed price-list row.
type rule struct {
	offeringID     string
	customerID     string
	customerTypeID string
	unitPrice      *decimal.Decimal
	pricePerArea   *decimal.Decimal
}

func (r rule) key() string {
	return r.offeringID + "|" + r.customerID + "|" + r.customerTypeID
}

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

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no price-list files given")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL); err != nil {
		slog.Error("price-list ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price-list ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("parsing price lists", slog.Int("files", len(files)))

	parsed, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse price lists")
	}

	rules := dedupe(parsed)
	slog.Info("rules to insert", slog.Int("count", len(rules)))
	if len(rules) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var inserted int64
	for _, r := range rules {
		tag, err := pool.Exec(ctx, insertRuleSQL,
			uuid.New().String(), r.offeringID,
			nilIfEmpty(r.customerID), nilIfEmpty(r.customerTypeID),
			r.unitPrice, r.pricePerArea,
		)
		if err != nil {
			return errors.Wrapf(err, "insert rule for offering %s", r.offeringID)
		}
		inserted += tag.RowsAffected()
	}

	slog.Info("rules inserted", slog.Int64("count", inserted))
	return nil
}

// parseFiles streams every file concurrently and collects its parsed rules.
func parseFiles(ctx context.Context, files []string) ([][]rule, error) {
	results := make([][]rule, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rules, err := parseFile(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "parse %s", f)
			}
			results[i] = rules
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseFile(ctx context.Context, path string) ([]rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	var (
		rules   []rule
		skipped int
		count   uint64
	)
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r, err := parseLine(line)
		if err != nil {
			skipped++
			continue
		}
		rules = append(rules, r)

		count++
		if count%progressEvery == 0 {
			slog.Info("parse progress", slog.String("file", path), slog.Uint64("rows", count))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}

	if skipped > 0 {
		slog.Warn("skipped malformed rows", slog.String("file", path), slog.Int("count", skipped))
	}
	return rules, nil
}

func parseLine(line string) (rule, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return rule{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	r := rule{offeringID: strings.TrimSpace(fields[0])}
	if r.offeringID == "" {
		return rule{}, fmt.Errorf("empty offering id")
	}

	scopeID := strings.TrimSpace(fields[2])
	switch scope := strings.TrimSpace(fields[1]); scope {
	case "customer":
		r.customerID = scopeID
	case "type":
		r.customerTypeID = scopeID
	default:
		return rule{}, fmt.Errorf("unknown scope %q", scope)
	}
	if scopeID == "" {
		return rule{}, fmt.Errorf("empty scope id")
	}

	var err error
	if r.unitPrice, err = parsePrice(fields[3]); err != nil {
		return rule{}, err
	}
	if r.pricePerArea, err = parsePrice(fields[4]); err != nil {
		return rule{}, err
	}
	if r.unitPrice == nil && r.pricePerArea == nil {
		return rule{}, fmt.Errorf("rule carries no price")
	}
	return r, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parsePrice(field string) (*decimal.Decimal, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(field)
	if err != nil {
		return nil, errors.Wrap(err, "parse price")
	}
	return &d, nil
}

// dedupe merges the per-file rule sets, keeping the first occurrence of every
// (offering, scope) key. The bloom filter keeps memory flat on price lists
// with tens of millions of rows; at 0.1% FPR a handful of rows may be dropped
// as presumed duplicates, which bulk imports tolerate.
func dedupe(parsed [][]rule) []rule {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var out []rule
	for _, rules := range parsed {
		for _, r := range rules {
			key := r.key()
			if filter.TestString(key) {
				continue
			}
			filter.AddString(key)
			out = append(out, r)
		}
	}
	return out
}
