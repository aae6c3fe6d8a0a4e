package postgres

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/washly/order-engine/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, total_amount, paid_amount, category_sequences)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)`

	getOrderSQL = `SELECT id, COALESCE(customer_id, ''), total_amount, paid_amount, category_sequences, created_at
		FROM orders WHERE id = $1`

	listOrderIDsSQL = `SELECT id FROM orders ORDER BY created_at`

	getOrderLinesSQL = `SELECT id, order_id, offering_id, quantity, length_m, width_m, unit_price, subtotal
		FROM order_lines WHERE order_id = $1 ORDER BY id`

	insertLineSQL = `INSERT INTO order_lines (id, order_id, offering_id, quantity, length_m, width_m, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateLineSQL = `UPDATE order_lines
		SET quantity = $2, length_m = $3, width_m = $4, unit_price = $5, subtotal = $6
		WHERE id = $1`

	deleteLineSQL = `DELETE FROM order_lines WHERE order_id = $1 AND id = $2`

	updateLinePriceSQL = `UPDATE order_lines SET unit_price = $2, subtotal = $3 WHERE id = $1`

	updateTotalSQL = `UPDATE orders SET total_amount = $2 WHERE id = $1`

	updateSequencesSQL = `UPDATE orders SET category_sequences = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Total and
// line-price updates are plain column writes; no triggers or hooks fire on
// them.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository over the given database
// handle.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order together with its lines.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	seqs, err := encodeSequences(o.CategorySequences)
	if err != nil {
		return fmt.Errorf("encoding category sequences: %w", err)
	}

	_, err = r.db.Exec(ctx, createOrderSQL, o.ID, o.CustomerID, o.TotalAmount, o.PaidAmount, seqs)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for i := range o.Lines {
		if err := r.InsertLine(ctx, &o.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns an order with its lines. Returns order.ErrNotFound when no
// matching order exists.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o       order.Order
		rawSeqs []byte
	)
	err := r.db.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.TotalAmount, &o.PaidAmount, &rawSeqs, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o.CategorySequences, err = decodeSequences(rawSeqs)
	if err != nil {
		return nil, fmt.Errorf("decoding category sequences of order %q: %w", id, err)
	}

	rows, err := r.db.Query(ctx, getOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", id, err)
	}

	return &o, nil
}

// ListIDs returns all order IDs in creation order.
func (r *OrderRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listOrderIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing order ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing order ids: %w", err)
	}
	return ids, nil
}

// InsertLine persists a new order line.
func (r *OrderRepository) InsertLine(ctx context.Context, l *order.Line) error {
	_, err := r.db.Exec(ctx, insertLineSQL,
		l.ID, l.OrderID, l.OfferingID, l.Quantity, l.LengthM, l.WidthM, l.UnitPrice, l.Subtotal)
	if err != nil {
		return fmt.Errorf("inserting line %q: %w", l.ID, err)
	}
	return nil
}

// UpdateLine persists a line's quantity, dimensions and derived prices.
func (r *OrderRepository) UpdateLine(ctx context.Context, l *order.Line) error {
	_, err := r.db.Exec(ctx, updateLineSQL,
		l.ID, l.Quantity, l.LengthM, l.WidthM, l.UnitPrice, l.Subtotal)
	if err != nil {
		return fmt.Errorf("updating line %q: %w", l.ID, err)
	}
	return nil
}

// DeleteLine removes a line from an order.
func (r *OrderRepository) DeleteLine(ctx context.Context, orderID, lineID string) error {
	_, err := r.db.Exec(ctx, deleteLineSQL, orderID, lineID)
	if err != nil {
		return fmt.Errorf("deleting line %q: %w", lineID, err)
	}
	return nil
}

// UpdateLinePrice writes the derived price fields of one line.
func (r *OrderRepository) UpdateLinePrice(ctx context.Context, lineID string, unitPrice, subtotal decimal.Decimal) error {
	_, err := r.db.Exec(ctx, updateLinePriceSQL, lineID, unitPrice, subtotal)
	if err != nil {
		return fmt.Errorf("updating price of line %q: %w", lineID, err)
	}
	return nil
}

// UpdateTotal writes the stored order total.
func (r *OrderRepository) UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	_, err := r.db.Exec(ctx, updateTotalSQL, orderID, total)
	if err != nil {
		return fmt.Errorf("updating total of order %q: %w", orderID, err)
	}
	return nil
}

// UpdateCategorySequences writes the derived sequence-label map.
func (r *OrderRepository) UpdateCategorySequences(ctx context.Context, orderID string, seqs map[string]string) error {
	encoded, err := encodeSequences(seqs)
	if err != nil {
		return fmt.Errorf("encoding category sequences: %w", err)
	}

	_, err = r.db.Exec(ctx, updateSequencesSQL, orderID, encoded)
	if err != nil {
		return fmt.Errorf("updating category sequences of order %q: %w", orderID, err)
	}
	return nil
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ID, &l.OrderID, &l.OfferingID, &l.Quantity,
		&l.LengthM, &l.WidthM, &l.UnitPrice, &l.Subtotal)
	return l, err
}

// encodeSequences serializes the label map to JSON with stable key order for
// the JSONB column.
func encodeSequences(seqs map[string]string) ([]byte, error) {
	e := &jx.Encoder{}
	e.ObjStart()
	for _, k := range slices.Sorted(maps.Keys(seqs)) {
		e.FieldStart(k)
		e.Str(seqs[k])
	}
	e.ObjEnd()
	return e.Bytes(), nil
}

func decodeSequences(data []byte) (map[string]string, error) {
	seqs := map[string]string{}
	if len(data) == 0 {
		return seqs, nil
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		seqs[key] = v
		return nil
	}); err != nil {
		return nil, err
	}
	return seqs, nil
}
