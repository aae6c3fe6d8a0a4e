package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order or line does not exist.
var ErrNotFound = errors.New("order not found")

// Line is one priced position of an order. UnitPrice and Subtotal are derived
// by the pricing resolver; nothing else writes them.
type Line struct {
	ID         string
	OrderID    string
	OfferingID string
	Quantity   int
	LengthM    *decimal.Decimal
	WidthM     *decimal.Decimal
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
}

// Order aggregates lines with a stored total and the derived per-category
// sequence labels. TotalAmount equals the sum of line subtotals except in the
// single write where a caller deliberately overrides it.
type Order struct {
	ID                string
	CustomerID        string
	Lines             []Line
	TotalAmount       decimal.Decimal
	PaidAmount        decimal.Decimal
	CategorySequences map[string]string
	CreatedAt         time.Time
}

// LineTotal sums the subtotals of all lines.
func (o *Order) LineTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// Repository defines persistence operations for orders and their lines.
// UpdateTotal and UpdateLinePrice are plain column writes that trigger no
// further recomputation; reconciliation is an explicit pipeline step, not a
// save hook.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListIDs(ctx context.Context) ([]string, error)

	InsertLine(ctx context.Context, l *Line) error
	UpdateLine(ctx context.Context, l *Line) error
	DeleteLine(ctx context.Context, orderID, lineID string) error
	UpdateLinePrice(ctx context.Context, lineID string, unitPrice, subtotal decimal.Decimal) error

	UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error
	UpdateCategorySequences(ctx context.Context, orderID string, seqs map[string]string) error
}
