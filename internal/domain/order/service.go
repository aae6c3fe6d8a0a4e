package order

import (
	"context"
	"fmt"
	"maps"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/washly/order-engine/internal/domain/catalog"
	"github.com/washly/order-engine/internal/domain/customer"
	"github.com/washly/order-engine/internal/domain/pricing"
	"github.com/washly/order-engine/internal/domain/sequence"
)

// Sentinel errors for order mutation validation.
var ErrEmptyLines = errors.New("order lines required")

// InvalidQuantityError indicates a line input with a non-positive quantity.
type InvalidQuantityError struct {
	OfferingID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for offering %s", e.OfferingID)
}

// LineNotFoundError indicates the referenced line does not belong to the order.
type LineNotFoundError struct {
	LineID string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("line %s not found", e.LineID)
}

// Stores is the repository set a mutation operates on. Every store in one
// Stores value is bound to the same database transaction.
type Stores struct {
	Orders      Repository
	Catalog     catalog.Repository
	Customers   customer.Repository
	Counters    sequence.CounterStore
	Allocations sequence.AllocationStore
}

// TxRunner executes fn within a single database transaction, handing it a
// transaction-bound Stores. An error from fn rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// LineInput holds the caller-supplied properties of a line; prices are
// derived, never accepted.
type LineInput struct {
	OfferingID string
	Quantity   int
	LengthM    *decimal.Decimal
	WidthM     *decimal.Decimal
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	CustomerID string
	Lines      []LineInput
}

// Service runs each order mutation as one atomic pipeline: persist lines,
// reconcile the total, allocate sequence labels. No reader ever observes a
// line set whose total or labels have not caught up.
type Service struct {
	tx TxRunner
}

// NewService creates an order Service on top of the given transaction runner.
func NewService(tx TxRunner) *Service {
	return &Service{tx: tx}
}

// CreateOrder prices the given lines, persists the order and runs the
// finalization pipeline.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}
	for _, in := range req.Lines {
		if in.Quantity <= 0 {
			return nil, &InvalidQuantityError{OfferingID: in.OfferingID}
		}
	}

	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		pricer := pricing.NewService(st.Catalog, st.Customers)

		ord = &Order{
			ID:                uuid.New().String(),
			CustomerID:        req.CustomerID,
			CategorySequences: map[string]string{},
		}
		for _, in := range req.Lines {
			quote, err := pricer.CalculatePrice(ctx, in.OfferingID, req.CustomerID, pricingInput(in))
			if err != nil {
				return err
			}
			ord.Lines = append(ord.Lines, Line{
				ID:         uuid.New().String(),
				OrderID:    ord.ID,
				OfferingID: in.OfferingID,
				Quantity:   in.Quantity,
				LengthM:    in.LengthM,
				WidthM:     in.WidthM,
				UnitPrice:  quote.UnitPrice,
				Subtotal:   quote.Subtotal,
			})
		}
		ord.TotalAmount = ord.LineTotal()

		if err := st.Orders.Create(ctx, ord); err != nil {
			return errors.Wrap(err, "create order")
		}
		return s.finalize(ctx, st, ord)
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// AddLine prices and appends one line to an existing order.
func (s *Service) AddLine(ctx context.Context, orderID string, in LineInput) (*Order, error) {
	if in.Quantity <= 0 {
		return nil, &InvalidQuantityError{OfferingID: in.OfferingID}
	}

	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		ord, err = st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		pricer := pricing.NewService(st.Catalog, st.Customers)
		quote, err := pricer.CalculatePrice(ctx, in.OfferingID, ord.CustomerID, pricingInput(in))
		if err != nil {
			return err
		}

		line := Line{
			ID:         uuid.New().String(),
			OrderID:    ord.ID,
			OfferingID: in.OfferingID,
			Quantity:   in.Quantity,
			LengthM:    in.LengthM,
			WidthM:     in.WidthM,
			UnitPrice:  quote.UnitPrice,
			Subtotal:   quote.Subtotal,
		}
		if err := st.Orders.InsertLine(ctx, &line); err != nil {
			return errors.Wrap(err, "insert line")
		}
		ord.Lines = append(ord.Lines, line)

		return s.finalize(ctx, st, ord)
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// UpdateLine replaces a line's quantity and dimensions, re-prices it and
// re-runs the finalization pipeline. Already-held sequence values are kept;
// only the item counts in the labels change.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID string, in LineInput) (*Order, error) {
	if in.Quantity <= 0 {
		return nil, &InvalidQuantityError{OfferingID: in.OfferingID}
	}

	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		ord, err = st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		var line *Line
		for i := range ord.Lines {
			if ord.Lines[i].ID == lineID {
				line = &ord.Lines[i]
				break
			}
		}
		if line == nil {
			return &LineNotFoundError{LineID: lineID}
		}

		line.Quantity = in.Quantity
		line.LengthM = in.LengthM
		line.WidthM = in.WidthM

		pricer := pricing.NewService(st.Catalog, st.Customers)
		quote, err := pricer.CalculatePrice(ctx, line.OfferingID, ord.CustomerID, pricingInput(in))
		if err != nil {
			return err
		}
		line.UnitPrice = quote.UnitPrice
		line.Subtotal = quote.Subtotal

		if err := st.Orders.UpdateLine(ctx, line); err != nil {
			return errors.Wrap(err, "update line")
		}
		return s.finalize(ctx, st, ord)
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// RemoveLine deletes a line and re-runs the finalization pipeline.
func (s *Service) RemoveLine(ctx context.Context, orderID, lineID string) (*Order, error) {
	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		ord, err = st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range ord.Lines {
			if ord.Lines[i].ID == lineID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &LineNotFoundError{LineID: lineID}
		}

		if err := st.Orders.DeleteLine(ctx, orderID, lineID); err != nil {
			return errors.Wrap(err, "delete line")
		}
		ord.Lines = append(ord.Lines[:idx], ord.Lines[idx+1:]...)

		return s.finalize(ctx, st, ord)
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// SetTotalOverride writes an arbitrary total in a single write without
// triggering reconciliation. The next explicit Reconcile corrects it.
func (s *Service) SetTotalOverride(ctx context.Context, orderID string, total decimal.Decimal) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		return st.Orders.UpdateTotal(ctx, orderID, total)
	})
}

// Reconcile recomputes the stored total from the order's lines.
func (s *Service) Reconcile(ctx context.Context, orderID string) (*Order, error) {
	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		ord, err = st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		rec := NewReconciler(st.Orders, pricing.NewService(st.Catalog, st.Customers))
		_, err = rec.Reconcile(ctx, ord)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// Reprice re-runs the pricing resolver over every line, reconciles the total
// and refreshes the sequence labels. Used after upstream data such as
// dimensions or rules changed since the lines were first priced.
func (s *Service) Reprice(ctx context.Context, orderID string) (*Order, error) {
	var ord *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		ord, err = st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		rec := NewReconciler(st.Orders, pricing.NewService(st.Catalog, st.Customers))
		if err := rec.ReconcileWithReprice(ctx, ord); err != nil {
			return err
		}
		return s.updateSequences(ctx, st, ord)
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// finalize is the tail of every mutation pipeline: reconcile the total, then
// refresh the sequence labels.
func (s *Service) finalize(ctx context.Context, st Stores, ord *Order) error {
	rec := NewReconciler(st.Orders, pricing.NewService(st.Catalog, st.Customers))
	if _, err := rec.Reconcile(ctx, ord); err != nil {
		return err
	}
	return s.updateSequences(ctx, st, ord)
}

func (s *Service) updateSequences(ctx context.Context, st Stores, ord *Order) error {
	alloc := sequence.NewAllocator(st.Catalog, st.Counters, st.Allocations)

	items := make([]sequence.Item, len(ord.Lines))
	for i, l := range ord.Lines {
		items[i] = sequence.Item{OfferingID: l.OfferingID, Quantity: l.Quantity}
	}
	labels, err := alloc.Allocate(ctx, ord.ID, items)
	if err != nil {
		return errors.Wrap(err, "allocate sequences")
	}

	if maps.Equal(labels, ord.CategorySequences) {
		return nil
	}
	if err := st.Orders.UpdateCategorySequences(ctx, ord.ID, labels); err != nil {
		return errors.Wrap(err, "update category sequences")
	}
	ord.CategorySequences = labels
	return nil
}

func pricingInput(in LineInput) pricing.Input {
	return pricing.Input{
		Quantity: in.Quantity,
		LengthM:  in.LengthM,
		WidthM:   in.WidthM,
	}
}
