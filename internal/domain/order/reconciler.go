package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/washly/order-engine/internal/domain/pricing"
)

// Pricer prices a prospective order line. Satisfied by *pricing.Service.
type Pricer interface {
	CalculatePrice(ctx context.Context, offeringID, customerID string, in pricing.Input) (pricing.Quote, error)
}

// Reconciler keeps an order's stored total in agreement with the sum of its
// line subtotals.
type Reconciler struct {
	orders Repository
	pricer Pricer
	tracer trace.Tracer
}

// NewReconciler creates a Reconciler over the given repository and pricer.
func NewReconciler(orders Repository, pricer Pricer) *Reconciler {
	return &Reconciler{
		orders: orders,
		pricer: pricer,
		tracer: otel.Tracer("order-engine/reconciler"),
	}
}

// Reconcile recomputes the order's total from its lines and writes the
// corrected value only when it differs from the stored one. The write is a
// plain column update, so a second call with unchanged lines performs no
// write at all. Returns whether a correction was written.
func (r *Reconciler) Reconcile(ctx context.Context, ord *Order) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "Reconcile")
	defer span.End()

	calculated := ord.LineTotal()
	if calculated.Equal(ord.TotalAmount) {
		return false, nil
	}

	if err := r.orders.UpdateTotal(ctx, ord.ID, calculated); err != nil {
		return false, errors.Wrap(err, "update total")
	}
	ord.TotalAmount = calculated
	return true, nil
}

// ReconcileWithReprice re-runs the pricing resolver for every line with its
// current quantity and dimensions, persists the refreshed line prices, and
// then reconciles the total. A line whose offering lacks catalog data prices
// to zero and the rest of the order still completes.
func (r *Reconciler) ReconcileWithReprice(ctx context.Context, ord *Order) error {
	ctx, span := r.tracer.Start(ctx, "ReconcileWithReprice")
	defer span.End()

	for i := range ord.Lines {
		l := &ord.Lines[i]

		quote, err := r.pricer.CalculatePrice(ctx, l.OfferingID, ord.CustomerID, pricing.Input{
			Quantity: l.Quantity,
			LengthM:  l.LengthM,
			WidthM:   l.WidthM,
		})
		if err != nil {
			return errors.Wrapf(err, "price line %s", l.ID)
		}

		if quote.UnitPrice.Equal(l.UnitPrice) && quote.Subtotal.Equal(l.Subtotal) {
			continue
		}
		if err := r.orders.UpdateLinePrice(ctx, l.ID, quote.UnitPrice, quote.Subtotal); err != nil {
			return errors.Wrapf(err, "update price of line %s", l.ID)
		}
		l.UnitPrice = quote.UnitPrice
		l.Subtotal = quote.Subtotal
	}

	if _, err := r.Reconcile(ctx, ord); err != nil {
		return err
	}
	return nil
}
