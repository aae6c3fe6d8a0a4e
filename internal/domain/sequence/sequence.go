// Package sequence assigns human-readable, per-category sequence labels to
// orders for physical routing and sorting.
//
// A label has the form prefix + n + "-" + itemCount, e.g. "Z7-5": the 7th
// allocation ever made for category Z, covering 5 pieces in this order. The
// counter behind n only moves forward; cancelled orders keep their values and
// gaps are acceptable, duplicates are not.
package sequence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/washly/order-engine/internal/domain/catalog"
)

// Item is one order line as seen by the allocator.
type Item struct {
	OfferingID string
	Quantity   int
}

// CounterStore hands out the next value of a category's counter. NextValue
// must be a single atomic read-modify-write: incrementing and then reading
// separately produces duplicate or skipped values under concurrent callers.
type CounterStore interface {
	NextValue(ctx context.Context, categoryID string) (int64, error)
}

// AllocationStore remembers which counter value an order already holds for a
// category, so recomputing labels after a quantity edit never consumes a
// fresh value.
type AllocationStore interface {
	// Get returns the recorded value and whether one exists.
	Get(ctx context.Context, orderID, categoryID string) (int64, bool, error)
	Save(ctx context.Context, orderID, categoryID string, value int64) error
}

// Allocator computes sequence labels for an order.
type Allocator struct {
	catalog     catalog.Repository
	counters    CounterStore
	allocations AllocationStore
}

// NewAllocator creates an Allocator backed by the given stores.
func NewAllocator(cat catalog.Repository, counters CounterStore, allocations AllocationStore) *Allocator {
	return &Allocator{catalog: cat, counters: counters, allocations: allocations}
}

// Allocate groups the order's items by their offering's category and returns
// one label per sequence-enabled category. Categories with sequencing
// disabled or without a prefix are omitted, as are items whose offering is
// unknown to the catalog.
//
// The first call for an order+category consumes a counter value; later calls
// reuse the recorded value and only refresh the item count.
func (a *Allocator) Allocate(ctx context.Context, orderID string, items []Item) (map[string]string, error) {
	if len(items) == 0 {
		return map[string]string{}, nil
	}

	offeringIDs := make([]string, 0, len(items))
	for _, it := range items {
		offeringIDs = append(offeringIDs, it.OfferingID)
	}
	offerings, err := a.catalog.GetOfferings(ctx, offeringIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get offerings")
	}

	categoryOf := make(map[string]string, len(offerings))
	for _, off := range offerings {
		categoryOf[off.ID] = off.CategoryID
	}

	counts := make(map[string]int)
	var categoryIDs []string
	for _, it := range items {
		catID, ok := categoryOf[it.OfferingID]
		if !ok {
			continue
		}
		if _, seen := counts[catID]; !seen {
			categoryIDs = append(categoryIDs, catID)
		}
		counts[catID] += it.Quantity
	}

	categories, err := a.catalog.GetCategories(ctx, categoryIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get categories")
	}

	labels := make(map[string]string, len(categories))
	for _, cat := range categories {
		if !cat.SequenceEnabled || cat.SequencePrefix == "" {
			continue
		}

		value, found, err := a.allocations.Get(ctx, orderID, cat.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "get allocation for category %s", cat.ID)
		}
		if !found {
			value, err = a.counters.NextValue(ctx, cat.ID)
			if err != nil {
				return nil, errors.Wrapf(err, "next value for category %s", cat.ID)
			}
			if err := a.allocations.Save(ctx, orderID, cat.ID, value); err != nil {
				return nil, errors.Wrapf(err, "save allocation for category %s", cat.ID)
			}
		}

		labels[cat.ID] = fmt.Sprintf("%s%d-%d", cat.SequencePrefix, value, counts[cat.ID])
	}

	return labels, nil
}
