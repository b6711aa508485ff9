package nfc

import (
	"context"
	"errors"
	"fmt"

	"github.com/pantryware/homestock/internal/inventory"
)

// Result is the outcome of a successful adjustment.
type Result struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int64  `json:"quantity"`
}

// Processor applies NFC tag adjustments to inventory quantities.
type Processor struct {
	urls  URLRepo
	items inventory.ItemRepo
}

func NewProcessor(urls URLRepo, items inventory.ItemRepo) *Processor {
	return &Processor{urls: urls, items: items}
}

// ProcessAdjustment handles a tap on an NFC adjustment URL.
//
// Checks run in a fixed order: the delta must be exactly +1 or -1 before
// the URL is even looked up, then the URL must resolve to an active record,
// then the resulting quantity must not be negative. Only then is the
// adjustment applied; a storage failure at that point surfaces as
// ErrAdjustmentFailed.
func (p *Processor) ProcessAdjustment(ctx context.Context, urlID string, delta int64) (*Result, error) {
	if delta != 1 && delta != -1 {
		return nil, ErrInvalidDelta
	}
	u, err := p.urls.GetActive(ctx, urlID)
	if err != nil {
		if errors.Is(err, ErrURLInactiveOrNotFound) {
			return nil, ErrURLInactiveOrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrAdjustmentFailed, err)
	}
	item, err := p.items.Get(ctx, u.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdjustmentFailed, err)
	}
	if item.Quantity+delta < 0 {
		return nil, ErrQuantityWouldGoNegative
	}
	updated, err := p.items.AdjustQuantity(ctx, u.ItemID, delta)
	if err != nil {
		// A concurrent decrement can still race us past the check above.
		if errors.Is(err, inventory.ErrQuantityNegative) {
			return nil, ErrQuantityWouldGoNegative
		}
		return nil, fmt.Errorf("%w: %v", ErrAdjustmentFailed, err)
	}
	return &Result{ItemID: updated.ID, ItemName: updated.Name, Quantity: updated.Quantity}, nil
}
