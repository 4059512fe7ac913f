/*
gateway.go - Single entry point for stock mutation

PURPOSE:
  Every flow that changes a product quantity - a ledger-triggered sale,
  a manual restock, a reversal - goes through the Gateway. That is what
  makes "check-then-decrement" atomic: there is exactly one code path
  that reads availability and applies the delta, and the store it runs
  against serializes writers.

CRITICAL INVARIANTS:
  1. A sale never succeeds for more units than are available.
  2. Stock moves in lockstep with the movement record: quantity delta
     and movement row are written in the same unit of work.
  3. Reversal applies the exact inverse delta and removes the movement.
     Reversing a purchase-in may drive quantity negative; that is a
     surfaced anomaly, not an error.

TRANSACTIONAL USE:
  The Gateway is cheap to construct and is typically bound to a
  tx-scoped Store inside TxStore.WithTx, so its effects commit or roll
  back together with the caller's ledger writes.

SEE ALSO:
  - store.go: Persistence interface
  - ledger/service.go: Binds a Gateway inside its unit of work
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Gateway mediates all stock mutation against a Store.
type Gateway struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewGateway binds a gateway to a store. The store decides the
// transactional scope; see TxStore.WithTx on the ledger side.
func NewGateway(store Store, log zerolog.Logger) *Gateway {
	return &Gateway{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// =============================================================================
// SALE / RESTOCK
// =============================================================================

// Decrement removes qty units of the named product for a sale.
// Fails with InsufficientStockError when qty exceeds availability,
// leaving quantity untouched. Records a sale movement carrying ref.
func (g *Gateway) Decrement(ctx context.Context, productName string, qty int, ref Ref) (*Movement, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("decrement quantity must be positive, got %d", qty)
	}

	p, err := g.store.GetProductByName(ctx, productName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	if qty > p.Quantity {
		return nil, &InsufficientStockError{Product: p.Name, Requested: qty, Available: p.Quantity}
	}

	if _, err := g.store.AdjustQuantity(ctx, p.ID, -qty); err != nil {
		return nil, err
	}

	m := Movement{
		ID:            MovementID(uuid.NewString()),
		ProductID:     p.ID,
		Type:          MovementSale,
		Quantity:      qty,
		At:            g.now(),
		RefClientID:   ref.ClientID,
		RefPurchaseID: ref.PurchaseID,
	}
	if err := g.store.AppendMovement(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Increment adds qty units of the named product (restock).
// Records a purchase movement.
func (g *Gateway) Increment(ctx context.Context, productName string, qty int) (*Movement, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("increment quantity must be positive, got %d", qty)
	}

	p, err := g.store.GetProductByName(ctx, productName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}

	if _, err := g.store.AdjustQuantity(ctx, p.ID, qty); err != nil {
		return nil, err
	}

	m := Movement{
		ID:        MovementID(uuid.NewString()),
		ProductID: p.ID,
		Type:      MovementPurchase,
		Quantity:  qty,
		At:        g.now(),
	}
	if err := g.store.AppendMovement(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// REVERSAL
// =============================================================================

// Reverse undoes a prior movement: restores the quantity delta it
// applied and removes the movement record. Returns the reversed
// movement so the caller can unlink the ledger side of a sale.
//
// Reversing a purchase-in removes units and may legally drive the
// quantity negative; the anomaly is logged, not blocked.
func (g *Gateway) Reverse(ctx context.Context, productID ProductID, movementID MovementID) (*Movement, error) {
	m, err := g.store.GetMovement(ctx, productID, movementID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMovementNotFound
	}

	delta := m.Quantity
	if m.Type == MovementPurchase {
		delta = -m.Quantity
	}

	newQty, err := g.store.AdjustQuantity(ctx, m.ProductID, delta)
	if err != nil {
		return nil, err
	}
	if newQty < 0 {
		g.log.Warn().
			Str("product_id", string(m.ProductID)).
			Str("movement_id", string(m.ID)).
			Int("quantity", newQty).
			Msg("stock went negative after movement reversal")
	}

	if err := g.store.DeleteMovement(ctx, m.ProductID, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}
