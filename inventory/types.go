/*
Package inventory owns the stock side of the ledger system.

PURPOSE:
  Products and their movement history live here. The ledger never touches
  product quantities directly - every stock mutation goes through the
  Gateway, which is the single entry point enforcing check-then-decrement.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: A stocked item with a case-insensitive unique name
  - Movement: A stock-affecting event (purchase-in or sale-out)
  - Ref: Back-reference linking a sale movement to the client purchase
    it originated from, so a reversal can undo both sides

DESIGN PRINCIPLES:
  1. Quantities are integers. Negative quantity is a surfaced anomaly
     (a purchase-in was reversed after the goods moved), never clamped.
  2. Movements are the audit trail for stock. Reversal removes the
     movement and applies the inverse quantity delta.
  3. This package has NO knowledge of the ledger's money types; the
     back-reference is plain ids.

SEE ALSO:
  - gateway.go: Check-then-decrement entry point
  - store.go: Persistence interface
*/
package inventory

import "time"

// =============================================================================
// PRODUCT
// =============================================================================

type ProductID string

// Product is a stocked item. Name is unique case-insensitively.
type Product struct {
	ID        ProductID
	Name      string
	Quantity  int
	CreatedAt time.Time
}

// =============================================================================
// MOVEMENT - Stock-affecting event
// =============================================================================

type MovementID string

type MovementType string

const (
	// MovementPurchase is stock coming in (restock from a supplier).
	MovementPurchase MovementType = "purchase"
	// MovementSale is stock going out (a client bought it).
	MovementSale MovementType = "sale"
)

// Movement records a single stock change against a product.
type Movement struct {
	ID        MovementID
	ProductID ProductID
	Type      MovementType
	Quantity  int // always positive; Type carries the direction
	At        time.Time

	// Back-reference to the ledger side, set only for sale movements.
	// Plain strings to keep this package free of ledger types.
	RefClientID   string
	RefPurchaseID string
}

// Ref carries the ledger-side identifiers a sale movement should record.
type Ref struct {
	ClientID   string
	PurchaseID string
}
