package inventory

import "context"

// =============================================================================
// STORE - Persistence interface for products and movements
// =============================================================================

// Store handles persistence of products and their movement history.
// Implementations must keep product names unique case-insensitively.
//
// Quantity mutation happens only through AdjustQuantity so that a
// transactional store can apply ledger and stock effects as one unit.
type Store interface {
	// UpsertProduct inserts or updates a product record.
	UpsertProduct(ctx context.Context, p Product) error

	// GetProduct returns a product by id, nil if missing.
	GetProduct(ctx context.Context, id ProductID) (*Product, error)

	// GetProductByName returns a product by case-insensitive name, nil if missing.
	GetProductByName(ctx context.Context, name string) (*Product, error)

	// ListProducts returns all products ordered by name.
	ListProducts(ctx context.Context) ([]Product, error)

	// AdjustQuantity applies a signed delta to a product's quantity and
	// returns the new quantity. The result may be negative; callers decide
	// whether that is legal for their operation.
	AdjustQuantity(ctx context.Context, id ProductID, delta int) (int, error)

	// AppendMovement records a movement against a product.
	AppendMovement(ctx context.Context, m Movement) error

	// GetMovement returns a movement by id, nil if missing.
	GetMovement(ctx context.Context, productID ProductID, movementID MovementID) (*Movement, error)

	// DeleteMovement removes a movement (used only by reversal).
	DeleteMovement(ctx context.Context, productID ProductID, movementID MovementID) error

	// ListMovements returns a product's movements, oldest first.
	ListMovements(ctx context.Context, productID ProductID) ([]Movement, error)
}
