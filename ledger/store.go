/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the interface between the ledger engine and the database.
  Different implementations back this with SQLite or memory.

OWNERSHIP CONTRACT:
  Records are organized per-client: a client's purchases (each carrying
  its installments), payments, and relatives are owned by the client.
  DeleteClient removes everything it owns as one atomic unit.

ATOMIC UNITS:
  TxStore.WithTx runs a function against tx-scoped ledger and inventory
  stores. Everything written inside commits or rolls back together -
  this is how "stock decremented but purchase not recorded" is made
  impossible.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go:  In-memory for testing

SEE ALSO:
  - service.go: The only caller of WithTx
*/
package ledger

import (
	"context"
	"time"

	"github.com/warp/client-ledger/inventory"
)

// Store handles persistence of clients and everything they own.
// Reads return fully loaded aggregates: a purchase always comes with
// all of its installments (consistent snapshot, never a subset).
type Store interface {
	// SaveClient inserts or updates a client's identity fields.
	SaveClient(ctx context.Context, c Client) error

	// GetClient returns a fully loaded client, nil if missing.
	GetClient(ctx context.Context, id ClientID) (*Client, error)

	// ListClients returns all clients, fully loaded, ordered by name.
	ListClients(ctx context.Context) ([]Client, error)

	// DeleteClient removes the client and cascades to all owned
	// purchases, installments, payments, and relatives.
	DeleteClient(ctx context.Context, id ClientID) error

	// InsertPurchase persists a purchase together with its installments.
	InsertPurchase(ctx context.Context, p Purchase) error

	// GetPurchase returns one purchase with installments, nil if missing.
	GetPurchase(ctx context.Context, clientID ClientID, purchaseID PurchaseID) (*Purchase, error)

	// DeletePurchase removes a purchase and its installments.
	DeletePurchase(ctx context.Context, clientID ClientID, purchaseID PurchaseID) error

	// UpdatePurchaseTotal rewrites a purchase's total value. Used only
	// by installment cancellation, which must keep the sum invariant.
	UpdatePurchaseTotal(ctx context.Context, purchaseID PurchaseID, total Money) error

	// MarkInstallmentPaid records the terminal payment marker.
	MarkInstallmentPaid(ctx context.Context, id InstallmentID, at time.Time, method PaymentMethod) error

	// DeleteInstallment removes one installment (cancellation).
	DeleteInstallment(ctx context.Context, id InstallmentID) error

	// UpdateInstallmentStatus refreshes the cached status label. The
	// label is an optimization; derivation remains the source of truth.
	UpdateInstallmentStatus(ctx context.Context, id InstallmentID, status InstallmentStatus) error

	// ListUnpaidInstallments returns every installment without a paid
	// marker, across all clients. Feeds the periodic sweep.
	ListUnpaidInstallments(ctx context.Context) ([]Installment, error)

	// InsertPayment persists a payment. Payments are immutable.
	InsertPayment(ctx context.Context, p Payment) error

	// InsertRelative persists a relative under its owning client.
	InsertRelative(ctx context.Context, r Relative) error
}

// TxStore extends Store with an atomic unit of work spanning the
// ledger and inventory sides.
type TxStore interface {
	Store

	// WithTx executes fn against tx-scoped stores. If fn returns an
	// error the whole unit rolls back; otherwise it commits.
	WithTx(ctx context.Context, fn func(Store, inventory.Store) error) error
}
