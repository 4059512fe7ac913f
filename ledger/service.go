/*
service.go - Mutating operations over the ledger and stock

PURPOSE:
  The Service is the only writer. It orchestrates the TxStore and the
  inventory Gateway so that every multi-entity effect (purchase +
  installments + stock) lands as one atomic unit.

CONCURRENCY MODEL:
  - Writes to a single client's ledger serialize through a per-client
    lock; different clients proceed in parallel.
  - Stock mutation serializes at the store's transaction boundary, and
    always runs through the single Gateway code path.
  - Reads don't take the client lock; the store returns consistent
    snapshots (a purchase never appears with a subset of installments).

FAILURE CONTRACT:
  All-or-nothing. Insufficient stock, a gateway timeout, or any store
  error inside WithTx leaves the store exactly as it was. Overpayment
  is NOT a failure: the business extends store credit, so a payment may
  drive the balance negative.

SEE ALSO:
  - store.go: TxStore.WithTx
  - inventory/gateway.go: Check-then-decrement
  - api/sweeper.go: Periodic caller of RefreshStatuses
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/client-ledger/inventory"
)

// Service exposes every mutating ledger operation plus the derived
// read views. Construct with NewService; Clock and GatewayTimeout may
// be overridden before use.
type Service struct {
	Store TxStore
	Log   zerolog.Logger

	// Clock supplies "now" for due-date comparison and record stamps.
	Clock func() time.Time

	// GatewayTimeout bounds the stock call inside a purchase/reversal.
	// On timeout the whole unit of work rolls back.
	GatewayTimeout time.Duration

	locks sync.Map // ClientID -> *sync.Mutex
}

func NewService(store TxStore, log zerolog.Logger) *Service {
	return &Service{
		Store:          store,
		Log:            log,
		Clock:          func() time.Time { return time.Now().UTC() },
		GatewayTimeout: 5 * time.Second,
	}
}

// lockClient serializes writers on one client's ledger.
func (s *Service) lockClient(id ClientID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// =============================================================================
// CLIENTS
// =============================================================================

// RegisterClient creates a client record.
func (s *Service) RegisterClient(ctx context.Context, name, phone, notes string) (Client, error) {
	if name == "" {
		return Client{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	c := Client{
		ID:        ClientID(uuid.NewString()),
		Name:      name,
		Phone:     phone,
		Notes:     notes,
		CreatedAt: s.Clock(),
	}
	if err := s.Store.SaveClient(ctx, c); err != nil {
		return Client{}, err
	}
	return c, nil
}

// ClientView is a client with derived statuses and balance attached.
type ClientView struct {
	Client
	BalanceSummary
}

// GetClient returns a client with every installment status derived at
// now and the balance aggregated. Integrity warnings are logged and
// degrade only the affected record.
func (s *Service) GetClient(ctx context.Context, id ClientID) (*ClientView, error) {
	c, err := s.Store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "client", ID: string(id)}
	}
	s.deriveClient(c)
	view := &ClientView{Client: *c, BalanceSummary: Aggregate(*c)}
	return view, nil
}

// ListClients returns all clients with derived statuses and balances.
func (s *Service) ListClients(ctx context.Context) ([]ClientView, error) {
	clients, err := s.Store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ClientView, len(clients))
	for i := range clients {
		s.deriveClient(&clients[i])
		views[i] = ClientView{Client: clients[i], BalanceSummary: Aggregate(clients[i])}
	}
	return views, nil
}

func (s *Service) deriveClient(c *Client) {
	now := s.Clock()
	for i := range c.Purchases {
		for _, w := range DeriveAll(&c.Purchases[i], now) {
			s.Log.Warn().Str("installment_id", w.ID).Msg(w.Detail)
		}
	}
}

// DeleteClient removes a client and cascades to everything it owns.
func (s *Service) DeleteClient(ctx context.Context, id ClientID) error {
	defer s.lockClient(id)()

	return s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		c, err := ls.GetClient(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return &NotFoundError{Kind: "client", ID: string(id)}
		}
		return ls.DeleteClient(ctx, id)
	})
}

// AddRelative attaches a relative to a client. Relatives share the
// ownership model and go away with the client.
func (s *Service) AddRelative(ctx context.Context, clientID ClientID, name string, birthDate time.Time, relationship string) (Relative, error) {
	if name == "" {
		return Relative{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	defer s.lockClient(clientID)()

	r := Relative{
		ID:           RelativeID(uuid.NewString()),
		ClientID:     clientID,
		Name:         name,
		BirthDate:    birthDate,
		Relationship: relationship,
	}
	err := s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		if err := s.requireClient(ctx, ls, clientID); err != nil {
			return err
		}
		return ls.InsertRelative(ctx, r)
	})
	if err != nil {
		return Relative{}, err
	}
	return r, nil
}

// =============================================================================
// PURCHASES AND DEBTS
// =============================================================================

// RegisterPurchase records a sale against a client, building its
// installment schedule when split is non-nil. No stock effect.
func (s *Service) RegisterPurchase(ctx context.Context, clientID ClientID, item string, amount Money, split *SplitSpec) (Purchase, error) {
	if item == "" {
		return Purchase{}, &ValidationError{Field: "item", Message: "must not be empty"}
	}

	now := s.Clock()
	var installments []Installment
	var err error
	if split == nil {
		installments, err = Schedule(amount, 1, 1, now)
	} else {
		installments, err = Schedule(amount, split.Count, split.IntervalDays, split.FirstDue)
	}
	if err != nil {
		return Purchase{}, err
	}

	p := Purchase{
		ID:           PurchaseID(uuid.NewString()),
		ClientID:     clientID,
		Item:         item,
		TotalValue:   amount,
		CreatedAt:    now,
		Installments: installments,
	}
	for i := range p.Installments {
		p.Installments[i].PurchaseID = p.ID
	}

	defer s.lockClient(clientID)()

	err = s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		if err := s.requireClient(ctx, ls, clientID); err != nil {
			return err
		}
		return ls.InsertPurchase(ctx, p)
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// RegisterDebt records a product sale as a debt: a purchase-equivalent
// with no installment plan, reducible only by payments. The stock
// decrement and the purchase insert are one atomic unit; insufficient
// stock rejects the whole operation with no partial mutation.
func (s *Service) RegisterDebt(ctx context.Context, clientID ClientID, productName string, qty int, unitPrice Money) (Purchase, error) {
	if qty <= 0 {
		return Purchase{}, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if !unitPrice.IsPositive() {
		return Purchase{}, &ValidationError{Field: "unitPrice", Message: "must be positive"}
	}

	now := s.Clock()
	total := unitPrice.MulInt(int64(qty))
	p := Purchase{
		ID:         PurchaseID(uuid.NewString()),
		ClientID:   clientID,
		Item:       productName,
		TotalValue: total,
		CreatedAt:  now,
		Installments: []Installment{{
			ID:      InstallmentID(uuid.NewString()),
			Number:  1,
			DueDate: now,
			Value:   total,
			Status:  StatusPending,
		}},
	}
	p.Installments[0].PurchaseID = p.ID

	defer s.lockClient(clientID)()

	err := s.Store.WithTx(ctx, func(ls Store, is inventory.Store) error {
		if err := s.requireClient(ctx, ls, clientID); err != nil {
			return err
		}

		gwCtx, cancel := context.WithTimeout(ctx, s.GatewayTimeout)
		defer cancel()

		gw := inventory.NewGateway(is, s.Log)
		if _, err := gw.Decrement(gwCtx, productName, qty, inventory.Ref{
			ClientID:   string(clientID),
			PurchaseID: string(p.ID),
		}); err != nil {
			return err
		}

		return ls.InsertPurchase(ctx, p)
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RegisterPayment records a free-form payment against the client's
// aggregate balance. Overpayment is permitted and drives the balance
// negative: that is store credit, not an error.
func (s *Service) RegisterPayment(ctx context.Context, clientID ClientID, amount Money, method PaymentMethod) (Payment, error) {
	if !amount.IsPositive() {
		return Payment{}, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !ValidMethod(method) {
		return Payment{}, &ValidationError{Field: "method", Message: "must be a recognized payment method"}
	}

	pay := Payment{
		ID:       PaymentID(uuid.NewString()),
		ClientID: clientID,
		Amount:   amount,
		Date:     s.Clock(),
		Method:   method,
	}

	defer s.lockClient(clientID)()

	err := s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		if err := s.requireClient(ctx, ls, clientID); err != nil {
			return err
		}
		return ls.InsertPayment(ctx, pay)
	})
	if err != nil {
		return Payment{}, err
	}
	return pay, nil
}

// PayInstallment marks one installment paid and records the matching
// payment on the client's ledger so balance and installment views stay
// reconciled. Paying an already-paid installment is a state conflict.
func (s *Service) PayInstallment(ctx context.Context, clientID ClientID, purchaseID PurchaseID, installmentID InstallmentID, method PaymentMethod) (Installment, error) {
	if !ValidMethod(method) {
		return Installment{}, &ValidationError{Field: "method", Message: "must be a recognized payment method"}
	}

	defer s.lockClient(clientID)()

	var paid Installment
	err := s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		p, err := ls.GetPurchase(ctx, clientID, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Kind: "purchase", ID: string(purchaseID)}
		}

		inst := findInstallment(p, installmentID)
		if inst == nil {
			return &NotFoundError{Kind: "installment", ID: string(installmentID)}
		}
		if inst.Paid() {
			return &InvalidStateError{Op: "pay installment", Reason: "already paid"}
		}

		now := s.Clock()
		if err := ls.MarkInstallmentPaid(ctx, installmentID, now, method); err != nil {
			return err
		}
		if err := ls.InsertPayment(ctx, Payment{
			ID:       PaymentID(uuid.NewString()),
			ClientID: clientID,
			Amount:   inst.Value,
			Date:     now,
			Method:   method,
		}); err != nil {
			return err
		}

		paid = *inst
		paid.PaidAt = &now
		paid.Method = method
		paid.Status = StatusPaid
		return nil
	})
	if err != nil {
		return Installment{}, err
	}
	return paid, nil
}

// =============================================================================
// REVERSALS
// =============================================================================

// CancelInstallment removes a non-paid installment from its purchase
// and reduces the purchase total by its value, keeping the sum
// invariant. Sibling numbers are preserved; a gap is the audit trail.
// Canceling a paid installment is rejected: money already changed hands.
func (s *Service) CancelInstallment(ctx context.Context, clientID ClientID, purchaseID PurchaseID, installmentID InstallmentID) error {
	defer s.lockClient(clientID)()

	return s.Store.WithTx(ctx, func(ls Store, _ inventory.Store) error {
		p, err := ls.GetPurchase(ctx, clientID, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Kind: "purchase", ID: string(purchaseID)}
		}

		inst := findInstallment(p, installmentID)
		if inst == nil {
			return &NotFoundError{Kind: "installment", ID: string(installmentID)}
		}
		if inst.Paid() {
			return &InvalidStateError{Op: "cancel installment", Reason: "already paid"}
		}

		if err := ls.DeleteInstallment(ctx, installmentID); err != nil {
			return err
		}
		return ls.UpdatePurchaseTotal(ctx, purchaseID, p.TotalValue.Sub(inst.Value))
	})
}

// ReverseMovement inverse-applies a stock movement. A sale reversal
// restores the units and removes the linked client purchase; a
// purchase-in reversal removes the units (legally negative). Stock and
// ledger effects commit or roll back together.
func (s *Service) ReverseMovement(ctx context.Context, productID inventory.ProductID, movementID inventory.MovementID) error {
	return s.Store.WithTx(ctx, func(ls Store, is inventory.Store) error {
		gwCtx, cancel := context.WithTimeout(ctx, s.GatewayTimeout)
		defer cancel()

		gw := inventory.NewGateway(is, s.Log)
		m, err := gw.Reverse(gwCtx, productID, movementID)
		if err != nil {
			return err
		}

		if m.Type == inventory.MovementSale && m.RefPurchaseID != "" {
			if err := ls.DeletePurchase(ctx, ClientID(m.RefClientID), PurchaseID(m.RefPurchaseID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// INVENTORY FRONT DOOR
// =============================================================================
// Manual stock flows share the Gateway with ledger-triggered sales so
// that concurrent writers against the same product serialize at one
// entry point.

// CreateProduct registers a product; a positive initial quantity is
// recorded as a purchase movement.
func (s *Service) CreateProduct(ctx context.Context, name string, initialQty int) (inventory.Product, error) {
	if name == "" {
		return inventory.Product{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if initialQty < 0 {
		return inventory.Product{}, &ValidationError{Field: "quantity", Message: "must not be negative"}
	}

	p := inventory.Product{
		ID:        inventory.ProductID(uuid.NewString()),
		Name:      name,
		Quantity:  0,
		CreatedAt: s.Clock(),
	}
	err := s.Store.WithTx(ctx, func(_ Store, is inventory.Store) error {
		existing, err := is.GetProductByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &InvalidStateError{Op: "create product", Reason: "name already in use"}
		}
		if err := is.UpsertProduct(ctx, p); err != nil {
			return err
		}
		if initialQty > 0 {
			gw := inventory.NewGateway(is, s.Log)
			if _, err := gw.Increment(ctx, name, initialQty); err != nil {
				return err
			}
			p.Quantity = initialQty
		}
		return nil
	})
	if err != nil {
		return inventory.Product{}, err
	}
	return p, nil
}

// StockIn records a manual restock movement.
func (s *Service) StockIn(ctx context.Context, productName string, qty int) (inventory.Movement, error) {
	var m inventory.Movement
	err := s.Store.WithTx(ctx, func(_ Store, is inventory.Store) error {
		gw := inventory.NewGateway(is, s.Log)
		mv, err := gw.Increment(ctx, productName, qty)
		if err != nil {
			return err
		}
		m = *mv
		return nil
	})
	return m, err
}

// =============================================================================
// STATUS SWEEP
// =============================================================================

// RefreshReport summarizes one status sweep.
type RefreshReport struct {
	Checked  int
	Updated  int
	Warnings int
}

// RefreshStatuses recomputes the cached status label of every unpaid
// installment. Idempotent: it only refreshes the transient overdue
// label and can never mark anything paid. Records with unparseable
// due dates are skipped with a logged warning, status untouched.
func (s *Service) RefreshStatuses(ctx context.Context) (RefreshReport, error) {
	installments, err := s.Store.ListUnpaidInstallments(ctx)
	if err != nil {
		return RefreshReport{}, err
	}

	now := s.Clock()
	report := RefreshReport{Checked: len(installments)}
	for _, inst := range installments {
		status, derr := DeriveStatus(inst, now)
		if derr != nil {
			report.Warnings++
			s.Log.Warn().
				Str("installment_id", string(inst.ID)).
				Msg("skipping status refresh: unparseable due date")
			continue
		}
		if status == inst.Status {
			continue
		}
		if err := s.Store.UpdateInstallmentStatus(ctx, inst.ID, status); err != nil {
			return report, err
		}
		report.Updated++
	}
	return report, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) requireClient(ctx context.Context, ls Store, id ClientID) error {
	c, err := ls.GetClient(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return &NotFoundError{Kind: "client", ID: string(id)}
	}
	return nil
}

func findInstallment(p *Purchase, id InstallmentID) *Installment {
	for i := range p.Installments {
		if p.Installments[i].ID == id {
			return &p.Installments[i]
		}
	}
	return nil
}
