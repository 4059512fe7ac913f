// Package store provides an in-memory TxStore implementation for
// testing and development. It backs both the ledger and inventory
// store interfaces; WithTx simulates atomicity with a snapshot that is
// restored when the unit of work fails.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	clients   map[ledger.ClientID]ledger.Client // identity fields only
	purchases map[ledger.PurchaseID]ledger.Purchase
	payments  map[ledger.PaymentID]ledger.Payment
	relatives map[ledger.RelativeID]ledger.Relative
	products  map[inventory.ProductID]inventory.Product
	movements map[inventory.MovementID]inventory.Movement
}

func NewMemory() *Memory {
	return &Memory{
		clients:   make(map[ledger.ClientID]ledger.Client),
		purchases: make(map[ledger.PurchaseID]ledger.Purchase),
		payments:  make(map[ledger.PaymentID]ledger.Payment),
		relatives: make(map[ledger.RelativeID]ledger.Relative),
		products:  make(map[inventory.ProductID]inventory.Product),
		movements: make(map[inventory.MovementID]inventory.Movement),
	}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (m *Memory) SaveClient(_ context.Context, c ledger.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveClientLocked(c)
}

func (m *Memory) saveClientLocked(c ledger.Client) error {
	c.Purchases, c.Payments, c.Relatives = nil, nil, nil
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) GetClient(_ context.Context, id ledger.ClientID) (*ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClientLocked(id)
}

func (m *Memory) getClientLocked(id ledger.ClientID) (*ledger.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	for _, p := range m.purchases {
		if p.ClientID == id {
			c.Purchases = append(c.Purchases, copyPurchase(p))
		}
	}
	sort.Slice(c.Purchases, func(i, j int) bool {
		return c.Purchases[i].CreatedAt.Before(c.Purchases[j].CreatedAt)
	})
	for _, pay := range m.payments {
		if pay.ClientID == id {
			c.Payments = append(c.Payments, pay)
		}
	}
	sort.Slice(c.Payments, func(i, j int) bool { return c.Payments[i].Date.Before(c.Payments[j].Date) })
	for _, r := range m.relatives {
		if r.ClientID == id {
			c.Relatives = append(c.Relatives, r)
		}
	}
	sort.Slice(c.Relatives, func(i, j int) bool { return c.Relatives[i].Name < c.Relatives[j].Name })
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Client
	for id := range m.clients {
		c, _ := m.getClientLocked(id)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteClient(_ context.Context, id ledger.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteClientLocked(id)
}

func (m *Memory) deleteClientLocked(id ledger.ClientID) error {
	delete(m.clients, id)
	for pid, p := range m.purchases {
		if p.ClientID == id {
			delete(m.purchases, pid)
		}
	}
	for payID, pay := range m.payments {
		if pay.ClientID == id {
			delete(m.payments, payID)
		}
	}
	for rid, r := range m.relatives {
		if r.ClientID == id {
			delete(m.relatives, rid)
		}
	}
	return nil
}

func (m *Memory) InsertPurchase(_ context.Context, p ledger.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[p.ID] = copyPurchase(p)
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPurchaseLocked(clientID, purchaseID)
}

func (m *Memory) getPurchaseLocked(clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	p, ok := m.purchases[purchaseID]
	if !ok || p.ClientID != clientID {
		return nil, nil
	}
	cp := copyPurchase(p)
	return &cp, nil
}

func (m *Memory) DeletePurchase(_ context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePurchaseLocked(clientID, purchaseID)
}

func (m *Memory) deletePurchaseLocked(clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	p, ok := m.purchases[purchaseID]
	if !ok || p.ClientID != clientID {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(purchaseID)}
	}
	delete(m.purchases, purchaseID)
	return nil
}

func (m *Memory) UpdatePurchaseTotal(_ context.Context, purchaseID ledger.PurchaseID, total ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePurchaseTotalLocked(purchaseID, total)
}

func (m *Memory) updatePurchaseTotalLocked(purchaseID ledger.PurchaseID, total ledger.Money) error {
	p, ok := m.purchases[purchaseID]
	if !ok {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(purchaseID)}
	}
	p.TotalValue = total
	m.purchases[purchaseID] = p
	return nil
}

func (m *Memory) MarkInstallmentPaid(_ context.Context, id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markInstallmentPaidLocked(id, at, method)
}

func (m *Memory) markInstallmentPaidLocked(id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	return m.mutateInstallment(id, func(inst *ledger.Installment) {
		paidAt := at
		inst.PaidAt = &paidAt
		inst.Method = method
		inst.Status = ledger.StatusPaid
	})
}

func (m *Memory) DeleteInstallment(_ context.Context, id ledger.InstallmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteInstallmentLocked(id)
}

func (m *Memory) deleteInstallmentLocked(id ledger.InstallmentID) error {
	for pid, p := range m.purchases {
		for i := range p.Installments {
			if p.Installments[i].ID == id {
				p.Installments = append(p.Installments[:i], p.Installments[i+1:]...)
				m.purchases[pid] = p
				return nil
			}
		}
	}
	return &ledger.NotFoundError{Kind: "installment", ID: string(id)}
}

func (m *Memory) UpdateInstallmentStatus(_ context.Context, id ledger.InstallmentID, status ledger.InstallmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutateInstallment(id, func(inst *ledger.Installment) { inst.Status = status })
}

func (m *Memory) mutateInstallment(id ledger.InstallmentID, fn func(*ledger.Installment)) error {
	for pid, p := range m.purchases {
		for i := range p.Installments {
			if p.Installments[i].ID == id {
				cp := copyPurchase(p)
				fn(&cp.Installments[i])
				m.purchases[pid] = cp
				return nil
			}
		}
	}
	return &ledger.NotFoundError{Kind: "installment", ID: string(id)}
}

func (m *Memory) ListUnpaidInstallments(_ context.Context) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Installment
	for _, p := range m.purchases {
		for _, inst := range p.Installments {
			if !inst.Paid() {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (m *Memory) InsertPayment(_ context.Context, p ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) InsertRelative(_ context.Context, r ledger.Relative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relatives[r.ID] = r
	return nil
}

// =============================================================================
// INVENTORY STORE (inventory.Store interface)
// =============================================================================

func (m *Memory) UpsertProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) GetProductByName(_ context.Context, name string) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProductByNameLocked(name)
}

func (m *Memory) getProductByNameLocked(name string) (*inventory.Product, error) {
	for _, p := range m.products {
		if strings.EqualFold(p.Name, name) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]inventory.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) AdjustQuantity(_ context.Context, id inventory.ProductID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustQuantityLocked(id, delta)
}

func (m *Memory) adjustQuantityLocked(id inventory.ProductID, delta int) (int, error) {
	p, ok := m.products[id]
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	p.Quantity += delta
	m.products[id] = p
	return p.Quantity, nil
}

func (m *Memory) AppendMovement(_ context.Context, mv inventory.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements[mv.ID] = mv
	return nil
}

func (m *Memory) GetMovement(_ context.Context, productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getMovementLocked(productID, movementID)
}

func (m *Memory) getMovementLocked(productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	mv, ok := m.movements[movementID]
	if !ok || mv.ProductID != productID {
		return nil, nil
	}
	return &mv, nil
}

func (m *Memory) DeleteMovement(_ context.Context, productID inventory.ProductID, movementID inventory.MovementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteMovementLocked(productID, movementID)
}

func (m *Memory) deleteMovementLocked(productID inventory.ProductID, movementID inventory.MovementID) error {
	mv, ok := m.movements[movementID]
	if !ok || mv.ProductID != productID {
		return inventory.ErrMovementNotFound
	}
	delete(m.movements, movementID)
	return nil
}

func (m *Memory) ListMovements(_ context.Context, productID inventory.ProductID) ([]inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []inventory.Movement
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx simulates a transaction with snapshot + rollback on error.
// The store mutex is held for the whole unit of work, which also
// serializes check-then-decrement against the same product.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store, inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view, view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	clients   map[ledger.ClientID]ledger.Client
	purchases map[ledger.PurchaseID]ledger.Purchase
	payments  map[ledger.PaymentID]ledger.Payment
	relatives map[ledger.RelativeID]ledger.Relative
	products  map[inventory.ProductID]inventory.Product
	movements map[inventory.MovementID]inventory.Movement
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		clients:   make(map[ledger.ClientID]ledger.Client, len(m.clients)),
		purchases: make(map[ledger.PurchaseID]ledger.Purchase, len(m.purchases)),
		payments:  make(map[ledger.PaymentID]ledger.Payment, len(m.payments)),
		relatives: make(map[ledger.RelativeID]ledger.Relative, len(m.relatives)),
		products:  make(map[inventory.ProductID]inventory.Product, len(m.products)),
		movements: make(map[inventory.MovementID]inventory.Movement, len(m.movements)),
	}
	for k, v := range m.clients {
		s.clients[k] = v
	}
	for k, v := range m.purchases {
		s.purchases[k] = copyPurchase(v)
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.relatives {
		s.relatives[k] = v
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.movements {
		s.movements[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.clients = s.clients
	m.purchases = s.purchases
	m.payments = s.payments
	m.relatives = s.relatives
	m.products = s.products
	m.movements = s.movements
}

// txView operates on the parent's maps without re-locking; the parent
// holds its mutex for the duration of WithTx.
type txView struct {
	parent *Memory
}

func (tv *txView) SaveClient(_ context.Context, c ledger.Client) error {
	return tv.parent.saveClientLocked(c)
}

func (tv *txView) GetClient(_ context.Context, id ledger.ClientID) (*ledger.Client, error) {
	return tv.parent.getClientLocked(id)
}

func (tv *txView) ListClients(_ context.Context) ([]ledger.Client, error) {
	var out []ledger.Client
	for id := range tv.parent.clients {
		c, _ := tv.parent.getClientLocked(id)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tv *txView) DeleteClient(_ context.Context, id ledger.ClientID) error {
	return tv.parent.deleteClientLocked(id)
}

func (tv *txView) InsertPurchase(_ context.Context, p ledger.Purchase) error {
	tv.parent.purchases[p.ID] = copyPurchase(p)
	return nil
}

func (tv *txView) GetPurchase(_ context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	return tv.parent.getPurchaseLocked(clientID, purchaseID)
}

func (tv *txView) DeletePurchase(_ context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	return tv.parent.deletePurchaseLocked(clientID, purchaseID)
}

func (tv *txView) UpdatePurchaseTotal(_ context.Context, purchaseID ledger.PurchaseID, total ledger.Money) error {
	return tv.parent.updatePurchaseTotalLocked(purchaseID, total)
}

func (tv *txView) MarkInstallmentPaid(_ context.Context, id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	return tv.parent.markInstallmentPaidLocked(id, at, method)
}

func (tv *txView) DeleteInstallment(_ context.Context, id ledger.InstallmentID) error {
	return tv.parent.deleteInstallmentLocked(id)
}

func (tv *txView) UpdateInstallmentStatus(_ context.Context, id ledger.InstallmentID, status ledger.InstallmentStatus) error {
	return tv.parent.mutateInstallment(id, func(inst *ledger.Installment) { inst.Status = status })
}

func (tv *txView) ListUnpaidInstallments(_ context.Context) ([]ledger.Installment, error) {
	var out []ledger.Installment
	for _, p := range tv.parent.purchases {
		for _, inst := range p.Installments {
			if !inst.Paid() {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (tv *txView) InsertPayment(_ context.Context, p ledger.Payment) error {
	tv.parent.payments[p.ID] = p
	return nil
}

func (tv *txView) InsertRelative(_ context.Context, r ledger.Relative) error {
	tv.parent.relatives[r.ID] = r
	return nil
}

func (tv *txView) UpsertProduct(_ context.Context, p inventory.Product) error {
	tv.parent.products[p.ID] = p
	return nil
}

func (tv *txView) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	p, ok := tv.parent.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tv *txView) GetProductByName(_ context.Context, name string) (*inventory.Product, error) {
	return tv.parent.getProductByNameLocked(name)
}

func (tv *txView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	out := make([]inventory.Product, 0, len(tv.parent.products))
	for _, p := range tv.parent.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tv *txView) AdjustQuantity(_ context.Context, id inventory.ProductID, delta int) (int, error) {
	return tv.parent.adjustQuantityLocked(id, delta)
}

func (tv *txView) AppendMovement(_ context.Context, mv inventory.Movement) error {
	tv.parent.movements[mv.ID] = mv
	return nil
}

func (tv *txView) GetMovement(_ context.Context, productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	return tv.parent.getMovementLocked(productID, movementID)
}

func (tv *txView) DeleteMovement(_ context.Context, productID inventory.ProductID, movementID inventory.MovementID) error {
	return tv.parent.deleteMovementLocked(productID, movementID)
}

func (tv *txView) ListMovements(_ context.Context, productID inventory.ProductID) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range tv.parent.movements {
		if mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// copyPurchase deep-copies the installment slice so callers never
// share backing arrays with the store.
func copyPurchase(p ledger.Purchase) ledger.Purchase {
	cp := p
	cp.Installments = make([]ledger.Installment, len(p.Installments))
	copy(cp.Installments, p.Installments)
	return cp
}
