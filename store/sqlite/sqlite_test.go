package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) ledger.Money {
	m, err := ledger.ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedClient(t *testing.T, s *Store, id ledger.ClientID) {
	t.Helper()
	require.NoError(t, s.SaveClient(context.Background(), ledger.Client{
		ID:        id,
		Name:      "Maria Silva",
		Phone:     "555-0101",
		CreatedAt: date(2024, time.January, 1),
	}))
}

func seedPurchase(t *testing.T, s *Store, clientID ledger.ClientID, purchaseID ledger.PurchaseID) ledger.Purchase {
	t.Helper()
	installments, err := ledger.Schedule(money("100.00"), 3, 30, date(2024, time.June, 1))
	require.NoError(t, err)
	p := ledger.Purchase{
		ID:           purchaseID,
		ClientID:     clientID,
		Item:         "dress",
		TotalValue:   money("100.00"),
		CreatedAt:    date(2024, time.May, 15),
		Installments: installments,
	}
	for i := range p.Installments {
		p.Installments[i].PurchaseID = p.ID
	}
	require.NoError(t, s.InsertPurchase(context.Background(), p))
	return p
}

// =============================================================================
// CLIENT ROUNDTRIP AND CASCADE
// =============================================================================

func TestStore_ClientRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	seedPurchase(t, s, "c-1", "p-1")
	require.NoError(t, s.InsertPayment(ctx, ledger.Payment{
		ID: "pay-1", ClientID: "c-1", Amount: money("30.00"),
		Date: date(2024, time.June, 2), Method: ledger.MethodPix,
	}))
	require.NoError(t, s.InsertRelative(ctx, ledger.Relative{
		ID: "r-1", ClientID: "c-1", Name: "Ana",
		BirthDate: date(2010, time.March, 5), Relationship: "daughter",
	}))

	c, err := s.GetClient(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "Maria Silva", c.Name)
	require.Len(t, c.Purchases, 1)
	require.Len(t, c.Purchases[0].Installments, 3)
	assert.Equal(t, "33.34", c.Purchases[0].Installments[2].Value.String())
	require.Len(t, c.Payments, 1)
	assert.Equal(t, "30.00", c.Payments[0].Amount.String())
	require.Len(t, c.Relatives, 1)
	assert.Equal(t, "Ana", c.Relatives[0].Name)
}

func TestStore_GetClient_Missing(t *testing.T) {
	s := newTestStore(t)

	c, err := s.GetClient(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestStore_DeleteClient_CascadesEverything(t *testing.T) {
	// Foreign keys must carry the delete down to purchases,
	// installments, payments, and relatives.

	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	seedPurchase(t, s, "c-1", "p-1")
	require.NoError(t, s.InsertPayment(ctx, ledger.Payment{
		ID: "pay-1", ClientID: "c-1", Amount: money("30.00"),
		Date: date(2024, time.June, 2), Method: ledger.MethodPix,
	}))

	require.NoError(t, s.DeleteClient(ctx, "c-1"))

	c, err := s.GetClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, c)

	unpaid, err := s.ListUnpaidInstallments(ctx)
	require.NoError(t, err)
	assert.Empty(t, unpaid, "installments must not survive their client")
}

// =============================================================================
// INSTALLMENT STATE
// =============================================================================

func TestStore_MarkInstallmentPaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	p := seedPurchase(t, s, "c-1", "p-1")

	paidAt := date(2024, time.June, 3)
	require.NoError(t, s.MarkInstallmentPaid(ctx, p.Installments[0].ID, paidAt, ledger.MethodCash))

	got, err := s.GetPurchase(ctx, "c-1", "p-1")
	require.NoError(t, err)
	inst := got.Installments[0]
	require.NotNil(t, inst.PaidAt)
	assert.True(t, inst.PaidAt.Equal(paidAt))
	assert.Equal(t, ledger.MethodCash, inst.Method)
	assert.Equal(t, ledger.StatusPaid, inst.Status)

	// Paying again is rejected at the store level.
	err = s.MarkInstallmentPaid(ctx, p.Installments[0].ID, paidAt, ledger.MethodCash)
	require.Error(t, err)

	unpaid, err := s.ListUnpaidInstallments(ctx)
	require.NoError(t, err)
	assert.Len(t, unpaid, 2)
}

func TestStore_DeleteInstallment_AndUpdateTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	p := seedPurchase(t, s, "c-1", "p-1")

	require.NoError(t, s.DeleteInstallment(ctx, p.Installments[1].ID))
	require.NoError(t, s.UpdatePurchaseTotal(ctx, "p-1", money("66.67")))

	got, err := s.GetPurchase(ctx, "c-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "66.67", got.TotalValue.String())
	require.Len(t, got.Installments, 2)
	assert.Equal(t, 1, got.Installments[0].Number)
	assert.Equal(t, 3, got.Installments[1].Number, "numbering gap preserved")
}

func TestStore_MalformedDueDate_DegradesNotFails(t *testing.T) {
	// GIVEN: A stored installment whose due date is garbage
	// WHEN: The purchase is read
	// THEN: The read succeeds; the record is flagged and keeps its last
	//       known status

	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	p := seedPurchase(t, s, "c-1", "p-1")

	_, err := s.db.Exec("UPDATE installments SET due_date = 'not-a-date', status = 'overdue' WHERE id = ?",
		p.Installments[0].ID)
	require.NoError(t, err)

	got, err := s.GetPurchase(ctx, "c-1", "p-1")
	require.NoError(t, err, "a malformed record must not fail the read")

	inst := got.Installments[0]
	assert.True(t, inst.BadDueDate)
	assert.Equal(t, ledger.StatusOverdue, inst.Status, "last known status preserved")

	// The untouched siblings are unaffected.
	assert.False(t, got.Installments[1].BadDueDate)
}

// =============================================================================
// INVENTORY SIDE
// =============================================================================

func TestStore_ProductAndMovements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, inventory.Product{
		ID: "prod-1", Name: "Perfume", Quantity: 10, CreatedAt: date(2024, time.January, 1),
	}))

	// Lookup is case-insensitive.
	p, err := s.GetProductByName(ctx, "PERFUME")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 10, p.Quantity)

	qty, err := s.AdjustQuantity(ctx, "prod-1", -3)
	require.NoError(t, err)
	assert.Equal(t, 7, qty)

	require.NoError(t, s.AppendMovement(ctx, inventory.Movement{
		ID: "m-1", ProductID: "prod-1", Type: inventory.MovementSale,
		Quantity: 3, At: date(2024, time.June, 1),
		RefClientID: "c-1", RefPurchaseID: "p-1",
	}))

	movements, err := s.ListMovements(ctx, "prod-1")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "p-1", movements[0].RefPurchaseID)

	require.NoError(t, s.DeleteMovement(ctx, "prod-1", "m-1"))
	err = s.DeleteMovement(ctx, "prod-1", "m-1")
	assert.ErrorIs(t, err, inventory.ErrMovementNotFound)
}

func TestStore_AdjustQuantity_UnknownProduct(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AdjustQuantity(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A unit of work that decrements stock and inserts a
	//        purchase, then fails
	// THEN: Neither effect survives

	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")
	require.NoError(t, s.UpsertProduct(ctx, inventory.Product{
		ID: "prod-1", Name: "Perfume", Quantity: 10, CreatedAt: date(2024, time.January, 1),
	}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ls ledger.Store, is inventory.Store) error {
		if _, err := is.AdjustQuantity(ctx, "prod-1", -4); err != nil {
			return err
		}
		if err := ls.InsertPurchase(ctx, ledger.Purchase{
			ID: "p-1", ClientID: "c-1", Item: "Perfume",
			TotalValue: money("40.00"), CreatedAt: date(2024, time.June, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Quantity, "stock decrement rolled back")

	purchase, err := s.GetPurchase(ctx, "c-1", "p-1")
	require.NoError(t, err)
	assert.Nil(t, purchase, "purchase insert rolled back")
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "c-1")

	err := s.WithTx(ctx, func(ls ledger.Store, _ inventory.Store) error {
		return ls.InsertPayment(ctx, ledger.Payment{
			ID: "pay-1", ClientID: "c-1", Amount: money("10.00"),
			Date: date(2024, time.June, 1), Method: ledger.MethodPix,
		})
	})
	require.NoError(t, err)

	c, err := s.GetClient(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, c.Payments, 1)
}
