package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
	"github.com/warp/client-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService() (*ledger.Service, *store.Memory) {
	mem := store.NewMemory()
	svc := ledger.NewService(mem, zerolog.Nop())
	return svc, mem
}

// fixedClock pins "now" so due-date comparisons are deterministic.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func registerClient(t *testing.T, svc *ledger.Service) ledger.Client {
	t.Helper()
	c, err := svc.RegisterClient(context.Background(), "Maria Silva", "555-0101", "")
	require.NoError(t, err)
	return c
}

func createProduct(t *testing.T, svc *ledger.Service, name string, qty int) inventory.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), name, qty)
	require.NoError(t, err)
	return p
}

func findMovement(t *testing.T, movements []inventory.Movement, typ inventory.MovementType) inventory.Movement {
	t.Helper()
	for _, m := range movements {
		if m.Type == typ {
			return m
		}
	}
	t.Fatalf("no %s movement found", typ)
	return inventory.Movement{}
}

// =============================================================================
// CLIENT LIFECYCLE
// =============================================================================

func TestService_RegisterAndGetClient(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", view.Name)
	assert.True(t, view.Balance.IsZero())
}

func TestService_GetClient_Unknown(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetClient(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestService_DeleteClient_CascadesOwnedRecords(t *testing.T) {
	// GIVEN: A client with a purchase, a payment, and a relative
	// WHEN: The client is deleted
	// THEN: Every owned record goes with it

	svc, mem := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	_, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), nil)
	require.NoError(t, err)
	_, err = svc.RegisterPayment(ctx, c.ID, money("20.00"), ledger.MethodPix)
	require.NoError(t, err)
	_, err = svc.AddRelative(ctx, c.ID, "Ana", date(2010, time.March, 5), "daughter")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteClient(ctx, c.ID))

	got, err := mem.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	unpaid, err := mem.ListUnpaidInstallments(ctx)
	require.NoError(t, err)
	assert.Empty(t, unpaid, "installments must not survive their client")
}

// =============================================================================
// PURCHASES AND INSTALLMENT PLANS
// =============================================================================

func TestService_RegisterPurchase_WithSplit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	p, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), &ledger.SplitSpec{
		Count:        3,
		IntervalDays: 30,
		FirstDue:     date(2024, time.January, 1),
	})
	require.NoError(t, err)
	require.Len(t, p.Installments, 3)
	assert.Equal(t, "33.34", p.Installments[2].Value.String())

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", view.Balance.String())
}

func TestService_RegisterPurchase_UnknownClientRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RegisterPurchase(context.Background(), "nope", "dress", money("50.00"), nil)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// DEBTS AND STOCK COUPLING
// =============================================================================

func TestService_RegisterDebt_DecrementsStock(t *testing.T) {
	svc, mem := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	createProduct(t, svc, "Perfume", 10)

	p, err := svc.RegisterDebt(ctx, c.ID, "Perfume", 3, money("25.00"))
	require.NoError(t, err)
	assert.Equal(t, "75.00", p.TotalValue.String())
	require.Len(t, p.Installments, 1, "a debt carries one implicit installment")

	product, err := mem.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	assert.Equal(t, 7, product.Quantity)

	movements, err := mem.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2) // initial stock-in + sale
	sale := findMovement(t, movements, inventory.MovementSale)
	assert.Equal(t, string(c.ID), sale.RefClientID)
	assert.Equal(t, string(p.ID), sale.RefPurchaseID)
}

func TestService_RegisterDebt_InsufficientStock_NothingChanges(t *testing.T) {
	// GIVEN: 2 units in stock
	// WHEN: A debt for 5 units is registered
	// THEN: The operation is rejected, stock is untouched, and no
	//       purchase exists on the client

	svc, mem := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	createProduct(t, svc, "Perfume", 2)

	_, err := svc.RegisterDebt(ctx, c.ID, "Perfume", 5, money("25.00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	product, err := mem.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Quantity, "stock must be untouched")

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Purchases, "no purchase may survive the rollback")
	assert.True(t, view.Balance.IsZero())
}

func TestService_RegisterDebt_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()
	c := registerClient(t, svc)

	_, err := svc.RegisterDebt(context.Background(), c.ID, "Ghost", 1, money("10.00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestService_RegisterPayment_ReducesBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	_, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), nil)
	require.NoError(t, err)

	_, err = svc.RegisterPayment(ctx, c.ID, money("40.00"), ledger.MethodCash)
	require.NoError(t, err)

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", view.Balance.String())
}

func TestService_RegisterPayment_OverpaymentIsStoreCredit(t *testing.T) {
	// Overpayment is accepted and drives the balance negative.

	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	_, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("50.00"), nil)
	require.NoError(t, err)

	_, err = svc.RegisterPayment(ctx, c.ID, money("80.00"), ledger.MethodPix)
	require.NoError(t, err)

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "-30.00", view.Balance.String())
}

func TestService_RegisterPayment_RejectsBadInput(t *testing.T) {
	svc, _ := newTestService()
	c := registerClient(t, svc)
	ctx := context.Background()

	_, err := svc.RegisterPayment(ctx, c.ID, money("0.00"), ledger.MethodPix)
	assert.True(t, ledger.IsClientError(err), "zero amount must be rejected")

	_, err = svc.RegisterPayment(ctx, c.ID, money("10.00"), ledger.MethodNone)
	assert.True(t, ledger.IsClientError(err), "the none sentinel must never be persisted")

	_, err = svc.RegisterPayment(ctx, c.ID, money("10.00"), ledger.PaymentMethod("Barter"))
	assert.True(t, ledger.IsClientError(err))
}

// =============================================================================
// INSTALLMENT PAYMENT
// =============================================================================

func TestService_PayInstallment_SettlesAndRecordsPayment(t *testing.T) {
	// GIVEN: An installment of 50.00 due yesterday (derived overdue)
	// WHEN: It is paid
	// THEN: It becomes paid, a matching 50.00 payment appears, and the
	//       balance reconciles

	svc, _ := newTestService()
	ctx := context.Background()
	svc.Clock = fixedClock(date(2024, time.June, 16))

	c := registerClient(t, svc)
	p, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), &ledger.SplitSpec{
		Count:        2,
		IntervalDays: 30,
		FirstDue:     date(2024, time.June, 15),
	})
	require.NoError(t, err)

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOverdue, view.Purchases[0].Installments[0].Status)

	paid, err := svc.PayInstallment(ctx, c.ID, p.ID, p.Installments[0].ID, ledger.MethodPix)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, ledger.MethodPix, paid.Method)

	view, err = svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, view.Payments, 1)
	assert.Equal(t, "50.00", view.Payments[0].Amount.String())
	assert.Equal(t, "50.00", view.Balance.String())
}

func TestService_PayInstallment_AlreadyPaidIsConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	p, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), nil)
	require.NoError(t, err)

	_, err = svc.PayInstallment(ctx, c.ID, p.ID, p.Installments[0].ID, ledger.MethodCash)
	require.NoError(t, err)

	_, err = svc.PayInstallment(ctx, c.ID, p.ID, p.Installments[0].ID, ledger.MethodCash)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
}

// =============================================================================
// INSTALLMENT CANCELLATION
// =============================================================================

func TestService_CancelInstallment_ShrinksTotalAndKeepsGap(t *testing.T) {
	// GIVEN: A 90.00 purchase in 3 installments
	// WHEN: Installment #2 is canceled
	// THEN: The total drops by its value, the remaining numbers keep
	//       their gap, and the sum invariant holds

	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	p, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("90.00"), &ledger.SplitSpec{
		Count:        3,
		IntervalDays: 30,
		FirstDue:     date(2024, time.June, 1),
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelInstallment(ctx, c.ID, p.ID, p.Installments[1].ID))

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	got := view.Purchases[0]
	assert.Equal(t, "60.00", got.TotalValue.String())
	require.Len(t, got.Installments, 2)
	assert.Equal(t, 1, got.Installments[0].Number)
	assert.Equal(t, 3, got.Installments[1].Number, "numbering gap is the audit trail")

	sum := ledger.ZeroMoney()
	for _, inst := range got.Installments {
		sum = sum.Add(inst.Value)
	}
	assert.True(t, sum.Equal(got.TotalValue))
}

func TestService_CancelInstallment_PaidIsConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	p, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), nil)
	require.NoError(t, err)
	_, err = svc.PayInstallment(ctx, c.ID, p.ID, p.Installments[0].ID, ledger.MethodCash)
	require.NoError(t, err)

	err = svc.CancelInstallment(ctx, c.ID, p.ID, p.Installments[0].ID)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err), "money already changed hands")
}

// =============================================================================
// MOVEMENT REVERSAL
// =============================================================================

func TestService_ReverseSale_RestoresStockAndRemovesDebt(t *testing.T) {
	svc, mem := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	createProduct(t, svc, "Perfume", 10)
	_, err := svc.RegisterDebt(ctx, c.ID, "Perfume", 3, money("25.00"))
	require.NoError(t, err)

	product, err := mem.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	movements, err := mem.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	sale := findMovement(t, movements, inventory.MovementSale)

	require.NoError(t, svc.ReverseMovement(ctx, product.ID, sale.ID))

	product, err = mem.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	assert.Equal(t, 10, product.Quantity, "units restored")

	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Purchases, "linked debt removed")
	assert.True(t, view.Balance.IsZero())

	movements, err = mem.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1, "the reversed movement is gone from history")
}

func TestService_ReversePurchaseIn_MayGoNegative(t *testing.T) {
	// Reversing a stock-in after units were sold legally drives the
	// quantity negative; the discrepancy is logged, not blocked.

	svc, mem := newTestService()
	ctx := context.Background()

	c := registerClient(t, svc)
	createProduct(t, svc, "Perfume", 5)
	_, err := svc.RegisterDebt(ctx, c.ID, "Perfume", 3, money("25.00"))
	require.NoError(t, err)

	product, err := mem.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	movements, err := mem.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	stockIn := findMovement(t, movements, inventory.MovementPurchase)

	require.NoError(t, svc.ReverseMovement(ctx, product.ID, stockIn.ID))

	product, err = mem.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, -3, product.Quantity)

	// The client's debt is untouched: only sale reversals touch the ledger.
	view, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, view.Purchases, 1)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestService_CreateProduct_DuplicateNameIsConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	createProduct(t, svc, "Perfume", 5)

	_, err := svc.CreateProduct(ctx, "perfume", 1)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err), "names are unique case-insensitively")
}

func TestService_StockIn_AppendsPurchaseMovement(t *testing.T) {
	svc, mem := newTestService()
	ctx := context.Background()

	p := createProduct(t, svc, "Perfume", 5)
	m, err := svc.StockIn(ctx, "Perfume", 7)
	require.NoError(t, err)
	assert.Equal(t, inventory.MovementPurchase, m.Type)

	product, err := mem.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, product.Quantity)
}

// =============================================================================
// STATUS SWEEP
// =============================================================================

func TestService_RefreshStatuses_MarksOverdueOnly(t *testing.T) {
	// GIVEN: Two unpaid installments, one past due and one future
	// WHEN: The sweep runs
	// THEN: Only the past-due one flips to overdue, nothing is paid

	svc, _ := newTestService()
	ctx := context.Background()
	svc.Clock = fixedClock(date(2024, time.June, 16))

	c := registerClient(t, svc)
	_, err := svc.RegisterPurchase(ctx, c.ID, "dress", money("100.00"), &ledger.SplitSpec{
		Count:        2,
		IntervalDays: 60,
		FirstDue:     date(2024, time.June, 15),
	})
	require.NoError(t, err)

	report, err := svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Warnings)

	// Idempotent: a second sweep at the same instant changes nothing.
	report, err = svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)
}
