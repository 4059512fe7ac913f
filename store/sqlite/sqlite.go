/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.TxStore and inventory.Store over one database so a
  single transaction can span client records and stock. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  clients:       Client identity, owner of everything below
  purchases:     Sales/debts, FK to clients ON DELETE CASCADE
  installments:  FK to purchases ON DELETE CASCADE; status column is a
                 cached label only, derivation is the source of truth
  payments:      FK to clients ON DELETE CASCADE
  relatives:     FK to clients ON DELETE CASCADE
  products:      Stock catalog, name unique case-insensitively
  movements:     Stock movement history, FK to products

CASCADES:
  Deleting a client removes its purchases, installments, payments, and
  relatives in one statement via foreign keys. Nothing a client owns
  survives the client.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for
  the whole unit of work, which also serializes check-then-decrement
  against the same product.

DEGRADATION:
  Installment due dates are stored as text. A malformed value does not
  fail the scan: the record comes back with BadDueDate set and its last
  known status, and derivation surfaces the integrity warning.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on,
  so readers don't block and cascades actually fire.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/client-ledger/inventory"
	"github.com/warp/client-ledger/ledger"
)

// Store implements ledger.TxStore and inventory.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and a pooled
	// ":memory:" database would otherwise be a fresh DB per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		item TEXT NOT NULL,
		total_value TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_client ON purchases(client_id);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		value TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_at TEXT,
		method TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_installments_purchase ON installments(purchase_id);
	CREATE INDEX IF NOT EXISTS idx_installments_unpaid ON installments(status) WHERE paid_at IS NULL;

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		method TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id);

	CREATE TABLE IF NOT EXISTS relatives (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		relationship TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_relatives_client ON relatives(client_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_name ON products(LOWER(name));

	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		at TEXT NOT NULL,
		ref_client_id TEXT,
		ref_purchase_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_movements_product ON movements(product_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CLIENT STORE (ledger.Store interface)
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c ledger.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveClient(ctx, s.db, c)
}

func saveClient(ctx context.Context, q dbtx, c ledger.Client) error {
	query := `
		INSERT INTO clients (id, name, phone, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			notes = excluded.notes
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, c.Notes, c.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetClient(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getClient(ctx, s.db, id)
}

func getClient(ctx context.Context, q dbtx, id ledger.ClientID) (*ledger.Client, error) {
	var c ledger.Client
	var createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, name, phone, notes, created_at FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if c.Purchases, err = loadPurchases(ctx, q, id); err != nil {
		return nil, err
	}
	if c.Payments, err = loadPayments(ctx, q, id); err != nil {
		return nil, err
	}
	if c.Relatives, err = loadRelatives(ctx, q, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listClients(ctx, s.db)
}

func listClients(ctx context.Context, q dbtx) ([]ledger.Client, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM clients ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ledger.ClientID
	for rows.Next() {
		var id ledger.ClientID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var clients []ledger.Client
	for _, id := range ids {
		c, err := getClient(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			clients = append(clients, *c)
		}
	}
	return clients, nil
}

func (s *Store) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteClient(ctx, s.db, id)
}

func deleteClient(ctx context.Context, q dbtx, id ledger.ClientID) error {
	// Foreign keys cascade to purchases, installments, payments, relatives.
	_, err := q.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	return err
}

// =============================================================================
// PURCHASE STORE
// =============================================================================

func (s *Store) InsertPurchase(ctx context.Context, p ledger.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertPurchase(ctx, sqlTx, p); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func insertPurchase(ctx context.Context, q dbtx, p ledger.Purchase) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO purchases (id, client_id, item, total_value, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.ClientID, p.Item, p.TotalValue.String(), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	for _, inst := range p.Installments {
		_, err := q.ExecContext(ctx,
			`INSERT INTO installments (id, purchase_id, number, due_date, value, status, paid_at, method)
			 VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`,
			inst.ID, p.ID, inst.Number,
			inst.DueDate.UTC().Format(time.RFC3339),
			inst.Value.String(), inst.Status)
		if err != nil {
			return fmt.Errorf("failed to insert installment: %w", err)
		}
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPurchase(ctx, s.db, clientID, purchaseID)
}

func getPurchase(ctx context.Context, q dbtx, clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	var p ledger.Purchase
	var total, createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, client_id, item, total_value, created_at FROM purchases WHERE id = ? AND client_id = ?",
		purchaseID, clientID,
	).Scan(&p.ID, &p.ClientID, &p.Item, &total, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.TotalValue = ledger.MustParseMoney(total)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if p.Installments, err = loadInstallments(ctx, q, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DeletePurchase(ctx context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePurchase(ctx, s.db, clientID, purchaseID)
}

func deletePurchase(ctx context.Context, q dbtx, clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	res, err := q.ExecContext(ctx,
		"DELETE FROM purchases WHERE id = ? AND client_id = ?", purchaseID, clientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(purchaseID)}
	}
	return nil
}

func (s *Store) UpdatePurchaseTotal(ctx context.Context, purchaseID ledger.PurchaseID, total ledger.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePurchaseTotal(ctx, s.db, purchaseID, total)
}

func updatePurchaseTotal(ctx context.Context, q dbtx, purchaseID ledger.PurchaseID, total ledger.Money) error {
	res, err := q.ExecContext(ctx,
		"UPDATE purchases SET total_value = ? WHERE id = ?", total.String(), purchaseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(purchaseID)}
	}
	return nil
}

func loadPurchases(ctx context.Context, q dbtx, clientID ledger.ClientID) ([]ledger.Purchase, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, client_id, item, total_value, created_at FROM purchases WHERE client_id = ? ORDER BY created_at ASC",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []ledger.Purchase
	for rows.Next() {
		var p ledger.Purchase
		var total, createdAt string
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Item, &total, &createdAt); err != nil {
			return nil, err
		}
		p.TotalValue = ledger.MustParseMoney(total)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		if purchases[i].Installments, err = loadInstallments(ctx, q, purchases[i].ID); err != nil {
			return nil, err
		}
	}
	return purchases, nil
}

// =============================================================================
// INSTALLMENT STORE
// =============================================================================

func loadInstallments(ctx context.Context, q dbtx, purchaseID ledger.PurchaseID) ([]ledger.Installment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, purchase_id, number, due_date, value, status, paid_at, method
		 FROM installments WHERE purchase_id = ? ORDER BY number ASC`,
		purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []ledger.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func scanInstallment(rows *sql.Rows) (ledger.Installment, error) {
	var inst ledger.Installment
	var dueDate, value, status string
	var paidAt, method sql.NullString

	err := rows.Scan(&inst.ID, &inst.PurchaseID, &inst.Number, &dueDate, &value, &status, &paidAt, &method)
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}

	inst.Value = ledger.MustParseMoney(value)
	inst.Status = ledger.InstallmentStatus(status)

	// A malformed due date must not fail the read. The record comes
	// back flagged and keeps its last known status; derivation
	// surfaces the integrity warning.
	t, perr := time.Parse(time.RFC3339, dueDate)
	if perr != nil {
		inst.BadDueDate = true
	} else {
		inst.DueDate = t
	}

	if paidAt.Valid {
		pt, perr := time.Parse(time.RFC3339, paidAt.String)
		if perr == nil {
			inst.PaidAt = &pt
		}
	}
	if method.Valid {
		inst.Method = ledger.PaymentMethod(method.String)
	}
	return inst, nil
}

func (s *Store) MarkInstallmentPaid(ctx context.Context, id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markInstallmentPaid(ctx, s.db, id, at, method)
}

func markInstallmentPaid(ctx context.Context, q dbtx, id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	res, err := q.ExecContext(ctx,
		"UPDATE installments SET paid_at = ?, method = ?, status = ? WHERE id = ? AND paid_at IS NULL",
		at.UTC().Format(time.RFC3339), string(method), ledger.StatusPaid, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "installment", ID: string(id)}
	}
	return nil
}

func (s *Store) DeleteInstallment(ctx context.Context, id ledger.InstallmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteInstallment(ctx, s.db, id)
}

func deleteInstallment(ctx context.Context, q dbtx, id ledger.InstallmentID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM installments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "installment", ID: string(id)}
	}
	return nil
}

func (s *Store) UpdateInstallmentStatus(ctx context.Context, id ledger.InstallmentID, status ledger.InstallmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateInstallmentStatus(ctx, s.db, id, status)
}

func updateInstallmentStatus(ctx context.Context, q dbtx, id ledger.InstallmentID, status ledger.InstallmentStatus) error {
	// The sweep refreshes labels for unpaid records only.
	_, err := q.ExecContext(ctx,
		"UPDATE installments SET status = ? WHERE id = ? AND paid_at IS NULL",
		status, id)
	return err
}

func (s *Store) ListUnpaidInstallments(ctx context.Context) ([]ledger.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listUnpaidInstallments(ctx, s.db)
}

func listUnpaidInstallments(ctx context.Context, q dbtx) ([]ledger.Installment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, purchase_id, number, due_date, value, status, paid_at, method
		 FROM installments WHERE paid_at IS NULL ORDER BY due_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []ledger.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// =============================================================================
// PAYMENT / RELATIVE STORE
// =============================================================================

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, q dbtx, p ledger.Payment) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO payments (id, client_id, amount, date, method) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.ClientID, p.Amount.String(), p.Date.UTC().Format(time.RFC3339), string(p.Method))
	return err
}

func loadPayments(ctx context.Context, q dbtx, clientID ledger.ClientID) ([]ledger.Payment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, client_id, amount, date, method FROM payments WHERE client_id = ? ORDER BY date ASC",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		var amount, date, method string
		if err := rows.Scan(&p.ID, &p.ClientID, &amount, &date, &method); err != nil {
			return nil, err
		}
		p.Amount = ledger.MustParseMoney(amount)
		p.Date, _ = time.Parse(time.RFC3339, date)
		p.Method = ledger.PaymentMethod(method)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Store) InsertRelative(ctx context.Context, r ledger.Relative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRelative(ctx, s.db, r)
}

func insertRelative(ctx context.Context, q dbtx, r ledger.Relative) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO relatives (id, client_id, name, birth_date, relationship) VALUES (?, ?, ?, ?, ?)",
		r.ID, r.ClientID, r.Name, r.BirthDate.UTC().Format(time.RFC3339), r.Relationship)
	return err
}

func loadRelatives(ctx context.Context, q dbtx, clientID ledger.ClientID) ([]ledger.Relative, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, client_id, name, birth_date, relationship FROM relatives WHERE client_id = ? ORDER BY name ASC",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relatives []ledger.Relative
	for rows.Next() {
		var r ledger.Relative
		var birthDate string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Name, &birthDate, &r.Relationship); err != nil {
			return nil, err
		}
		r.BirthDate, _ = time.Parse(time.RFC3339, birthDate)
		relatives = append(relatives, r)
	}
	return relatives, rows.Err()
}

// =============================================================================
// INVENTORY STORE (inventory.Store interface)
// =============================================================================

func (s *Store) UpsertProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertProduct(ctx, s.db, p)
}

func upsertProduct(ctx context.Context, q dbtx, p inventory.Product) error {
	query := `
		INSERT INTO products (id, name, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			quantity = excluded.quantity
	`
	_, err := q.ExecContext(ctx, query,
		p.ID, p.Name, p.Quantity, p.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, q dbtx, id inventory.ProductID) (*inventory.Product, error) {
	return scanProductRow(q.QueryRowContext(ctx,
		"SELECT id, name, quantity, created_at FROM products WHERE id = ?", id))
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProductByName(ctx, s.db, name)
}

func getProductByName(ctx context.Context, q dbtx, name string) (*inventory.Product, error) {
	return scanProductRow(q.QueryRowContext(ctx,
		"SELECT id, name, quantity, created_at FROM products WHERE LOWER(name) = LOWER(?)", name))
}

func scanProductRow(row *sql.Row) (*inventory.Product, error) {
	var p inventory.Product
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db)
}

func listProducts(ctx context.Context, q dbtx) ([]inventory.Product, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, quantity, created_at FROM products ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []inventory.Product
	for rows.Next() {
		var p inventory.Product
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) AdjustQuantity(ctx context.Context, id inventory.ProductID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adjustQuantity(ctx, s.db, id, delta)
}

func adjustQuantity(ctx context.Context, q dbtx, id inventory.ProductID, delta int) (int, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + ? WHERE id = ?", delta, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, inventory.ErrProductNotFound
	}

	var qty int
	err = q.QueryRowContext(ctx, "SELECT quantity FROM products WHERE id = ?", id).Scan(&qty)
	return qty, err
}

func (s *Store) AppendMovement(ctx context.Context, m inventory.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendMovement(ctx, s.db, m)
}

func appendMovement(ctx context.Context, q dbtx, m inventory.Movement) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO movements (id, product_id, type, quantity, at, ref_client_id, ref_purchase_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, string(m.Type), m.Quantity,
		m.At.UTC().Format(time.RFC3339), m.RefClientID, m.RefPurchaseID)
	return err
}

func (s *Store) GetMovement(ctx context.Context, productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMovement(ctx, s.db, productID, movementID)
}

func getMovement(ctx context.Context, q dbtx, productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	var m inventory.Movement
	var typ, at string
	err := q.QueryRowContext(ctx,
		`SELECT id, product_id, type, quantity, at, ref_client_id, ref_purchase_id
		 FROM movements WHERE id = ? AND product_id = ?`,
		movementID, productID,
	).Scan(&m.ID, &m.ProductID, &typ, &m.Quantity, &at, &m.RefClientID, &m.RefPurchaseID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Type = inventory.MovementType(typ)
	m.At, _ = time.Parse(time.RFC3339, at)
	return &m, nil
}

func (s *Store) DeleteMovement(ctx context.Context, productID inventory.ProductID, movementID inventory.MovementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteMovement(ctx, s.db, productID, movementID)
}

func deleteMovement(ctx context.Context, q dbtx, productID inventory.ProductID, movementID inventory.MovementID) error {
	res, err := q.ExecContext(ctx,
		"DELETE FROM movements WHERE id = ? AND product_id = ?", movementID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return inventory.ErrMovementNotFound
	}
	return nil
}

func (s *Store) ListMovements(ctx context.Context, productID inventory.ProductID) ([]inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMovements(ctx, s.db, productID)
}

func listMovements(ctx context.Context, q dbtx, productID inventory.ProductID) ([]inventory.Movement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, type, quantity, at, ref_client_id, ref_purchase_id
		 FROM movements WHERE product_id = ? ORDER BY at ASC`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []inventory.Movement
	for rows.Next() {
		var m inventory.Movement
		var typ, at string
		if err := rows.Scan(&m.ID, &m.ProductID, &typ, &m.Quantity, &at, &m.RefClientID, &m.RefPurchaseID); err != nil {
			return nil, err
		}
		m.Type = inventory.MovementType(typ)
		m.At, _ = time.Parse(time.RFC3339, at)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn against tx-scoped ledger and inventory stores.
// The write lock is held for the whole unit of work, so concurrent
// sales against the same product serialize here.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store, inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txStore{tx: sqlTx}
	if err := fn(view, view); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every operation through the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveClient(ctx context.Context, c ledger.Client) error {
	return saveClient(ctx, ts.tx, c)
}

func (ts *txStore) GetClient(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	return getClient(ctx, ts.tx, id)
}

func (ts *txStore) ListClients(ctx context.Context) ([]ledger.Client, error) {
	return listClients(ctx, ts.tx)
}

func (ts *txStore) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	return deleteClient(ctx, ts.tx, id)
}

func (ts *txStore) InsertPurchase(ctx context.Context, p ledger.Purchase) error {
	return insertPurchase(ctx, ts.tx, p)
}

func (ts *txStore) GetPurchase(ctx context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) (*ledger.Purchase, error) {
	return getPurchase(ctx, ts.tx, clientID, purchaseID)
}

func (ts *txStore) DeletePurchase(ctx context.Context, clientID ledger.ClientID, purchaseID ledger.PurchaseID) error {
	return deletePurchase(ctx, ts.tx, clientID, purchaseID)
}

func (ts *txStore) UpdatePurchaseTotal(ctx context.Context, purchaseID ledger.PurchaseID, total ledger.Money) error {
	return updatePurchaseTotal(ctx, ts.tx, purchaseID, total)
}

func (ts *txStore) MarkInstallmentPaid(ctx context.Context, id ledger.InstallmentID, at time.Time, method ledger.PaymentMethod) error {
	return markInstallmentPaid(ctx, ts.tx, id, at, method)
}

func (ts *txStore) DeleteInstallment(ctx context.Context, id ledger.InstallmentID) error {
	return deleteInstallment(ctx, ts.tx, id)
}

func (ts *txStore) UpdateInstallmentStatus(ctx context.Context, id ledger.InstallmentID, status ledger.InstallmentStatus) error {
	return updateInstallmentStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) ListUnpaidInstallments(ctx context.Context) ([]ledger.Installment, error) {
	return listUnpaidInstallments(ctx, ts.tx)
}

func (ts *txStore) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) InsertRelative(ctx context.Context, r ledger.Relative) error {
	return insertRelative(ctx, ts.tx, r)
}

func (ts *txStore) UpsertProduct(ctx context.Context, p inventory.Product) error {
	return upsertProduct(ctx, ts.tx, p)
}

func (ts *txStore) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	return getProduct(ctx, ts.tx, id)
}

func (ts *txStore) GetProductByName(ctx context.Context, name string) (*inventory.Product, error) {
	return getProductByName(ctx, ts.tx, name)
}

func (ts *txStore) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return listProducts(ctx, ts.tx)
}

func (ts *txStore) AdjustQuantity(ctx context.Context, id inventory.ProductID, delta int) (int, error) {
	return adjustQuantity(ctx, ts.tx, id, delta)
}

func (ts *txStore) AppendMovement(ctx context.Context, m inventory.Movement) error {
	return appendMovement(ctx, ts.tx, m)
}

func (ts *txStore) GetMovement(ctx context.Context, productID inventory.ProductID, movementID inventory.MovementID) (*inventory.Movement, error) {
	return getMovement(ctx, ts.tx, productID, movementID)
}

func (ts *txStore) DeleteMovement(ctx context.Context, productID inventory.ProductID, movementID inventory.MovementID) error {
	return deleteMovement(ctx, ts.tx, productID, movementID)
}

func (ts *txStore) ListMovements(ctx context.Context, productID inventory.ProductID) ([]inventory.Movement, error) {
	return listMovements(ctx, ts.tx, productID)
}
