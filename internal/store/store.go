package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row does not exist or belongs to another owner
var ErrNotFound = errors.New("record not found")

// Queries holds every statement the service runs. It is bound either to the
// connection pool (Store) or to an open transaction (Tx).
type Queries struct {
	q sqlx.ExtContext
}

type Store struct {
	*Queries
	db *sqlx.DB
}

// Tx is a unit of work. Nothing it writes is visible until RunInTx returns nil.
type Tx struct {
	*Queries
	tx *sqlx.Tx
}

// NewStore creates a new database store and applies the schema
func NewStore(driver, databaseURL string) (*Store, error) {
	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite has a single writer; queueing in the pool avoids SQLITE_BUSY
		// between concurrent transactions.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{Queries: &Queries{q: db}, db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside a transaction. The transaction commits only if fn
// returns nil; any error, including a business rejection, rolls it back.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{Queries: &Queries{q: tx}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema for the connected dialect
func (s *Store) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.db.DriverName() == "sqlite3" {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

// CreateWarehouse inserts a warehouse
func (q *Queries) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	w.CreatedAt = now()
	query := q.q.Rebind(`
		INSERT INTO warehouses (owner_id, name, created_at)
		VALUES (?, ?, ?)
		RETURNING id`)

	return sqlx.GetContext(ctx, q.q, &w.ID, query, w.OwnerID, w.Name, w.CreatedAt)
}

// GetWarehouse retrieves a warehouse owned by ownerID
func (q *Queries) GetWarehouse(ctx context.Context, ownerID, id int64) (*models.Warehouse, error) {
	var w models.Warehouse
	err := sqlx.GetContext(ctx, q.q, &w,
		q.q.Rebind("SELECT id, owner_id, name, created_at FROM warehouses WHERE id = ? AND owner_id = ?"),
		id, ownerID)
	if err != nil {
		return nil, notFound(err, "warehouse", id)
	}
	return &w, nil
}

const productColumns = `id, owner_id, warehouse_id, name, quantity, cost_price, selling_price, archived_at, created_at, updated_at`

// CreateProduct inserts a product
func (q *Queries) CreateProduct(ctx context.Context, p *models.Product) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	query := q.q.Rebind(`
		INSERT INTO products (owner_id, warehouse_id, name, quantity, cost_price, selling_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	return sqlx.GetContext(ctx, q.q, &p.ID, query,
		p.OwnerID, p.WarehouseID, p.Name, p.Quantity, p.CostPrice, p.SellingPrice, p.CreatedAt, p.UpdatedAt)
}

// GetProduct retrieves a product owned by ownerID
func (q *Queries) GetProduct(ctx context.Context, ownerID, id int64) (*models.Product, error) {
	var p models.Product
	err := sqlx.GetContext(ctx, q.q, &p,
		q.q.Rebind("SELECT "+productColumns+" FROM products WHERE id = ? AND owner_id = ?"),
		id, ownerID)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

// GetProducts retrieves all products of an owner
func (q *Queries) GetProducts(ctx context.Context, ownerID int64) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.q, &products,
		q.q.Rebind("SELECT "+productColumns+" FROM products WHERE owner_id = ? ORDER BY id"), ownerID)
	return products, err
}

// GetProductsByIDs retrieves multiple products of one owner, ordered by id
func (q *Queries) GetProductsByIDs(ctx context.Context, ownerID int64, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE owner_id = ? AND id IN (?) ORDER BY id", ownerID, ids)
	if err != nil {
		return nil, err
	}
	query = q.q.Rebind(query)

	var products []models.Product
	err = sqlx.SelectContext(ctx, q.q, &products, query, args...)
	return products, err
}

// GetQuantity reads the current on-hand quantity of a product
func (q *Queries) GetQuantity(ctx context.Context, productID int64) (int, error) {
	var quantity int
	err := sqlx.GetContext(ctx, q.q, &quantity,
		q.q.Rebind("SELECT quantity FROM products WHERE id = ?"), productID)
	if err != nil {
		return 0, notFound(err, "product", productID)
	}
	return quantity, nil
}

// DecrementStock removes quantity from on-hand stock only if enough is left.
// It reports false, without error, when the product has less than quantity.
func (q *Queries) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := q.q.ExecContext(ctx,
		q.q.Rebind("UPDATE products SET quantity = quantity - ?, updated_at = ? WHERE id = ? AND quantity >= ?"),
		quantity, now(), productID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// IncrementStock adds quantity to on-hand stock
func (q *Queries) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := q.q.ExecContext(ctx,
		q.q.Rebind("UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ?"),
		quantity, now(), productID)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// ArchiveProduct withdraws a product from sale. History is kept.
func (q *Queries) ArchiveProduct(ctx context.Context, productID int64) (time.Time, error) {
	at := now()
	_, err := q.q.ExecContext(ctx,
		q.q.Rebind("UPDATE products SET archived_at = ?, updated_at = ? WHERE id = ? AND archived_at IS NULL"),
		at, at, productID)
	return at, err
}
