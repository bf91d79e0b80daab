package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voucher-storefront/internal/model"
)

const productColumns = `id, type, name, operator, description, amount, details, base_price, selling_price, active, created_at, updated_at`

// ProductRepository handles database operations for catalog products
type ProductRepository struct {
	db     *sql.DB
	driver string
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, driver string) *ProductRepository {
	return &ProductRepository{db: db, driver: driver}
}

// ListAll returns every product, active or not
func (r *ProductRepository) ListAll(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListActiveByType returns active products of one type, cheapest first
func (r *ProductRepository) ListActiveByType(ctx context.Context, t model.ProductType) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+productColumns+`
		FROM products
		WHERE type = ? AND active = ?
		ORDER BY selling_price ASC, id ASC
	`), string(t), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Get gets a product by id. Returns nil when it does not exist.
func (r *ProductRepository) Get(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Count returns the number of stored products
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// Insert stores a new product
func (r *ProductRepository) Insert(ctx context.Context, p model.Product) error {
	_, err := r.db.ExecContext(ctx, r.q(insertProductSQL), productArgs(p, time.Now().UTC())...)
	return err
}

// InsertAll stores products in a single transaction
func (r *ProductRepository) InsertAll(ctx context.Context, products []model.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.q(insertProductSQL))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		now := time.Now().UTC()
		if _, err := stmt.ExecContext(ctx, productArgs(p, now)...); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Update overwrites the synced fields of an existing product and marks it active
func (r *ProductRepository) Update(ctx context.Context, p model.Product) error {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE products
		SET name = ?, description = ?, operator = ?, amount = ?, details = ?,
			base_price = ?, selling_price = ?, active = ?, updated_at = ?
		WHERE id = ?
	`),
		p.Name, p.Description, nullString(p.Operator), nullInt(p.Amount), p.Details,
		p.BasePrice, p.SellingPrice, true, time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s not found", p.ID)
	}
	return nil
}

const insertProductSQL = `
	INSERT INTO products (` + productColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func productArgs(p model.Product, now time.Time) []any {
	created, updated := p.CreatedAt, p.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	return []any{
		p.ID, string(p.Type), p.Name, nullString(p.Operator), p.Description, nullInt(p.Amount),
		p.Details, p.BasePrice, p.SellingPrice, p.Active, created.UTC(), updated.UTC(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var (
		p        model.Product
		typ      string
		operator sql.NullString
		amount   sql.NullInt64
	)
	err := row.Scan(
		&p.ID,
		&typ,
		&p.Name,
		&operator,
		&p.Description,
		&amount,
		&p.Details,
		&p.BasePrice,
		&p.SellingPrice,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Type = model.ProductType(typ)
	if operator.Valid {
		p.Operator = &operator.String
	}
	if amount.Valid {
		p.Amount = &amount.Int64
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]model.Product, error) {
	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) q(query string) string {
	return rebind(r.driver, query)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
