package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"voucher-storefront/internal/model"
)

const transactionColumns = `id, reference_id, transaction_id, customer_id, type, product_code, product_name, amount, status,
	qr_string, payment_order_id, payment_code, payment_url, details, expiry_time, created_at, updated_at`

// TransactionRepository handles database operations for checkout transactions
type TransactionRepository struct {
	db     *sql.DB
	driver string
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, driver string) *TransactionRepository {
	return &TransactionRepository{db: db, driver: driver}
}

// Insert saves a new transaction
func (r *TransactionRepository) Insert(ctx context.Context, t *model.Transaction) error {
	details, err := encodeDetails(t.Details)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	var expiry sql.NullTime
	if t.ExpiryTime != nil {
		expiry = sql.NullTime{Time: t.ExpiryTime.UTC(), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, r.q(`
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		t.ID, t.ReferenceID, t.TransactionID, t.CustomerID, string(t.Type), t.ProductCode, t.ProductName,
		t.Amount, string(t.Status), t.QRString, t.PaymentOrderID, t.PaymentCode, t.PaymentURL,
		details, expiry, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return err
}

// Get gets a transaction by id. Returns nil when it does not exist.
func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
}

// GetByReference gets a transaction by its checkout reference id
func (r *TransactionRepository) GetByReference(ctx context.Context, referenceID string) (*model.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference_id = ?`, referenceID)
}

// UpdateStatus moves a pending transaction to status and replaces its
// details. Returns false when the transaction is missing or no longer pending.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, details map[string]any) (bool, error) {
	encoded, err := encodeDetails(details)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE transactions
		SET status = ?, details = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`), string(status), encoded, time.Now().UTC(), id, string(model.StatusPending))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRecent returns the newest transactions first
func (r *TransactionRepository) ListRecent(ctx context.Context, limit int) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// Count returns total number of transactions
func (r *TransactionRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

func (r *TransactionRepository) getOne(ctx context.Context, query string, arg any) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, r.q(query), arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		t       model.Transaction
		typ     string
		status  string
		details string
		expiry  sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.ReferenceID,
		&t.TransactionID,
		&t.CustomerID,
		&typ,
		&t.ProductCode,
		&t.ProductName,
		&t.Amount,
		&status,
		&t.QRString,
		&t.PaymentOrderID,
		&t.PaymentCode,
		&t.PaymentURL,
		&details,
		&expiry,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = model.ProductType(typ)
	t.Status = model.TransactionStatus(status)
	if expiry.Valid {
		e := expiry.Time
		t.ExpiryTime = &e
	}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &t.Details); err != nil {
			return nil, fmt.Errorf("failed to decode details of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func encodeDetails(details map[string]any) (string, error) {
	if details == nil {
		return "{}", nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode details: %w", err)
	}
	return string(b), nil
}

func (r *TransactionRepository) q(query string) string {
	return rebind(r.driver, query)
}
