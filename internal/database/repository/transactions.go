package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jask/arkark/internal/database"
)

// NewTransaction is the input of TransactionRepo.Create.
type NewTransaction struct {
	Type        TransactionType
	Amount      float64
	Currency    string // defaults to DefaultCurrency
	AccountID   string
	ToAccountID *string // required iff Type is TxTransfer
	CategoryID  *string
	Note        *string
	Date        string
	Time        *string
	Tags        []string
	ReceiptURI  *string
	IsRecurring bool
	Recurrence  *string
}

// TransactionPatch lists the updatable transaction columns.
type TransactionPatch struct {
	Type        *TransactionType
	Amount      *float64
	Currency    *string
	AccountID   *string
	ToAccountID Nullable[string]
	CategoryID  Nullable[string]
	Note        Nullable[string]
	Date        *string
	Time        Nullable[string]
	Tags        Nullable[[]string]
	ReceiptURI  Nullable[string]
	IsRecurring *bool
	Recurrence  Nullable[string]
	SyncedAt    Nullable[string]
}

func (p TransactionPatch) assignments() (assignments, error) {
	var as assignments
	if p.Type != nil {
		as = as.add("type", string(*p.Type))
	}
	if p.Amount != nil {
		if !validAmount(*p.Amount) {
			return nil, fmt.Errorf("%w: amount %v", ErrInvalidTransaction, *p.Amount)
		}
		as = as.add("amount", *p.Amount)
	}
	if p.Currency != nil {
		as = as.add("currency", *p.Currency)
	}
	if p.AccountID != nil {
		as = as.add("account_id", *p.AccountID)
	}
	if p.ToAccountID.set {
		as = as.add("to_account_id", p.ToAccountID.arg())
	}
	if p.CategoryID.set {
		as = as.add("category_id", p.CategoryID.arg())
	}
	if p.Note.set {
		as = as.add("note", p.Note.arg())
	}
	if p.Date != nil {
		as = as.add("date", *p.Date)
	}
	if p.Time.set {
		as = as.add("time", p.Time.arg())
	}
	if p.Tags.set {
		var tags []string
		if p.Tags.val != nil {
			tags = *p.Tags.val
		}
		enc, err := encodeTags(tags)
		if err != nil {
			return nil, err
		}
		as = as.add("tags", enc)
	}
	if p.ReceiptURI.set {
		as = as.add("receipt_uri", p.ReceiptURI.arg())
	}
	if p.IsRecurring != nil {
		as = as.add("is_recurring", boolInt(*p.IsRecurring))
	}
	if p.Recurrence.set {
		as = as.add("recurrence", p.Recurrence.arg())
	}
	if p.SyncedAt.set {
		as = as.add("synced_at", p.SyncedAt.arg())
	}
	return as, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate checks the amount and the transfer destination rule.
func (in NewTransaction) Validate() error {
	if !validAmount(in.Amount) {
		return fmt.Errorf("%w: amount %v", ErrInvalidTransaction, in.Amount)
	}
	hasDest := in.ToAccountID != nil && *in.ToAccountID != ""
	if in.Type == TxTransfer && !hasDest {
		return fmt.Errorf("%w: transfer without destination account", ErrInvalidTransaction)
	}
	if in.Type != TxTransfer && hasDest {
		return fmt.Errorf("%w: %s with destination account", ErrInvalidTransaction, in.Type)
	}
	return nil
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, type, amount, currency, account_id, to_account_id, category_id, note, date, time,
	tags, receipt_uri, is_recurring, recurrence, synced_at, created_at, updated_at`

func scanTransaction(s scanner) (Transaction, error) {
	var (
		t    Transaction
		tags sql.NullString
	)
	err := s.Scan(&t.ID, &t.Type, &t.Amount, &t.Currency, &t.AccountID, &t.ToAccountID, &t.CategoryID, &t.Note,
		&t.Date, &t.Time, &tags, &t.ReceiptURI, &t.IsRecurring, &t.Recurrence, &t.SyncedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			return t, fmt.Errorf("decode tags of %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// encodeTags stores an empty list as NULL.
func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Create validates and inserts a transaction.
func (r *TransactionRepo) Create(ctx context.Context, in NewTransaction) (*Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	id := database.NewID()
	now := database.Timestamp()
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, type, amount, currency, account_id, to_account_id, category_id, note, date, time,
	 tags, receipt_uri, is_recurring, recurrence, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(in.Type), in.Amount, currency, in.AccountID, nullable(in.ToAccountID), nullable(in.CategoryID),
		nullable(in.Note), in.Date, nullable(in.Time), tags, nullable(in.ReceiptURI), boolInt(in.IsRecurring),
		nullable(in.Recurrence), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	t, err := r.GetByID(ctx, id)
	return mustGet(t, err, "transaction", id)
}

// Update applies p. The transfer destination rule is not rechecked here.
func (r *TransactionRepo) Update(ctx context.Context, id string, p TransactionPatch) (*Transaction, error) {
	as, err := p.assignments()
	if err != nil {
		return nil, err
	}
	if err := update(ctx, r.db, "transactions", id, as, true); err != nil {
		return nil, err
	}
	t, err := r.GetByID(ctx, id)
	return mustGet(t, err, "transaction", id)
}

func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByDate returns transactions dated within [start, end], both YYYY-MM-DD.
func (r *TransactionRepo) ListByDate(ctx context.Context, start, end string, page Page) ([]Transaction, error) {
	page = page.normalized()
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE date >= ? AND date <= ?
	ORDER BY date DESC, time DESC LIMIT ? OFFSET ?`, start, end, page.Limit, page.Offset)
}

// ListByAccount returns transactions where the account is source or destination.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID string, page Page) ([]Transaction, error) {
	page = page.normalized()
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE account_id = ? OR to_account_id = ?
	ORDER BY date DESC, time DESC LIMIT ? OFFSET ?`, accountID, accountID, page.Limit, page.Offset)
}

// Exists reports whether a transaction with the same account, date, type,
// amount and note is already stored.
func (r *TransactionRepo) Exists(ctx context.Context, in NewTransaction) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM transactions
	WHERE account_id = ? AND date = ? AND type = ? AND amount = ? AND COALESCE(note, '') = ?`,
		in.AccountID, in.Date, string(in.Type), in.Amount, derefString(in.Note)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// All returns every transaction ordered oldest first.
func (r *TransactionRepo) All(ctx context.Context) ([]Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date, time, created_at`)
}

func (r *TransactionRepo) query(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
