package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

// NewAccount is the input of AccountRepo.Create.
type NewAccount struct {
	Name        string
	Type        AccountType
	Currency    string // defaults to DefaultCurrency
	Institution *string
	Icon        *string
	Color       *string
	SortOrder   int
}

// AccountPatch lists the updatable account columns.
type AccountPatch struct {
	Name        *string
	Type        *AccountType
	Currency    *string
	Institution Nullable[string]
	Icon        Nullable[string]
	Color       Nullable[string]
	SortOrder   *int
	IsArchived  *bool
}

func (p AccountPatch) assignments() assignments {
	var as assignments
	if p.Name != nil {
		as = as.add("name", *p.Name)
	}
	if p.Type != nil {
		as = as.add("type", string(*p.Type))
	}
	if p.Currency != nil {
		as = as.add("currency", *p.Currency)
	}
	if p.Institution.set {
		as = as.add("institution", p.Institution.arg())
	}
	if p.Icon.set {
		as = as.add("icon", p.Icon.arg())
	}
	if p.Color.set {
		as = as.add("color", p.Color.arg())
	}
	if p.SortOrder != nil {
		as = as.add("sort_order", *p.SortOrder)
	}
	if p.IsArchived != nil {
		as = as.add("is_archived", boolInt(*p.IsArchived))
	}
	return as
}

// ListAccountsOptions filters AccountRepo.List.
type ListAccountsOptions struct {
	IncludeArchived bool
}

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, name, type, currency, institution, icon, color, is_archived, sort_order, created_at, updated_at`

func scanAccount(s scanner) (Account, error) {
	var a Account
	err := s.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &a.Institution, &a.Icon, &a.Color,
		&a.IsArchived, &a.SortOrder, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *AccountRepo) Create(ctx context.Context, in NewAccount) (*Account, error) {
	id := database.NewID()
	now := database.Timestamp()
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, name, type, currency, institution, icon, color, sort_order, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, string(in.Type), currency, nullable(in.Institution), nullable(in.Icon), nullable(in.Color),
		in.SortOrder, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	a, err := r.GetByID(ctx, id)
	return mustGet(a, err, "account", id)
}

// Update applies the non-empty fields of p. An empty patch returns the
// current row untouched.
func (r *AccountRepo) Update(ctx context.Context, id string, p AccountPatch) (*Account, error) {
	if err := update(ctx, r.db, "accounts", id, p.assignments(), true); err != nil {
		return nil, err
	}
	a, err := r.GetByID(ctx, id)
	return mustGet(a, err, "account", id)
}

// Archive hides the account from default listings and balance views. It
// reports ErrNotFound for an unknown id.
func (r *AccountRepo) Archive(ctx context.Context, id string) error {
	return update(ctx, r.db, "accounts", id, assignments{}.add("is_archived", 1), true)
}

func (r *AccountRepo) List(ctx context.Context, opts ListAccountsOptions) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if !opts.IncludeArchived {
		query += ` WHERE is_archived = 0`
	}
	query += ` ORDER BY sort_order, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetByID returns nil when the account does not exist.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByName returns the first account with the given name, archived or not.
func (r *AccountRepo) GetByName(ctx context.Context, name string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ? ORDER BY created_at LIMIT 1`, name)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListBalances reads v_account_balances ordered by sort order and name.
func (r *AccountRepo) ListBalances(ctx context.Context) ([]AccountBalance, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT b.id, b.name, b.type, b.currency, b.institution, b.icon, b.color,
	       b.balance, b.transaction_count, b.last_transaction_date
	FROM v_account_balances b
	JOIN accounts a ON a.id = b.id
	ORDER BY a.sort_order, a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.ID, &b.Name, &b.Type, &b.Currency, &b.Institution, &b.Icon, &b.Color,
			&b.Balance, &b.TransactionCount, &b.LastTransactionDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
