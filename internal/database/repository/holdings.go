package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

type NewHolding struct {
	AccountID    string
	SecurityID   string
	Units        float64
	AvgCost      float64
	PurchaseDate *string
	Note         *string
}

type HoldingPatch struct {
	AccountID    *string
	SecurityID   *string
	Units        *float64
	AvgCost      *float64
	PurchaseDate Nullable[string]
	Note         Nullable[string]
}

func (p HoldingPatch) assignments() assignments {
	var as assignments
	if p.AccountID != nil {
		as = as.add("account_id", *p.AccountID)
	}
	if p.SecurityID != nil {
		as = as.add("security_id", *p.SecurityID)
	}
	if p.Units != nil {
		as = as.add("units", *p.Units)
	}
	if p.AvgCost != nil {
		as = as.add("avg_cost", *p.AvgCost)
	}
	if p.PurchaseDate.set {
		as = as.add("purchase_date", p.PurchaseDate.arg())
	}
	if p.Note.set {
		as = as.add("note", p.Note.arg())
	}
	return as
}

// HoldingRepo handles holdings.
type HoldingRepo struct {
	db DBTX
}

func NewHoldingRepo(db DBTX) *HoldingRepo { return &HoldingRepo{db: db} }

const holdingColumns = `id, account_id, security_id, units, avg_cost, purchase_date, note, created_at, updated_at`

func scanHolding(s scanner, extra ...any) (Holding, error) {
	var h Holding
	dest := append([]any{&h.ID, &h.AccountID, &h.SecurityID, &h.Units, &h.AvgCost, &h.PurchaseDate, &h.Note,
		&h.CreatedAt, &h.UpdatedAt}, extra...)
	err := s.Scan(dest...)
	return h, err
}

func (r *HoldingRepo) Create(ctx context.Context, in NewHolding) (*Holding, error) {
	id := database.NewID()
	now := database.Timestamp()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO holdings(id, account_id, security_id, units, avg_cost, purchase_date, note, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.AccountID, in.SecurityID, in.Units, in.AvgCost, nullable(in.PurchaseDate), nullable(in.Note), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert holding: %w", err)
	}
	h, err := r.GetByID(ctx, id)
	return mustGet(h, err, "holding", id)
}

func (r *HoldingRepo) Update(ctx context.Context, id string, p HoldingPatch) (*Holding, error) {
	if err := update(ctx, r.db, "holdings", id, p.assignments(), true); err != nil {
		return nil, err
	}
	h, err := r.GetByID(ctx, id)
	return mustGet(h, err, "holding", id)
}

func (r *HoldingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	return err
}

func (r *HoldingRepo) GetByID(ctx context.Context, id string) (*Holding, error) {
	h, err := scanHolding(r.db.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListByAccount returns the account's holdings with their security, valued at
// the last price or, without one, at average cost. Largest positions first.
func (r *HoldingRepo) ListByAccount(ctx context.Context, accountID string) ([]HoldingWithSecurity, error) {
	return r.listValued(ctx, `WHERE h.account_id = ?`, accountID)
}

// ListAll returns every holding, valued and ordered like ListByAccount.
func (r *HoldingRepo) ListAll(ctx context.Context) ([]HoldingWithSecurity, error) {
	return r.listValued(ctx, ``)
}

func (r *HoldingRepo) listValued(ctx context.Context, where string, args ...any) ([]HoldingWithSecurity, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT h.id, h.account_id, h.security_id, h.units, h.avg_cost, h.purchase_date, h.note, h.created_at, h.updated_at,
	       s.name, s.symbol, s.type, s.last_price,
	       (h.units * COALESCE(s.last_price, h.avg_cost)) AS market_value
	FROM holdings h
	JOIN securities s ON s.id = h.security_id
	`+where+`
	ORDER BY market_value DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HoldingWithSecurity
	for rows.Next() {
		var hs HoldingWithSecurity
		h, err := scanHolding(rows, &hs.SecurityName, &hs.Symbol, &hs.SecurityType, &hs.LastPrice, &hs.MarketValue)
		if err != nil {
			return nil, err
		}
		hs.Holding = h
		out = append(out, hs)
	}
	return out, rows.Err()
}
