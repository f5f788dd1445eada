package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

type NewSecurity struct {
	Symbol    string
	Name      string
	Type      SecurityType
	Currency  string
	LastPrice *float64
}

// SecurityRepo handles securities. Symbols are unique.
type SecurityRepo struct {
	db DBTX
}

func NewSecurityRepo(db DBTX) *SecurityRepo { return &SecurityRepo{db: db} }

const securityColumns = `id, symbol, name, type, currency, last_price, price_updated, created_at`

func scanSecurity(s scanner) (Security, error) {
	var sec Security
	err := s.Scan(&sec.ID, &sec.Symbol, &sec.Name, &sec.Type, &sec.Currency, &sec.LastPrice, &sec.PriceUpdated, &sec.CreatedAt)
	return sec, err
}

func (r *SecurityRepo) Create(ctx context.Context, in NewSecurity) (*Security, error) {
	id := database.NewID()
	now := database.Timestamp()
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	var priceUpdated any
	if in.LastPrice != nil {
		priceUpdated = now
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO securities(id, symbol, name, type, currency, last_price, price_updated, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Symbol, in.Name, string(in.Type), currency, nullable(in.LastPrice), priceUpdated, now)
	if err != nil {
		return nil, fmt.Errorf("insert security: %w", err)
	}
	s, err := r.GetByID(ctx, id)
	return mustGet(s, err, "security", id)
}

func (r *SecurityRepo) GetByID(ctx context.Context, id string) (*Security, error) {
	return r.get(ctx, `SELECT `+securityColumns+` FROM securities WHERE id = ?`, id)
}

func (r *SecurityRepo) GetBySymbol(ctx context.Context, symbol string) (*Security, error) {
	return r.get(ctx, `SELECT `+securityColumns+` FROM securities WHERE symbol = ?`, symbol)
}

func (r *SecurityRepo) get(ctx context.Context, query string, arg string) (*Security, error) {
	s, err := scanSecurity(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SecurityRepo) List(ctx context.Context) ([]Security, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+securityColumns+` FROM securities ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdatePrice records the latest known price; asOf is an ISO timestamp.
func (r *SecurityRepo) UpdatePrice(ctx context.Context, id string, price float64, asOf string) (*Security, error) {
	as := assignments{}.add("last_price", price).add("price_updated", asOf)
	if err := update(ctx, r.db, "securities", id, as, false); err != nil {
		return nil, err
	}
	s, err := r.GetByID(ctx, id)
	return mustGet(s, err, "security", id)
}
