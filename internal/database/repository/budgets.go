package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jask/arkark/internal/database"
)

type NewBudget struct {
	CategoryID *string // nil budgets the whole month
	Amount     float64
	Period     BudgetPeriod
	StartDate  string
}

type BudgetPatch struct {
	CategoryID Nullable[string]
	Amount     *float64
	Period     *BudgetPeriod
	StartDate  *string
}

func (p BudgetPatch) assignments() assignments {
	var as assignments
	if p.CategoryID.set {
		as = as.add("category_id", p.CategoryID.arg())
	}
	if p.Amount != nil {
		as = as.add("amount", *p.Amount)
	}
	if p.Period != nil {
		as = as.add("period", string(*p.Period))
	}
	if p.StartDate != nil {
		as = as.add("start_date", *p.StartDate)
	}
	return as
}

// BudgetRepo handles budgets.
type BudgetRepo struct {
	db DBTX
}

func NewBudgetRepo(db DBTX) *BudgetRepo { return &BudgetRepo{db: db} }

const budgetColumns = `id, category_id, amount, period, start_date, created_at`

func scanBudget(s scanner, extra ...any) (Budget, error) {
	var b Budget
	dest := append([]any{&b.ID, &b.CategoryID, &b.Amount, &b.Period, &b.StartDate, &b.CreatedAt}, extra...)
	err := s.Scan(dest...)
	return b, err
}

func (r *BudgetRepo) Create(ctx context.Context, in NewBudget) (*Budget, error) {
	id := database.NewID()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO budgets(id, category_id, amount, period, start_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		id, nullable(in.CategoryID), in.Amount, string(in.Period), in.StartDate, database.Timestamp())
	if err != nil {
		return nil, fmt.Errorf("insert budget: %w", err)
	}
	b, err := r.GetByID(ctx, id)
	return mustGet(b, err, "budget", id)
}

// Update applies p. Budgets have no updated_at column, so nothing is stamped.
func (r *BudgetRepo) Update(ctx context.Context, id string, p BudgetPatch) (*Budget, error) {
	if err := update(ctx, r.db, "budgets", id, p.assignments(), false); err != nil {
		return nil, err
	}
	b, err := r.GetByID(ctx, id)
	return mustGet(b, err, "budget", id)
}

func (r *BudgetRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	return err
}

func (r *BudgetRepo) GetByID(ctx context.Context, id string) (*Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByCategory returns the category's budgets, newest start first.
func (r *BudgetRepo) ListByCategory(ctx context.Context, categoryID string) ([]Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE category_id = ? ORDER BY start_date DESC`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Active returns budgets started on or before asOf with the expenses booked
// to their category since the first of asOf's month. Budgets without a
// category report zero spent.
func (r *BudgetRepo) Active(ctx context.Context, asOf time.Time) ([]BudgetWithSpent, error) {
	day := asOf.Format(time.DateOnly)
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
	rows, err := r.db.QueryContext(ctx, `
	SELECT b.id, b.category_id, b.amount, b.period, b.start_date, b.created_at,
	       c.name, COALESCE(spent.total, 0), b.amount - COALESCE(spent.total, 0)
	FROM budgets b
	LEFT JOIN categories c ON c.id = b.category_id
	LEFT JOIN (
	  SELECT category_id, SUM(amount) AS total
	  FROM transactions
	  WHERE type = 'expense' AND date >= ?
	  GROUP BY category_id
	) spent ON spent.category_id = b.category_id
	WHERE b.start_date <= ?
	ORDER BY b.amount DESC`, monthStart, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetWithSpent
	for rows.Next() {
		var bw BudgetWithSpent
		b, err := scanBudget(rows, &bw.CategoryName, &bw.Spent, &bw.Remaining)
		if err != nil {
			return nil, err
		}
		bw.Budget = b
		out = append(out, bw)
	}
	return out, rows.Err()
}
