package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

type NewInsurancePolicy struct {
	AccountID    string
	PolicyName   string
	Insurer      *string
	Type         *InsuranceType
	Premium      *float64
	PremiumFreq  *PremiumFrequency
	SumAssured   *float64
	CashValue    *float64
	LinkedFundID *string
	StartDate    *string
	MaturityDate *string
}

type InsurancePatch struct {
	AccountID    *string
	PolicyName   *string
	Insurer      Nullable[string]
	Type         Nullable[InsuranceType]
	Premium      Nullable[float64]
	PremiumFreq  Nullable[PremiumFrequency]
	SumAssured   Nullable[float64]
	CashValue    Nullable[float64]
	LinkedFundID Nullable[string]
	StartDate    Nullable[string]
	MaturityDate Nullable[string]
}

func (p InsurancePatch) assignments() assignments {
	var as assignments
	if p.AccountID != nil {
		as = as.add("account_id", *p.AccountID)
	}
	if p.PolicyName != nil {
		as = as.add("policy_name", *p.PolicyName)
	}
	if p.Insurer.set {
		as = as.add("insurer", p.Insurer.arg())
	}
	if p.Type.set {
		as = as.add("type", enumArg(p.Type.val))
	}
	if p.Premium.set {
		as = as.add("premium", p.Premium.arg())
	}
	if p.PremiumFreq.set {
		as = as.add("premium_freq", enumArg(p.PremiumFreq.val))
	}
	if p.SumAssured.set {
		as = as.add("sum_assured", p.SumAssured.arg())
	}
	if p.CashValue.set {
		as = as.add("cash_value", p.CashValue.arg())
	}
	if p.LinkedFundID.set {
		as = as.add("linked_fund_id", p.LinkedFundID.arg())
	}
	if p.StartDate.set {
		as = as.add("start_date", p.StartDate.arg())
	}
	if p.MaturityDate.set {
		as = as.add("maturity_date", p.MaturityDate.arg())
	}
	return as
}

// enumArg passes a string enum to the driver as a plain string or NULL.
func enumArg[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

// InsuranceRepo handles insurance policies.
type InsuranceRepo struct {
	db DBTX
}

func NewInsuranceRepo(db DBTX) *InsuranceRepo { return &InsuranceRepo{db: db} }

const insuranceColumns = `id, account_id, policy_name, insurer, type, premium, premium_freq, sum_assured, cash_value,
	linked_fund_id, start_date, maturity_date, created_at, updated_at`

func scanPolicy(s scanner) (InsurancePolicy, error) {
	var p InsurancePolicy
	err := s.Scan(&p.ID, &p.AccountID, &p.PolicyName, &p.Insurer, &p.Type, &p.Premium, &p.PremiumFreq,
		&p.SumAssured, &p.CashValue, &p.LinkedFundID, &p.StartDate, &p.MaturityDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *InsuranceRepo) Create(ctx context.Context, in NewInsurancePolicy) (*InsurancePolicy, error) {
	id := database.NewID()
	now := database.Timestamp()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO insurance_policies(
	 id, account_id, policy_name, insurer, type, premium, premium_freq, sum_assured, cash_value,
	 linked_fund_id, start_date, maturity_date, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.AccountID, in.PolicyName, nullable(in.Insurer), enumArg(in.Type), nullable(in.Premium),
		enumArg(in.PremiumFreq), nullable(in.SumAssured), nullable(in.CashValue), nullable(in.LinkedFundID),
		nullable(in.StartDate), nullable(in.MaturityDate), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert insurance policy: %w", err)
	}
	p, err := r.GetByID(ctx, id)
	return mustGet(p, err, "insurance policy", id)
}

func (r *InsuranceRepo) Update(ctx context.Context, id string, p InsurancePatch) (*InsurancePolicy, error) {
	if err := update(ctx, r.db, "insurance_policies", id, p.assignments(), true); err != nil {
		return nil, err
	}
	pol, err := r.GetByID(ctx, id)
	return mustGet(pol, err, "insurance policy", id)
}

func (r *InsuranceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM insurance_policies WHERE id = ?`, id)
	return err
}

func (r *InsuranceRepo) GetByID(ctx context.Context, id string) (*InsurancePolicy, error) {
	p, err := scanPolicy(r.db.QueryRowContext(ctx, `SELECT `+insuranceColumns+` FROM insurance_policies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *InsuranceRepo) ListByAccount(ctx context.Context, accountID string) ([]InsurancePolicy, error) {
	return r.query(ctx, `SELECT `+insuranceColumns+` FROM insurance_policies WHERE account_id = ? ORDER BY policy_name`, accountID)
}

// List returns every policy.
func (r *InsuranceRepo) List(ctx context.Context) ([]InsurancePolicy, error) {
	return r.query(ctx, `SELECT `+insuranceColumns+` FROM insurance_policies ORDER BY account_id, policy_name`)
}

func (r *InsuranceRepo) query(ctx context.Context, query string, args ...any) ([]InsurancePolicy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InsurancePolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
