package views

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jask/arkark/internal/database/repository"
)

// Calculator recomputes the views from base rows on every call.
type Calculator struct {
	DB repository.DBTX
}

type baseRows struct {
	accounts []repository.Account
	txs      []repository.Transaction
	holdings []repository.HoldingWithSecurity
	policies []repository.InsurancePolicy
}

func (c *Calculator) load(ctx context.Context, withAssets bool) (baseRows, error) {
	var (
		b   baseRows
		err error
	)
	if b.accounts, err = repository.NewAccountRepo(c.DB).List(ctx, repository.ListAccountsOptions{}); err != nil {
		return b, fmt.Errorf("load accounts: %w", err)
	}
	if b.txs, err = repository.NewTransactionRepo(c.DB).All(ctx); err != nil {
		return b, fmt.Errorf("load transactions: %w", err)
	}
	if !withAssets {
		return b, nil
	}
	if b.holdings, err = repository.NewHoldingRepo(c.DB).ListAll(ctx); err != nil {
		return b, fmt.Errorf("load holdings: %w", err)
	}
	if b.policies, err = repository.NewInsuranceRepo(c.DB).List(ctx); err != nil {
		return b, fmt.Errorf("load policies: %w", err)
	}
	return b, nil
}

func (c *Calculator) AccountBalances(ctx context.Context) ([]repository.AccountBalance, error) {
	b, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	return AccountBalances(b.accounts, b.txs), nil
}

func (c *Calculator) AssetsSummary(ctx context.Context) ([]AssetsSummary, error) {
	b, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return AssetsSummaries(b.accounts, b.txs, b.holdings, b.policies), nil
}

// FinancialHealth computes the health row with the expense window ending at asOf.
func (c *Calculator) FinancialHealth(ctx context.Context, asOf time.Time) (FinancialHealth, error) {
	b, err := c.load(ctx, true)
	if err != nil {
		return FinancialHealth{}, err
	}
	summaries := AssetsSummaries(b.accounts, b.txs, b.holdings, b.policies)
	return HealthCheck(summaries, b.txs, asOf.UTC()), nil
}

// SQLViews reads the SQL views shipped with the schema. The expense window of
// its health row always ends at the engine's current date.
type SQLViews struct {
	DB repository.DBTX
}

func (v *SQLViews) AccountBalances(ctx context.Context) ([]repository.AccountBalance, error) {
	return repository.NewAccountRepo(v.DB).ListBalances(ctx)
}

func (v *SQLViews) AssetsSummary(ctx context.Context) ([]AssetsSummary, error) {
	rows, err := v.DB.QueryContext(ctx, `
	SELECT account_id, account_name, account_type, currency, cash_balance, holdings_value,
	       unrealized_pnl, insurance_value, total_value
	FROM v_assets_summary`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssetsSummary
	for rows.Next() {
		var s AssetsSummary
		if err := rows.Scan(&s.AccountID, &s.AccountName, &s.AccountType, &s.Currency, &s.CashBalance,
			&s.HoldingsValue, &s.UnrealizedPnL, &s.InsuranceValue, &s.TotalValue); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FinancialHealth reads v_financial_health_check. Sums over no accounts come
// back as NULL and are reported as 0.
func (v *SQLViews) FinancialHealth(ctx context.Context) (FinancialHealth, error) {
	var h FinancialHealth
	var total, liquid, risk, insurance, liabilities, netWorth, avg, ratio sql.NullFloat64
	err := v.DB.QueryRowContext(ctx, `
	SELECT total_assets, liquid_cash, risk_assets, total_insurance, total_liabilities, net_worth,
	       avg_monthly_expense, emergency_fund_months, risk_asset_ratio
	FROM v_financial_health_check`).Scan(&total, &liquid, &risk, &insurance, &liabilities, &netWorth,
		&avg, &h.EmergencyFundMonths, &ratio)
	if err != nil {
		return h, err
	}
	h.TotalAssets = total.Float64
	h.LiquidCash = liquid.Float64
	h.RiskAssets = risk.Float64
	h.TotalInsurance = insurance.Float64
	h.TotalLiabilities = liabilities.Float64
	h.NetWorth = netWorth.Float64
	h.AvgMonthlyExpense = avg.Float64
	h.RiskAssetRatio = ratio.Float64
	return h, nil
}
