// Package views computes the derived, never-stored aggregations over the base
// tables: per-account balances, per-account asset summaries and the
// portfolio-wide health check.
//
// Two flow rules are in play and both are kept on purpose. An account balance
// is a net figure: a transfer debits its source and credits its destination.
// A summary's cash balance is a ledger figure: a transfer is an outflow of its
// source and nothing else. The health check builds on the summaries, so it
// inherits the ledger rule.
package views

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/jask/arkark/internal/database/repository"
)

// ExpenseWindowMonths is the trailing window for the average monthly expense.
const ExpenseWindowMonths = 6

// AssetsSummary is one non-archived account's position.
type AssetsSummary struct {
	AccountID      string                 `json:"account_id"`
	AccountName    string                 `json:"account_name"`
	AccountType    repository.AccountType `json:"account_type"`
	Currency       string                 `json:"currency"`
	CashBalance    float64                `json:"cash_balance"`
	HoldingsValue  float64                `json:"holdings_value"`
	UnrealizedPnL  float64                `json:"unrealized_pnl"`
	InsuranceValue float64                `json:"insurance_value"`
	TotalValue     float64                `json:"total_value"`
}

// FinancialHealth is the single portfolio-wide health row.
// EmergencyFundMonths is nil when there is no expense history in the window.
type FinancialHealth struct {
	TotalAssets         float64  `json:"total_assets"`
	LiquidCash          float64  `json:"liquid_cash"`
	RiskAssets          float64  `json:"risk_assets"`
	TotalInsurance      float64  `json:"total_insurance"`
	TotalLiabilities    float64  `json:"total_liabilities"`
	NetWorth            float64  `json:"net_worth"`
	AvgMonthlyExpense   float64  `json:"avg_monthly_expense"`
	EmergencyFundMonths *float64 `json:"emergency_fund_months"`
	RiskAssetRatio      float64  `json:"risk_asset_ratio"`
}

// ledgerFlow is the signed effect of t on its source account, counting a
// transfer as an outflow only.
func ledgerFlow(t repository.Transaction) float64 {
	switch t.Type {
	case repository.TxIncome:
		return t.Amount
	case repository.TxExpense, repository.TxTransfer:
		return -t.Amount
	}
	return 0
}

// netFlow is the signed effect of t on accountID. The source side wins when a
// transfer names the same account on both ends.
func netFlow(t repository.Transaction, accountID string) float64 {
	switch t.Type {
	case repository.TxIncome:
		return t.Amount
	case repository.TxExpense:
		return -t.Amount
	case repository.TxTransfer:
		if t.AccountID == accountID {
			return -t.Amount
		}
		if t.ToAccountID != nil && *t.ToAccountID == accountID {
			return t.Amount
		}
	}
	return 0
}

// effectivePrice values a position at its last known price, or at average cost
// when no price has been recorded.
func effectivePrice(lastPrice *float64, avgCost float64) float64 {
	if lastPrice != nil {
		return *lastPrice
	}
	return avgCost
}

// round1 rounds half away from zero to one decimal place.
func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

func touches(t repository.Transaction, accountID string) bool {
	return t.AccountID == accountID || (t.ToAccountID != nil && *t.ToAccountID == accountID)
}

// AccountBalances computes the net balance of every non-archived account.
// Output follows the order of accounts.
func AccountBalances(accounts []repository.Account, txs []repository.Transaction) []repository.AccountBalance {
	out := make([]repository.AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		if a.IsArchived {
			continue
		}
		b := repository.AccountBalance{
			ID: a.ID, Name: a.Name, Type: a.Type, Currency: a.Currency,
			Institution: a.Institution, Icon: a.Icon, Color: a.Color,
		}
		for _, t := range txs {
			if !touches(t, a.ID) {
				continue
			}
			b.Balance += netFlow(t, a.ID)
			b.TransactionCount++
			if b.LastTransactionDate == nil || t.Date > *b.LastTransactionDate {
				d := t.Date
				b.LastTransactionDate = &d
			}
		}
		out = append(out, b)
	}
	return out
}

// AssetsSummaries computes the position of every non-archived account.
func AssetsSummaries(
	accounts []repository.Account,
	txs []repository.Transaction,
	holdings []repository.HoldingWithSecurity,
	policies []repository.InsurancePolicy,
) []AssetsSummary {
	cash := map[string]float64{}
	for _, t := range txs {
		cash[t.AccountID] += ledgerFlow(t)
	}
	market := map[string]float64{}
	cost := map[string]float64{}
	for _, h := range holdings {
		market[h.AccountID] += h.Units * effectivePrice(h.LastPrice, h.AvgCost)
		cost[h.AccountID] += h.Units * h.AvgCost
	}
	insured := map[string]float64{}
	for _, p := range policies {
		if p.CashValue != nil {
			insured[p.AccountID] += *p.CashValue
		}
	}

	out := make([]AssetsSummary, 0, len(accounts))
	for _, a := range accounts {
		if a.IsArchived {
			continue
		}
		s := AssetsSummary{
			AccountID:      a.ID,
			AccountName:    a.Name,
			AccountType:    a.Type,
			Currency:       a.Currency,
			CashBalance:    cash[a.ID],
			HoldingsValue:  market[a.ID],
			UnrealizedPnL:  market[a.ID] - cost[a.ID],
			InsuranceValue: insured[a.ID],
		}
		s.TotalValue = s.CashBalance + s.HoldingsValue + s.InsuranceValue
		out = append(out, s)
	}
	return out
}

// averageMonthlyExpense is the mean of per-calendar-month expense totals for
// expenses dated on or after cutoff. Months without expenses are not averaged
// in as zero; with no such months the result is 0.
func averageMonthlyExpense(txs []repository.Transaction, cutoff string) float64 {
	byMonth := map[string]float64{}
	for _, t := range txs {
		if t.Type != repository.TxExpense || t.Date < cutoff || len(t.Date) < 7 {
			continue
		}
		byMonth[t.Date[:7]] += t.Amount
	}
	if len(byMonth) == 0 {
		return 0
	}
	totals := make([]float64, 0, len(byMonth))
	for _, v := range byMonth {
		totals = append(totals, v)
	}
	return stat.Mean(totals, nil)
}

// HealthCheck aggregates summaries into the portfolio health row as of asOf.
func HealthCheck(summaries []AssetsSummary, txs []repository.Transaction, asOf time.Time) FinancialHealth {
	var h FinancialHealth
	for _, s := range summaries {
		h.TotalAssets += s.TotalValue
		h.TotalInsurance += s.InsuranceValue
		switch {
		case s.AccountType.Liquid():
			h.LiquidCash += s.CashBalance
		case s.AccountType == repository.AccountInvestment:
			h.RiskAssets += s.HoldingsValue
		case s.AccountType.Liability():
			h.TotalLiabilities += math.Abs(s.CashBalance)
		}
	}
	h.NetWorth = h.TotalAssets - h.TotalLiabilities

	cutoff := asOf.AddDate(0, -ExpenseWindowMonths, 0).Format(time.DateOnly)
	h.AvgMonthlyExpense = averageMonthlyExpense(txs, cutoff)
	if h.AvgMonthlyExpense > 0 {
		months := round1(h.LiquidCash / h.AvgMonthlyExpense)
		h.EmergencyFundMonths = &months
	}
	if h.TotalAssets > 0 {
		h.RiskAssetRatio = round1(h.RiskAssets * 100 / h.TotalAssets)
	}
	return h
}
