package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jask/arkark/internal/database/repository"
)

// Repos bundles the repositories used by SeedDemo.
type Repos struct {
	Accounts     *repository.AccountRepo
	Categories   *repository.CategoryRepo
	Transactions *repository.TransactionRepo
	Securities   *repository.SecurityRepo
	Holdings     *repository.HoldingRepo
	Insurance    *repository.InsuranceRepo
	Budgets      *repository.BudgetRepo
}

func NewRepos(db repository.DBTX) Repos {
	return Repos{
		Accounts:     repository.NewAccountRepo(db),
		Categories:   repository.NewCategoryRepo(db),
		Transactions: repository.NewTransactionRepo(db),
		Securities:   repository.NewSecurityRepo(db),
		Holdings:     repository.NewHoldingRepo(db),
		Insurance:    repository.NewInsuranceRepo(db),
		Budgets:      repository.NewBudgetRepo(db),
	}
}

type demoAccount struct {
	key         string
	name        string
	typ         repository.AccountType
	institution string
	icon        string
}

var demoAccounts = []demoAccount{
	{key: "bank", name: "台新 Richart", typ: repository.AccountBank, institution: "台新銀行", icon: "🏦"},
	{key: "cash", name: "現金", typ: repository.AccountCash, icon: "💵"},
	{key: "linepay", name: "LINE Pay", typ: repository.AccountEPayment, institution: "LINE", icon: "📱"},
	{key: "card", name: "國泰世華信用卡", typ: repository.AccountCreditCard, institution: "國泰世華", icon: "💳"},
	{key: "broker", name: "元大證券", typ: repository.AccountInvestment, institution: "元大", icon: "📈"},
	{key: "policy", name: "國泰人壽", typ: repository.AccountInsurance, institution: "國泰人壽", icon: "🛡"},
}

// SeedDemo fills an empty database with six months of sample activity ending
// at now. Output is deterministic for a given now.
func SeedDemo(ctx context.Context, db repository.DBTX, now time.Time) error {
	if err := SeedDefaults(ctx, db); err != nil {
		return err
	}
	repos := NewRepos(db)
	now = now.UTC()
	rng := rand.New(rand.NewPCG(uint64(now.Year()), uint64(now.Month())))

	accts := map[string]string{}
	for i, d := range demoAccounts {
		in := repository.NewAccount{Name: d.name, Type: d.typ, Icon: &d.icon, SortOrder: i}
		if d.institution != "" {
			in.Institution = &d.institution
		}
		a, err := repos.Accounts.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("demo account %s: %w", d.name, err)
		}
		accts[d.key] = a.ID
	}

	cats := map[string]string{}
	for _, name := range []string{"Salary", "Rent", "Groceries", "Dining", "Coffee", "Transport", "Shopping"} {
		t := repository.CategoryExpense
		if name == "Salary" {
			t = repository.CategoryIncome
		}
		c, err := repos.Categories.GetByName(ctx, name, t)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("demo category %s missing", name)
		}
		cats[name] = c.ID
	}

	add := func(in repository.NewTransaction) error {
		if in.Date > now.Format(time.DateOnly) {
			return nil
		}
		_, err := repos.Transactions.Create(ctx, in)
		return err
	}
	spend := []struct {
		note, category, account string
		min, max                int
	}{
		{"全聯", "Groceries", "bank", 300, 1800},
		{"午餐便當", "Dining", "cash", 80, 200},
		{"星巴克", "Coffee", "linepay", 120, 250},
		{"捷運", "Transport", "linepay", 30, 120},
		{"momo 購物", "Shopping", "card", 500, 4000},
		{"晚餐", "Dining", "card", 250, 1200},
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := 5; m >= 0; m-- {
		base := monthStart.AddDate(0, -m, 0)
		day := func(d int) string { return base.AddDate(0, 0, d-1).Format(time.DateOnly) }
		steps := []repository.NewTransaction{
			{Type: repository.TxIncome, Amount: 52000, AccountID: accts["bank"], CategoryID: ptr(cats["Salary"]), Note: ptr("薪資"), Date: day(5)},
			{Type: repository.TxExpense, Amount: 15000, AccountID: accts["bank"], CategoryID: ptr(cats["Rent"]), Note: ptr("房租"), Date: day(1)},
			{Type: repository.TxTransfer, Amount: 5000, AccountID: accts["bank"], ToAccountID: ptr(accts["broker"]), Note: ptr("定期定額"), Date: day(6)},
			{Type: repository.TxTransfer, Amount: 3000, AccountID: accts["bank"], ToAccountID: ptr(accts["cash"]), Note: ptr("提款"), Date: day(10)},
		}
		for i := 0; i < 10; i++ {
			s := spend[rng.IntN(len(spend))]
			steps = append(steps, repository.NewTransaction{
				Type:       repository.TxExpense,
				Amount:     float64(s.min + rng.IntN(s.max-s.min+1)),
				AccountID:  accts[s.account],
				CategoryID: ptr(cats[s.category]),
				Note:       ptr(s.note),
				Date:       day(1 + rng.IntN(28)),
			})
		}
		for _, in := range steps {
			if err := add(in); err != nil {
				return fmt.Errorf("demo transaction: %w", err)
			}
		}
	}

	sec, err := repos.Securities.Create(ctx, repository.NewSecurity{
		Symbol: "0050", Name: "元大台灣50", Type: repository.SecurityETF, LastPrice: ptr(185.5),
	})
	if err != nil {
		return fmt.Errorf("demo security: %w", err)
	}
	if _, err := repos.Holdings.Create(ctx, repository.NewHolding{
		AccountID: accts["broker"], SecurityID: sec.ID, Units: 200, AvgCost: 142.3,
		PurchaseDate: ptr(monthStart.AddDate(-1, 0, 0).Format(time.DateOnly)),
	}); err != nil {
		return fmt.Errorf("demo holding: %w", err)
	}

	life := repository.InsuranceSavings
	annual := repository.PremiumAnnual
	if _, err := repos.Insurance.Create(ctx, repository.NewInsurancePolicy{
		AccountID: accts["policy"], PolicyName: "六年期還本終身壽險", Insurer: ptr("國泰人壽"),
		Type: &life, Premium: ptr(36000.0), PremiumFreq: &annual, SumAssured: ptr(500000.0), CashValue: ptr(108000.0),
		StartDate: ptr(monthStart.AddDate(-3, 0, 0).Format(time.DateOnly)),
	}); err != nil {
		return fmt.Errorf("demo policy: %w", err)
	}

	start := monthStart.Format(time.DateOnly)
	for _, b := range []repository.NewBudget{
		{CategoryID: ptr(cats["Dining"]), Amount: 6000, Period: repository.BudgetMonthly, StartDate: start},
		{Amount: 30000, Period: repository.BudgetMonthly, StartDate: start},
	} {
		if _, err := repos.Budgets.Create(ctx, b); err != nil {
			return fmt.Errorf("demo budget: %w", err)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
