package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jask/arkark/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.ApplyMigrations(context.Background(), db, zerolog.Nop()))
	return db
}

func ptr[T any](v T) *T { return &v }

var hexID = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestAccountLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))

	a, err := repo.Create(ctx, NewAccount{Name: "Test", Type: AccountBank})
	require.NoError(t, err)
	require.Regexp(t, hexID, a.ID)
	require.Equal(t, "TWD", a.Currency)
	require.False(t, a.IsArchived)
	require.Zero(t, a.SortOrder)
	require.Nil(t, a.Institution)
	require.Equal(t, a.CreatedAt, a.UpdatedAt)

	list, err := repo.List(ctx, ListAccountsOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Archive(ctx, a.ID))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsArchived)

	list, err = repo.List(ctx, ListAccountsOptions{})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = repo.List(ctx, ListAccountsOptions{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, a.ID, list[0].ID)

	require.ErrorIs(t, repo.Archive(ctx, "missing"), ErrNotFound)
}

func TestAccountListOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))

	for _, in := range []NewAccount{
		{Name: "Zeta", Type: AccountCash, SortOrder: 1},
		{Name: "Beta", Type: AccountBank, SortOrder: 1},
		{Name: "Omega", Type: AccountLoan, SortOrder: 0},
	} {
		_, err := repo.Create(ctx, in)
		require.NoError(t, err)
	}
	list, err := repo.List(ctx, ListAccountsOptions{})
	require.NoError(t, err)
	var names []string
	for _, a := range list {
		names = append(names, a.Name)
	}
	require.Equal(t, []string{"Omega", "Beta", "Zeta"}, names)
}

func TestAccountUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))

	a, err := repo.Create(ctx, NewAccount{Name: "Main", Type: AccountBank, Institution: ptr("First Bank")})
	require.NoError(t, err)

	same, err := repo.Update(ctx, a.ID, AccountPatch{})
	require.NoError(t, err)
	require.Equal(t, a, same, "empty patch is a no-op")

	time.Sleep(2 * time.Millisecond)
	up, err := repo.Update(ctx, a.ID, AccountPatch{Name: ptr("Salary"), Institution: Clear[string](), Color: Value("#00ff00")})
	require.NoError(t, err)
	require.Equal(t, "Salary", up.Name)
	require.Nil(t, up.Institution)
	require.Equal(t, "#00ff00", *up.Color)
	require.Equal(t, AccountBank, up.Type)
	require.Greater(t, up.UpdatedAt, a.UpdatedAt)
	require.Equal(t, a.CreatedAt, up.CreatedAt)

	_, err = repo.Update(ctx, "0000000000000000", AccountPatch{Name: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, "0000000000000000", AccountPatch{})
	require.ErrorIs(t, err, ErrNotFound)

	missing, err := repo.GetByID(ctx, "0000000000000000")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAccountTypeCheckConstraint(t *testing.T) {
	t.Parallel()
	repo := NewAccountRepo(newTestDB(t))
	_, err := repo.Create(context.Background(), NewAccount{Name: "Bad", Type: AccountType("piggy_bank")})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestTransactionValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	accounts := NewAccountRepo(db)
	txs := NewTransactionRepo(db)

	a, err := accounts.Create(ctx, NewAccount{Name: "A", Type: AccountBank})
	require.NoError(t, err)
	b, err := accounts.Create(ctx, NewAccount{Name: "B", Type: AccountBank})
	require.NoError(t, err)

	cases := []struct {
		name string
		in   NewTransaction
	}{
		{"negative amount", NewTransaction{Type: TxExpense, Amount: -1, AccountID: a.ID, Date: "2026-01-01"}},
		{"transfer without destination", NewTransaction{Type: TxTransfer, Amount: 10, AccountID: a.ID, Date: "2026-01-01"}},
		{"income with destination", NewTransaction{Type: TxIncome, Amount: 10, AccountID: a.ID, ToAccountID: &b.ID, Date: "2026-01-01"}},
	}
	for _, tc := range cases {
		_, err := txs.Create(ctx, tc.in)
		require.ErrorIs(t, err, ErrInvalidTransaction, tc.name)
	}

	tr, err := txs.Create(ctx, NewTransaction{Type: TxTransfer, Amount: 10, AccountID: a.ID, ToAccountID: &b.ID, Date: "2026-01-01"})
	require.NoError(t, err)
	require.Equal(t, b.ID, *tr.ToAccountID)

	_, err = txs.Update(ctx, tr.ID, TransactionPatch{Amount: ptr(-5.0)})
	require.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestTransactionRoundTripAndListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	accounts := NewAccountRepo(db)
	txs := NewTransactionRepo(db)

	a, err := accounts.Create(ctx, NewAccount{Name: "A", Type: AccountBank})
	require.NoError(t, err)
	b, err := accounts.Create(ctx, NewAccount{Name: "B", Type: AccountCash})
	require.NoError(t, err)

	first, err := txs.Create(ctx, NewTransaction{
		Type: TxExpense, Amount: 120, AccountID: a.ID, Date: "2026-03-01", Time: ptr("08:00"),
		Tags: []string{"coffee", "work"}, Recurrence: ptr(`{"freq":"daily"}`), IsRecurring: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"coffee", "work"}, first.Tags)
	require.True(t, first.IsRecurring)
	require.Equal(t, `{"freq":"daily"}`, *first.Recurrence)
	require.Equal(t, "TWD", first.Currency)

	_, err = txs.Create(ctx, NewTransaction{Type: TxExpense, Amount: 80, AccountID: a.ID, Date: "2026-03-01", Time: ptr("19:30")})
	require.NoError(t, err)
	_, err = txs.Create(ctx, NewTransaction{Type: TxTransfer, Amount: 500, AccountID: a.ID, ToAccountID: &b.ID, Date: "2026-03-05"})
	require.NoError(t, err)
	_, err = txs.Create(ctx, NewTransaction{Type: TxIncome, Amount: 1000, AccountID: a.ID, Date: "2026-04-01"})
	require.NoError(t, err)

	march, err := txs.ListByDate(ctx, "2026-03-01", "2026-03-31", Page{})
	require.NoError(t, err)
	require.Len(t, march, 3)
	require.Equal(t, "2026-03-05", march[0].Date)
	require.Equal(t, "19:30", *march[1].Time)
	require.Equal(t, "08:00", *march[2].Time)

	paged, err := txs.ListByDate(ctx, "2026-03-01", "2026-03-31", Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, march[1].ID, paged[0].ID)

	ofB, err := txs.ListByAccount(ctx, b.ID, Page{})
	require.NoError(t, err)
	require.Len(t, ofB, 1, "destination side is listed")
	require.Equal(t, TxTransfer, ofB[0].Type)

	up, err := txs.Update(ctx, first.ID, TransactionPatch{Tags: Clear[[]string](), Note: Value("beans")})
	require.NoError(t, err)
	require.Nil(t, up.Tags)
	require.Equal(t, "beans", *up.Note)

	require.NoError(t, txs.Delete(ctx, first.ID))
	gone, err := txs.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestCategoryTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewCategoryRepo(newTestDB(t))

	food, err := repo.Create(ctx, NewCategory{Name: "Food", Type: CategoryExpense, IsSystem: true})
	require.NoError(t, err)
	require.True(t, food.IsSystem)
	_, err = repo.Create(ctx, NewCategory{Name: "Groceries", Type: CategoryExpense, ParentID: &food.ID, SortOrder: 2})
	require.NoError(t, err)
	_, err = repo.Create(ctx, NewCategory{Name: "Dining", Type: CategoryExpense, ParentID: &food.ID, SortOrder: 1})
	require.NoError(t, err)
	_, err = repo.Create(ctx, NewCategory{Name: "Salary", Type: CategoryIncome})
	require.NoError(t, err)

	kids, err := repo.Children(ctx, food.ID)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	require.Equal(t, "Dining", kids[0].Name)

	income := CategoryIncome
	onlyIncome, err := repo.List(ctx, &income)
	require.NoError(t, err)
	require.Len(t, onlyIncome, 1)

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)

	found, err := repo.GetByName(ctx, "Salary", CategoryIncome)
	require.NoError(t, err)
	require.NotNil(t, found)

	renamed, err := repo.Update(ctx, food.ID, CategoryPatch{Name: ptr("Food & Drink")})
	require.NoError(t, err)
	require.Equal(t, "Food & Drink", renamed.Name)
}

func TestHoldingsOrderedByMarketValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	acct, err := NewAccountRepo(db).Create(ctx, NewAccount{Name: "Broker", Type: AccountInvestment})
	require.NoError(t, err)
	secs := NewSecurityRepo(db)
	priced, err := secs.Create(ctx, NewSecurity{Symbol: "0050", Name: "Taiwan 50", Type: SecurityETF, LastPrice: ptr(150.0)})
	require.NoError(t, err)
	require.NotNil(t, priced.PriceUpdated)
	unpriced, err := secs.Create(ctx, NewSecurity{Symbol: "BOND1", Name: "Gov bond", Type: SecurityBond})
	require.NoError(t, err)
	require.Nil(t, unpriced.LastPrice)

	_, err = secs.Create(ctx, NewSecurity{Symbol: "0050", Name: "dup", Type: SecurityETF})
	require.Error(t, err, "symbol is unique")

	holdings := NewHoldingRepo(db)
	_, err = holdings.Create(ctx, NewHolding{AccountID: acct.ID, SecurityID: priced.ID, Units: 10, AvgCost: 100})
	require.NoError(t, err)
	h2, err := holdings.Create(ctx, NewHolding{AccountID: acct.ID, SecurityID: unpriced.ID, Units: 20, AvgCost: 90})
	require.NoError(t, err)

	list, err := holdings.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "BOND1", list[0].Symbol)
	require.InDelta(t, 1800, list[0].MarketValue, 1e-9, "falls back to avg cost")
	require.InDelta(t, 1500, list[1].MarketValue, 1e-9)

	_, err = secs.UpdatePrice(ctx, priced.ID, 200, database.Timestamp())
	require.NoError(t, err)
	list, err = holdings.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, "0050", list[0].Symbol)

	up, err := holdings.Update(ctx, h2.ID, HoldingPatch{Units: ptr(5.0), Note: Value("trimmed")})
	require.NoError(t, err)
	require.Equal(t, 5.0, up.Units)
	require.NoError(t, holdings.Delete(ctx, h2.ID))
	list, err = holdings.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestInsurancePolicies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	acct, err := NewAccountRepo(db).Create(ctx, NewAccount{Name: "Policies", Type: AccountInsurance})
	require.NoError(t, err)
	repo := NewInsuranceRepo(db)

	life := InsuranceLife
	p, err := repo.Create(ctx, NewInsurancePolicy{AccountID: acct.ID, PolicyName: "Term life", Type: &life, CashValue: ptr(0.0)})
	require.NoError(t, err)
	require.Equal(t, InsuranceLife, *p.Type)
	require.Nil(t, p.PremiumFreq)
	_, err = repo.Create(ctx, NewInsurancePolicy{AccountID: acct.ID, PolicyName: "Annuity plan"})
	require.NoError(t, err)

	up, err := repo.Update(ctx, p.ID, InsurancePatch{CashValue: Value(12000.0), PremiumFreq: Value(PremiumAnnual)})
	require.NoError(t, err)
	require.Equal(t, 12000.0, *up.CashValue)
	require.Equal(t, PremiumAnnual, *up.PremiumFreq)

	list, err := repo.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Annuity plan", list[0].PolicyName)
}

func TestBudgets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	acct, err := NewAccountRepo(db).Create(ctx, NewAccount{Name: "A", Type: AccountBank})
	require.NoError(t, err)
	food, err := NewCategoryRepo(db).Create(ctx, NewCategory{Name: "Food", Type: CategoryExpense})
	require.NoError(t, err)
	txs := NewTransactionRepo(db)
	budgets := NewBudgetRepo(db)

	b, err := budgets.Create(ctx, NewBudget{CategoryID: &food.ID, Amount: 5000, Period: BudgetMonthly, StartDate: "2026-01-01"})
	require.NoError(t, err)
	_, err = budgets.Create(ctx, NewBudget{Amount: 20000, Period: BudgetMonthly, StartDate: "2026-01-01"})
	require.NoError(t, err)
	_, err = budgets.Create(ctx, NewBudget{CategoryID: &food.ID, Amount: 100, Period: BudgetWeekly, StartDate: "2027-01-01"})
	require.NoError(t, err)

	for _, tx := range []NewTransaction{
		{Type: TxExpense, Amount: 1200, AccountID: acct.ID, CategoryID: &food.ID, Date: "2026-05-03"},
		{Type: TxExpense, Amount: 300, AccountID: acct.ID, CategoryID: &food.ID, Date: "2026-05-20"},
		{Type: TxExpense, Amount: 999, AccountID: acct.ID, CategoryID: &food.ID, Date: "2026-04-30"},
	} {
		_, err := txs.Create(ctx, tx)
		require.NoError(t, err)
	}

	active, err := budgets.Active(ctx, time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, active, 2, "future budget is not active")
	require.Nil(t, active[0].CategoryID)
	require.Zero(t, active[0].Spent)
	require.Equal(t, b.ID, active[1].ID)
	require.Equal(t, "Food", *active[1].CategoryName)
	require.InDelta(t, 1500, active[1].Spent, 1e-9)
	require.InDelta(t, 3500, active[1].Remaining, 1e-9)

	byCat, err := budgets.ListByCategory(ctx, food.ID)
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	require.Equal(t, "2027-01-01", byCat[0].StartDate)

	up, err := budgets.Update(ctx, b.ID, BudgetPatch{Amount: ptr(6000.0)})
	require.NoError(t, err)
	require.Equal(t, 6000.0, up.Amount)
	require.Equal(t, b.CreatedAt, up.CreatedAt)
}

func TestSyncLogAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewSyncLogRepo(newTestDB(t))

	l, err := repo.Append(ctx, NewSyncLog{Action: SyncPush, EntityType: "health", EntityID: "snap-1", Fingerprint: ptr("abc")})
	require.NoError(t, err)
	require.Equal(t, "pending", l.Status)
	_, err = repo.Append(ctx, NewSyncLog{Action: SyncPull, EntityType: "health", EntityID: "snap-1", Status: "ok"})
	require.NoError(t, err)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, SyncPull, recent[0].Action)
}
