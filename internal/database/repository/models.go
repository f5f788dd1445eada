package repository

// AccountType is the closed set of account kinds.
type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountEPayment   AccountType = "e_payment"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
	AccountInsurance  AccountType = "insurance"
	AccountLoan       AccountType = "loan"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountEPayment, AccountCreditCard,
		AccountInvestment, AccountInsurance, AccountLoan:
		return true
	}
	return false
}

// Liquid reports whether balances of this kind count as liquid cash.
func (t AccountType) Liquid() bool {
	return t == AccountBank || t == AccountCash || t == AccountEPayment
}

// Liability reports whether balances of this kind are owed.
func (t AccountType) Liability() bool {
	return t == AccountLoan || t == AccountCreditCard
}

type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

func (t CategoryType) Valid() bool { return t == CategoryIncome || t == CategoryExpense }

type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	return t == TxIncome || t == TxExpense || t == TxTransfer
}

type SecurityType string

const (
	SecurityStock  SecurityType = "stock"
	SecurityETF    SecurityType = "etf"
	SecurityFund   SecurityType = "fund"
	SecurityBond   SecurityType = "bond"
	SecurityCrypto SecurityType = "crypto"
)

func (t SecurityType) Valid() bool {
	switch t {
	case SecurityStock, SecurityETF, SecurityFund, SecurityBond, SecurityCrypto:
		return true
	}
	return false
}

type InsuranceType string

const (
	InsuranceLife             InsuranceType = "life"
	InsuranceSavings          InsuranceType = "savings"
	InsuranceInvestmentLinked InsuranceType = "investment_linked"
	InsuranceMedical          InsuranceType = "medical"
	InsuranceAccident         InsuranceType = "accident"
	InsuranceAnnuity          InsuranceType = "annuity"
)

type PremiumFrequency string

const (
	PremiumMonthly    PremiumFrequency = "monthly"
	PremiumQuarterly  PremiumFrequency = "quarterly"
	PremiumSemiAnnual PremiumFrequency = "semi_annual"
	PremiumAnnual     PremiumFrequency = "annual"
)

type BudgetPeriod string

const (
	BudgetMonthly BudgetPeriod = "monthly"
	BudgetWeekly  BudgetPeriod = "weekly"
)

type SyncAction string

const (
	SyncPush SyncAction = "push"
	SyncPull SyncAction = "pull"
)

// DefaultCurrency applies when a row is created without a currency.
const DefaultCurrency = "TWD"

// Account represents an account row.
type Account struct {
	ID          string
	Name        string
	Type        AccountType
	Currency    string
	Institution *string
	Icon        *string
	Color       *string
	IsArchived  bool
	SortOrder   int
	CreatedAt   string
	UpdatedAt   string
}

// AccountBalance is a row of v_account_balances.
type AccountBalance struct {
	ID                  string
	Name                string
	Type                AccountType
	Currency            string
	Institution         *string
	Icon                *string
	Color               *string
	Balance             float64
	TransactionCount    int
	LastTransactionDate *string
}

// Category represents a category row.
type Category struct {
	ID        string
	Name      string
	Type      CategoryType
	Icon      *string
	Color     *string
	ParentID  *string
	SortOrder int
	IsSystem  bool
	CreatedAt string
}

// Transaction represents a transaction row. Amount is a magnitude; the
// direction comes from Type.
type Transaction struct {
	ID          string
	Type        TransactionType
	Amount      float64
	Currency    string
	AccountID   string
	ToAccountID *string
	CategoryID  *string
	Note        *string
	Date        string // YYYY-MM-DD
	Time        *string
	Tags        []string
	ReceiptURI  *string
	IsRecurring bool
	Recurrence  *string // JSON rule
	SyncedAt    *string
	CreatedAt   string
	UpdatedAt   string
}

// Security represents a tradable instrument.
type Security struct {
	ID           string
	Symbol       string
	Name         string
	Type         SecurityType
	Currency     string
	LastPrice    *float64
	PriceUpdated *string
	CreatedAt    string
}

// Holding represents a position of one security in one account.
type Holding struct {
	ID           string
	AccountID    string
	SecurityID   string
	Units        float64
	AvgCost      float64
	PurchaseDate *string
	Note         *string
	CreatedAt    string
	UpdatedAt    string
}

// HoldingWithSecurity is a holding joined with its security and valued.
type HoldingWithSecurity struct {
	Holding
	SecurityName string
	Symbol       string
	SecurityType SecurityType
	LastPrice    *float64
	MarketValue  float64
}

// InsurancePolicy represents a policy held under an account.
type InsurancePolicy struct {
	ID           string
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
	CreatedAt    string
	UpdatedAt    string
}

// Budget represents a spending limit, optionally per category.
type Budget struct {
	ID         string
	CategoryID *string
	Amount     float64
	Period     BudgetPeriod
	StartDate  string
	CreatedAt  string
}

// BudgetWithSpent is an active budget with this month's spending.
type BudgetWithSpent struct {
	Budget
	CategoryName *string
	Spent        float64
	Remaining    float64
}

// SyncLog is an outgoing or incoming sync record.
type SyncLog struct {
	ID           string
	Action       SyncAction
	EntityType   string
	EntityID     string
	Fingerprint  *string
	Status       string
	ErrorMessage *string
	CreatedAt    string
}
