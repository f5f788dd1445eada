package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/arkark/internal/database/repository"
)

// IngestService imports transactions from CSV.
type IngestService struct {
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Categories   *repository.CategoryRepo

	accountCache  map[string]repository.Account
	categoryCache map[string]string
}

// NewIngestService wires the repositories over db.
func NewIngestService(db repository.DBTX) *IngestService {
	return &IngestService{
		Transactions: repository.NewTransactionRepo(db),
		Accounts:     repository.NewAccountRepo(db),
		Categories:   repository.NewCategoryRepo(db),
	}
}

type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// CSV columns: date, type, amount, account, category, note[, to_account].
// A header row is optional. An empty type is inferred from the sign of the
// amount; amounts are stored as absolute values. Accounts that do not exist
// yet are created as bank accounts.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader) (IngestResult, error) {
	res := IngestResult{}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		if len(rec) < 6 {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: expected at least 6 columns", line))
			continue
		}
		in, err := s.parseRecord(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		dup, err := s.Transactions.Exists(ctx, in)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d lookup: %w", line, err))
			continue
		}
		if dup {
			res.Skipped++
			continue
		}
		if _, err := s.Transactions.Create(ctx, in); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d insert: %w", line, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}

func (s *IngestService) parseRecord(ctx context.Context, rec []string) (repository.NewTransaction, error) {
	var in repository.NewTransaction
	date, err := parseDate(rec[0])
	if err != nil {
		return in, fmt.Errorf("date: %w", err)
	}
	amount, err := parseAmount(rec[2])
	if err != nil {
		return in, fmt.Errorf("amount: %w", err)
	}
	typ, err := inferType(rec[1], amount)
	if err != nil {
		return in, fmt.Errorf("type: %w", err)
	}
	acct, err := s.accountForName(ctx, rec[3])
	if err != nil {
		return in, fmt.Errorf("account: %w", err)
	}
	in = repository.NewTransaction{
		Type:      typ,
		Amount:    amount.Abs().InexactFloat64(),
		Currency:  acct.Currency,
		AccountID: acct.ID,
		Date:      date,
		Note:      nullableStr(rec[5]),
	}
	if typ == repository.TxTransfer {
		if len(rec) < 7 || strings.TrimSpace(rec[6]) == "" {
			return in, errors.New("to_account: required for transfer")
		}
		dest, err := s.accountForName(ctx, rec[6])
		if err != nil {
			return in, fmt.Errorf("to_account: %w", err)
		}
		in.ToAccountID = &dest.ID
		return in, nil
	}
	if name := strings.TrimSpace(rec[4]); name != "" {
		id, err := s.categoryFor(ctx, name, repository.CategoryType(typ))
		if err != nil {
			return in, fmt.Errorf("category: %w", err)
		}
		in.CategoryID = &id
	}
	return in, nil
}

func parseDate(s string) (string, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return t.Format(time.DateOnly), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}

func inferType(s string, amount decimal.Decimal) (repository.TransactionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		if amount.IsNegative() {
			return repository.TxExpense, nil
		}
		return repository.TxIncome, nil
	}
	t := repository.TransactionType(s)
	switch t {
	case repository.TxIncome, repository.TxExpense, repository.TxTransfer:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

func nullableStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *IngestService) accountForName(ctx context.Context, name string) (repository.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Account{}, errors.New("account name required")
	}
	if s.accountCache == nil {
		s.accountCache = make(map[string]repository.Account)
	}
	if acct, ok := s.accountCache[name]; ok {
		return acct, nil
	}
	acct, err := s.Accounts.GetByName(ctx, name)
	if err != nil {
		return repository.Account{}, err
	}
	if acct == nil {
		acct, err = s.Accounts.Create(ctx, repository.NewAccount{Name: name, Type: repository.AccountBank})
		if err != nil {
			return repository.Account{}, err
		}
	}
	s.accountCache[name] = *acct
	return *acct, nil
}

func (s *IngestService) categoryFor(ctx context.Context, name string, t repository.CategoryType) (string, error) {
	key := string(t) + "|" + name
	if s.categoryCache == nil {
		s.categoryCache = make(map[string]string)
	}
	if id, ok := s.categoryCache[key]; ok {
		return id, nil
	}
	c, err := ensureCategory(ctx, s.Categories, repository.NewCategory{Name: name, Type: t})
	if err != nil {
		return "", err
	}
	s.categoryCache[key] = c.ID
	return c.ID, nil
}
