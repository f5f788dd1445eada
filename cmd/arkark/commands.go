package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/jask/arkark/internal/database"
	"github.com/jask/arkark/internal/database/repository"
	"github.com/jask/arkark/internal/prefs"
	"github.com/jask/arkark/internal/report"
	"github.com/jask/arkark/internal/secrets"
	"github.com/jask/arkark/internal/service"
	"github.com/jask/arkark/internal/views"
)

type migrateCmd struct{ app *app }

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `arkark migrate

  Opens the database, applies pending migrations and prints the schema version.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		v, err := database.CurrentVersion(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "schema version %d\n", v)
		return nil
	})
}

type accountsCmd struct {
	app *app
	all bool
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list accounts" }
func (*accountsCmd) Usage() string {
	return `arkark accounts [-all]
`
}
func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Include archived accounts.")
}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		accts, err := repository.NewAccountRepo(db).List(ctx, repository.ListAccountsOptions{IncludeArchived: c.all})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tCURRENCY\tINSTITUTION\tARCHIVED")
		for _, a := range accts {
			inst := ""
			if a.Institution != nil {
				inst = *a.Institution
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", a.ID, a.Name, a.Type, a.Currency, inst, a.IsArchived)
		}
		return w.Flush()
	})
}

type balancesCmd struct {
	app  *app
	calc bool
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show account balances" }
func (*balancesCmd) Usage() string {
	return `arkark balances [-calc]

  Reads v_account_balances, or recomputes it from base rows with -calc.
`
}
func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.calc, "calc", false, "Recompute from base rows instead of reading the SQL view.")
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		var (
			rows []repository.AccountBalance
			err  error
		)
		if c.calc {
			rows, err = (&views.Calculator{DB: db}).AccountBalances(ctx)
		} else {
			rows, err = (&views.SQLViews{DB: db}).AccountBalances(ctx)
		}
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "NAME\tTYPE\tBALANCE\tTXNS\tLAST\t")
		for _, b := range rows {
			last := "-"
			if b.LastTransactionDate != nil {
				last = *b.LastTransactionDate
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", b.Name, b.Type,
				report.FormatCurrency(b.Balance, b.Currency), b.TransactionCount, last)
		}
		return w.Flush()
	})
}

type assetsCmd struct {
	app     *app
	calc    bool
	compact bool
}

func (*assetsCmd) Name() string     { return "assets" }
func (*assetsCmd) Synopsis() string { return "show the per-account assets summary" }
func (*assetsCmd) Usage() string {
	return `arkark assets [-calc] [-compact]
`
}
func (c *assetsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.calc, "calc", false, "Recompute from base rows instead of reading the SQL view.")
	f.BoolVar(&c.compact, "compact", false, "Print amounts in compact form (45K, 1.2M).")
}

func (c *assetsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		var (
			rows []views.AssetsSummary
			err  error
		)
		if c.calc {
			rows, err = (&views.Calculator{DB: db}).AssetsSummary(ctx)
		} else {
			rows, err = (&views.SQLViews{DB: db}).AssetsSummary(ctx)
		}
		if err != nil {
			return err
		}
		format := report.FormatCurrency
		if c.compact {
			format = report.FormatCompact
		}
		w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ACCOUNT\tTYPE\tCASH\tHOLDINGS\tP&L\tINSURANCE\tTOTAL\t")
		for _, s := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", s.AccountName, s.AccountType,
				format(s.CashBalance, s.Currency), format(s.HoldingsValue, s.Currency),
				format(s.UnrealizedPnL, s.Currency), format(s.InsuranceValue, s.Currency),
				format(s.TotalValue, s.Currency))
		}
		return w.Flush()
	})
}

type healthCmd struct {
	app    *app
	date   string
	sql    bool
	asJSON bool
}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "show the portfolio health check" }
func (*healthCmd) Usage() string {
	return `arkark health [-d YYYY-MM-DD] [-sql] [-json]

  Computes the health row with the expense window ending at -d (default
  today). With -sql the view is read instead and always ends today.
`
}
func (c *healthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date (YYYY-MM-DD).")
	f.BoolVar(&c.sql, "sql", false, "Read v_financial_health_check.")
	f.BoolVar(&c.asJSON, "json", false, "Print as JSON.")
}

func (c *healthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := c.app.asOf(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		var h views.FinancialHealth
		if c.sql {
			h, err = (&views.SQLViews{DB: db}).FinancialHealth(ctx)
		} else {
			h, err = (&views.Calculator{DB: db}).FinancialHealth(ctx, asOf)
		}
		if err != nil {
			return err
		}
		if c.asJSON {
			enc := json.NewEncoder(c.app.out)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}
		cur := c.app.cfg.UI.Currency
		w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Total assets\t%s\n", report.FormatCurrency(h.TotalAssets, cur))
		fmt.Fprintf(w, "Liquid cash\t%s\n", report.FormatCurrency(h.LiquidCash, cur))
		fmt.Fprintf(w, "Risk assets\t%s\n", report.FormatCurrency(h.RiskAssets, cur))
		fmt.Fprintf(w, "Insurance\t%s\n", report.FormatCurrency(h.TotalInsurance, cur))
		fmt.Fprintf(w, "Liabilities\t%s\n", report.FormatCurrency(h.TotalLiabilities, cur))
		fmt.Fprintf(w, "Net worth\t%s\n", report.FormatCurrency(h.NetWorth, cur))
		fmt.Fprintf(w, "Avg monthly expense\t%s\n", report.FormatCurrency(h.AvgMonthlyExpense, cur))
		if h.EmergencyFundMonths != nil {
			fmt.Fprintf(w, "Emergency fund\t%.1f months\n", *h.EmergencyFundMonths)
		} else {
			fmt.Fprintf(w, "Emergency fund\t-\n")
		}
		fmt.Fprintf(w, "Risk asset ratio\t%.1f%%\n", h.RiskAssetRatio)
		return w.Flush()
	})
}

type exportCmd struct {
	app      *app
	password string
	output   string
	date     string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export an encrypted health fingerprint" }
func (*exportCmd) Usage() string {
	return `arkark export -p <password> [-o file] [-d YYYY-MM-DD]

  Writes a JSON snapshot holding the fingerprint hash and the encrypted
  ratio-only metrics. No balances leave the database.
`
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "p", "", "Encryption password.")
	f.StringVar(&c.output, "o", "", "Output file (default stdout).")
	f.StringVar(&c.date, "d", "", "As-of date (YYYY-MM-DD).")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.password == "" {
		fmt.Fprintln(os.Stderr, "export: -p is required")
		return subcommands.ExitUsageError
	}
	asOf, err := c.app.asOf(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		snap, err := (&service.ExportService{DB: db, Log: c.app.log}).Export(ctx, c.password, asOf)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		b = append(b, '\n')
		if c.output == "" {
			_, err = c.app.out.Write(b)
			return err
		}
		return os.WriteFile(c.output, b, 0o600)
	})
}

type importCmd struct {
	app      *app
	password string
	input    string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "verify and decrypt an exported snapshot" }
func (*importCmd) Usage() string {
	return `arkark import -p <password> -i file
`
}
func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "p", "", "Encryption password.")
	f.StringVar(&c.input, "i", "", "Snapshot file written by export.")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.password == "" || c.input == "" {
		fmt.Fprintln(os.Stderr, "import: -p and -i are required")
		return subcommands.ExitUsageError
	}
	b, err := os.ReadFile(c.input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	var snap service.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "import: decode snapshot: %v\n", err)
		return subcommands.ExitFailure
	}
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		m, err := (&service.ExportService{DB: db, Log: c.app.log}).Import(ctx, snap, c.password)
		if err != nil {
			if errors.Is(err, secrets.ErrDecrypt) {
				return fmt.Errorf("snapshot %s: %w", snap.ID, err)
			}
			return err
		}
		fmt.Fprintln(c.app.out, secrets.GenerateFingerprint(m))
		return nil
	})
}

type ingestCmd struct {
	app  *app
	file string
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "import transactions from CSV" }
func (*ingestCmd) Usage() string {
	return `arkark ingest -f file.csv

  Columns: date,type,amount,account,category,note[,to_account]. A header row
  is optional. Rows already stored are skipped.
`
}
func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "CSV file to import.")
}

func (c *ingestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "ingest: -f is required")
		return subcommands.ExitUsageError
	}
	f, err := os.Open(c.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer f.Close()
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		return database.WithTx(ctx, db, func(tx *sql.Tx) error {
			res, err := service.NewIngestService(tx).ImportCSV(ctx, f)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				fmt.Fprintln(os.Stderr, e)
			}
			fmt.Fprintf(c.app.out, "imported %d, skipped %d, errors %d\n", res.Imported, res.Skipped, len(res.Errors))
			return nil
		})
	})
}

type seedDemoCmd struct{ app *app }

func (*seedDemoCmd) Name() string     { return "seed-demo" }
func (*seedDemoCmd) Synopsis() string { return "fill an empty database with sample data" }
func (*seedDemoCmd) Usage() string {
	return `arkark seed-demo
`
}
func (*seedDemoCmd) SetFlags(*flag.FlagSet) {}

func (c *seedDemoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		accts, err := repository.NewAccountRepo(db).List(ctx, repository.ListAccountsOptions{IncludeArchived: true})
		if err != nil {
			return err
		}
		if len(accts) > 0 {
			return errors.New("seed-demo: database already has accounts; run reset first")
		}
		if err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
			return service.SeedDemo(ctx, tx, c.app.now())
		}); err != nil {
			return err
		}
		fmt.Fprintln(c.app.out, "demo data created")
		return nil
	})
}

type resetCmd struct {
	app *app
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete all user data" }
func (*resetCmd) Usage() string {
	return `arkark reset -yes

  Deletes every account, transaction, holding, policy, budget and sync record.
  The schema and the default categories are kept.
`
}
func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm the reset.")
}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "reset: pass -yes to confirm")
		return subcommands.ExitUsageError
	}
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		if err := (&service.MaintenanceService{DB: db}).Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.app.out, "all data deleted")
		return nil
	})
}

type categoriesCmd struct {
	app     *app
	save    string
	restore string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "list, back up or restore categories" }
func (*categoriesCmd) Usage() string {
	return `arkark categories [-save file | -restore file]

  Without flags, lists every category. -save writes the user's own
  categories to a JSON file and -restore recreates the missing ones.
  Use "default" as the file for the per-user config location.
`
}
func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.save, "save", "", "Write user categories to this file.")
	f.StringVar(&c.restore, "restore", "", "Recreate categories from this file.")
}

func prefsPath(p string) (string, error) {
	if p == "default" {
		return prefs.DefaultPath()
	}
	return p, nil
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withStore(ctx, func(ctx context.Context, db *sql.DB) error {
		switch {
		case c.save != "":
			path, err := prefsPath(c.save)
			if err != nil {
				return err
			}
			cats, err := prefs.Collect(ctx, db)
			if err != nil {
				return err
			}
			if err := prefs.SaveCategories(path, cats); err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "saved %d categories to %s\n", len(cats), path)
			return nil
		case c.restore != "":
			path, err := prefsPath(c.restore)
			if err != nil {
				return err
			}
			cats, err := prefs.LoadCategories(path)
			if err != nil {
				return err
			}
			n, err := prefs.Restore(ctx, db, cats)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "restored %d categories\n", n)
			return nil
		}
		cats, err := repository.NewCategoryRepo(db).List(ctx, nil)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tSYSTEM")
		for _, cat := range cats {
			fmt.Fprintf(w, "%s\t%s\t%t\n", cat.Name, cat.Type, cat.IsSystem)
		}
		return w.Flush()
	})
}
