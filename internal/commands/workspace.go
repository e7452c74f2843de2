package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tallybook-dev/tallybook/internal/accounts"
	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/config"
	"github.com/tallybook-dev/tallybook/internal/currency"
	"github.com/tallybook-dev/tallybook/internal/fiscal"
	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/logging"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/posting"
	"github.com/tallybook-dev/tallybook/internal/store"
)

// Workspace file layout, relative to the workspace root.
const (
	configFile   = "tallybook.yaml"
	chartFile    = "accounts/chart-of-accounts.csv"
	journalFile  = "journal/general-journal.csv"
	periodsFile  = "fiscal/periods.csv"
	ratesFile    = "rates/exchange-rates.csv"
	feedsDir     = "feeds"
	logsDir      = "logs"
)

// workspace is one loaded tallybook directory: config plus the CSV
// state hydrated into an in-memory ledger.
type workspace struct {
	dir      string
	cfg      *config.Config
	tenant   uuid.UUID
	store    *store.Memory
	registry *accounts.Registry
	conv     *currency.Converter
	engine   *posting.Engine
	log      *zap.Logger
}

// openWorkspace loads the workspace rooted at dir.
func openWorkspace(dir string) (*workspace, error) {
	cfg, err := config.Load(filepath.Join(dir, configFile))
	if err != nil {
		return nil, err
	}
	tenant, err := uuid.Parse(cfg.Business.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parsing tenant_id %q: %w", cfg.Business.TenantID, err)
	}

	ws := &workspace{
		dir:    dir,
		cfg:    cfg,
		tenant: tenant,
		store:  store.NewMemory(),
		log:    logging.New(os.Getenv("TALLYBOOK_LOG")),
	}

	chart, err := readCSV(filepath.Join(dir, chartFile), accounts.ReadAccounts)
	if err != nil {
		return nil, err
	}
	ws.registry, err = accounts.NewRegistry(chart)
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	for _, a := range chart {
		ws.store.PutAccount(a)
	}

	years, err := readCSV(filepath.Join(dir, periodsFile), fiscal.ReadYears)
	if err != nil {
		return nil, err
	}
	for _, fy := range years {
		ws.store.PutFiscalYear(fy)
	}

	txns, err := readCSV(filepath.Join(dir, journalFile), journal.ReadTransactions)
	if err != nil {
		return nil, err
	}
	for _, tx := range txns {
		ws.store.PutTransaction(tx)
	}

	rates, err := readCSV(filepath.Join(dir, ratesFile), currency.ReadRates)
	if err != nil {
		return nil, err
	}
	ws.conv = currency.NewConverter(rates)
	ws.engine = posting.NewEngine(ws.store, ws.conv, ws.cfg.Currency.Base, ws.log)
	return ws, nil
}

// readCSV loads path through read, treating a missing file as empty.
func readCSV[T any](path string, read func(r io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// save writes the ledger state back to the workspace CSVs and appends
// this run's audit entries to the log.
func (ws *workspace) save(ctx context.Context) error {
	accts, err := ws.store.Accounts(ctx, ws.tenant)
	if err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(ws.dir, chartFile), accts, accounts.WriteAccounts); err != nil {
		return err
	}

	txns, err := ws.store.Transactions(ctx, ws.tenant, store.TxFilter{})
	if err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(ws.dir, journalFile), txns, journal.WriteTransactions); err != nil {
		return err
	}

	years, err := ws.store.FiscalYears(ctx, ws.tenant)
	if err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(ws.dir, periodsFile), years, fiscal.WriteYears); err != nil {
		return err
	}

	// The in-memory audit log holds only entries recorded this run.
	entries, err := ws.store.AuditLog(ctx, ws.tenant)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := audit.Append(ws.dir, entries); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV[T any](path string, items []T, write func(w io.Writer, items []T) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, items); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// summaryAccounts resolves the well-known closing accounts.
func (ws *workspace) summaryAccounts() (fiscal.SummaryAccounts, error) {
	is, err := ws.registry.ResolveCode(accounts.CodeIncomeSummary)
	if err != nil {
		return fiscal.SummaryAccounts{}, fmt.Errorf("income summary account: %w", err)
	}
	re, err := ws.registry.ResolveCode(accounts.CodeRetainedEarnings)
	if err != nil {
		return fiscal.SummaryAccounts{}, fmt.Errorf("retained earnings account: %w", err)
	}
	return fiscal.SummaryAccounts{IncomeSummary: is.ID, RetainedEarnings: re.ID}, nil
}

// findByEntryNo resolves a human-readable entry number to a
// transaction.
func (ws *workspace) findByEntryNo(ctx context.Context, entryNo string) (model.Transaction, error) {
	txns, err := ws.store.Transactions(ctx, ws.tenant, store.TxFilter{})
	if err != nil {
		return model.Transaction{}, err
	}
	for _, tx := range txns {
		if tx.EntryNo == entryNo {
			return tx, nil
		}
	}
	return model.Transaction{}, fmt.Errorf("entry %s: %w", entryNo, model.ErrNotFound)
}
