package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/model"
)

// draftFile is the YAML form of a draft entry. Accounts are referenced
// by chart code; amounts are decimal strings.
type draftFile struct {
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Reference   struct {
		Kind string `yaml:"kind"`
		ID   string `yaml:"id"`
	} `yaml:"reference"`
	Lines []draftFileLine `yaml:"lines"`
}

type draftFileLine struct {
	Account     string `yaml:"account"`
	Description string `yaml:"description"`
	Debit       string `yaml:"debit"`
	Credit      string `yaml:"credit"`
	Currency    string `yaml:"currency"`
	Amount      string `yaml:"amount"` // original-currency amount
	Rate        string `yaml:"rate"`
}

// loadDraft reads a draft YAML file and resolves its account codes
// against the workspace chart.
func (ws *workspace) loadDraft(path string) (model.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("reading draft: %w", err)
	}
	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing draft: %w", err)
	}

	date, err := time.Parse("2006-01-02", df.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing draft date %q: %w", df.Date, err)
	}

	var lines []journal.DraftLine
	for i, dl := range df.Lines {
		acct, err := ws.registry.ResolveCode(dl.Account)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: account %q: %w", i+1, dl.Account, err)
		}
		line := journal.DraftLine{
			AccountID:   acct.ID,
			Description: dl.Description,
			Currency:    dl.Currency,
		}
		if line.Debit, err = parseAmount(dl.Debit); err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: debit: %w", i+1, err)
		}
		if line.Credit, err = parseAmount(dl.Credit); err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: credit: %w", i+1, err)
		}
		if line.OriginalAmount, err = parseAmount(dl.Amount); err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: amount: %w", i+1, err)
		}
		if line.Rate, err = parseAmount(dl.Rate); err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: rate: %w", i+1, err)
		}
		lines = append(lines, line)
	}

	ref := model.SourceRef{Kind: df.Reference.Kind, ID: df.Reference.ID}
	return journal.NewDraft(ws.tenant, date, df.Description, ref, lines), nil
}

// writeDraft renders a draft transaction back to YAML, relative to the
// workspace root, so a reviewer can inspect and post it later.
func (ws *workspace) writeDraft(relPath string, draft model.Transaction) (string, error) {
	df := draftFile{
		Date:        draft.Date.Format("2006-01-02"),
		Description: draft.Description,
	}
	df.Reference.Kind = draft.Reference.Kind
	df.Reference.ID = draft.Reference.ID

	for _, l := range draft.Lines {
		acct, err := ws.registry.Resolve(l.AccountID)
		if err != nil {
			return "", fmt.Errorf("resolving account %s: %w", l.AccountID, err)
		}
		dl := draftFileLine{Account: acct.Code, Description: l.Description}
		if l.Debit.IsPositive() {
			dl.Debit = l.Debit.StringFixed(2)
		}
		if l.Credit.IsPositive() {
			dl.Credit = l.Credit.StringFixed(2)
		}
		df.Lines = append(df.Lines, dl)
	}

	data, err := yaml.Marshal(df)
	if err != nil {
		return "", fmt.Errorf("marshaling draft: %w", err)
	}
	path := filepath.Join(ws.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing draft: %w", err)
	}
	return path, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %q: %w", s, err)
	}
	return d, nil
}
