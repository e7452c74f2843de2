package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tallybook-dev/tallybook/internal/accounts"
	"github.com/tallybook-dev/tallybook/internal/currency"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

func newRevalueCommand() *cobra.Command {
	var asOfStr, actor string

	cmd := &cobra.Command{
		Use:   "revalue",
		Short: "Post unrealized gain/loss on foreign-currency balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			asOf, err := time.Parse("2006-01-02", asOfStr)
			if err != nil {
				return fmt.Errorf("parsing --as-of %q: %w", asOfStr, err)
			}

			positions, err := openPositions(cmd, ws)
			if err != nil {
				return err
			}
			if len(positions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No foreign-currency positions to revalue")
				return nil
			}

			gainLoss, err := gainLossAccounts(ws)
			if err != nil {
				return err
			}

			tolerance := decimal.NewFromFloat(ws.cfg.Currency.Materiality)
			drafts, err := ws.conv.Revalue(ws.tenant, ws.cfg.Currency.Base, positions, asOf, tolerance, gainLoss)
			if err != nil {
				return err
			}

			for _, draft := range drafts {
				posted, err := ws.engine.Post(cmd.Context(), draft, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s: %s\n", posted.EntryNo, posted.Description)
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All differences below materiality; nothing posted")
				return nil
			}
			return ws.save(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&asOfStr, "as-of", "", "revaluation date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("as-of")
	cmd.Flags().StringVar(&actor, "actor", "cli", "who is revaluing")
	return cmd
}

// openPositions collects the foreign-currency balances still on the
// books: for each account denominated off-base, the original-currency
// amount is the signed sum of its posted lines' original amounts.
func openPositions(cmd *cobra.Command, ws *workspace) ([]currency.Position, error) {
	accts, err := ws.store.Accounts(cmd.Context(), ws.tenant)
	if err != nil {
		return nil, err
	}

	var positions []currency.Position
	for _, a := range accts {
		if a.Currency == "" || a.Currency == ws.cfg.Currency.Base || a.IsHeader {
			continue
		}

		txns, err := ws.store.Transactions(cmd.Context(), ws.tenant, store.TxFilter{
			Status:    model.StatusPosted,
			AccountID: a.ID,
		})
		if err != nil {
			return nil, err
		}

		original := decimal.Zero
		for _, tx := range txns {
			for _, l := range tx.Lines {
				if l.AccountID != a.ID || l.Currency != a.Currency {
					continue
				}
				if l.Debit.IsPositive() {
					original = original.Add(l.OriginalAmount)
				} else {
					original = original.Sub(l.OriginalAmount)
				}
			}
		}
		if original.IsZero() && a.Balance.IsZero() {
			continue
		}

		positions = append(positions, currency.Position{
			AccountID:      a.ID,
			Currency:       a.Currency,
			OriginalAmount: original,
			BaseAmount:     a.Balance,
		})
	}
	return positions, nil
}

func gainLossAccounts(ws *workspace) (currency.GainLossAccounts, error) {
	gain, err := ws.registry.ResolveCode(accounts.CodeFXGain)
	if err != nil {
		return currency.GainLossAccounts{}, fmt.Errorf("fx gain account: %w", err)
	}
	loss, err := ws.registry.ResolveCode(accounts.CodeFXLoss)
	if err != nil {
		return currency.GainLossAccounts{}, fmt.Errorf("fx loss account: %w", err)
	}
	return currency.GainLossAccounts{FXGain: gain.ID, FXLoss: loss.ID}, nil
}

func newTrialBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance and check the accounting equation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			tb, err := ws.engine.TrialBalance(cmd.Context(), ws.tenant)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, row := range tb.Rows {
				fmt.Fprintf(out, "%-6s %-30s %12s %12s\n",
					row.Account.Code, row.Account.Name, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
			}
			fmt.Fprintf(out, "%-37s %12s %12s\n", "TOTAL", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))

			tolerance := decimal.NewFromFloat(ws.cfg.Currency.BalanceTolerance)
			if !tb.Balanced(tolerance) {
				return fmt.Errorf("trial balance out of balance by %s", tb.TotalDebit.Sub(tb.TotalCredit).Abs().StringFixed(2))
			}

			eq, err := ws.engine.CheckEquation(cmd.Context(), ws.tenant)
			if err != nil {
				return err
			}
			if !eq.Holds(tolerance) {
				return fmt.Errorf("accounting equation violated: assets %s vs claims %s",
					eq.Assets.StringFixed(2), eq.Claims.StringFixed(2))
			}
			fmt.Fprintf(out, "assets %s = liabilities + equity + net income %s\n",
				eq.Assets.StringFixed(2), eq.Claims.StringFixed(2))
			return nil
		},
	}
}
