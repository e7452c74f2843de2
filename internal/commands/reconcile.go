package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/reconcile"
	"github.com/tallybook-dev/tallybook/internal/store"
)

func newReconcileCommand() *cobra.Command {
	var accountCode, fromStr, toStr string

	cmd := &cobra.Command{
		Use:   "reconcile <feed.csv>",
		Short: "Match a bank feed against posted ledger lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			acct, err := ws.registry.ResolveCode(accountCode)
			if err != nil {
				return fmt.Errorf("bank account %q: %w", accountCode, err)
			}

			window, err := parseWindow(fromStr, toStr)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening feed: %w", err)
			}
			defer f.Close()
			feed, err := reconcile.ReadBankFeed(f)
			if err != nil {
				return err
			}

			items, err := ledgerItems(cmd, ws, acct, window)
			if err != nil {
				return err
			}

			matcher := reconcile.NewMatcher(ws.cfg.MatcherConfig(), ws.log)
			report, err := matcher.Reconcile(cmd.Context(), acct.ID, feed, items, window)
			if err != nil {
				return err
			}

			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountCode, "account", "", "bank account code in the chart (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&fromStr, "from", "", "statement start, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&toStr, "to", "", "statement end, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseWindow(fromStr, toStr string) (reconcile.Window, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return reconcile.Window{}, fmt.Errorf("parsing --from %q: %w", fromStr, err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return reconcile.Window{}, fmt.Errorf("parsing --to %q: %w", toStr, err)
	}
	if to.Before(from) {
		return reconcile.Window{}, fmt.Errorf("statement window ends before it starts")
	}
	return reconcile.Window{Start: from, End: to}, nil
}

// ledgerItems flattens posted lines on the bank account into matcher
// input. Lines dated after the window stay in: they are deposit-in-
// transit candidates. Amounts are signed from the bank's perspective,
// debit positive for an asset cash account.
func ledgerItems(cmd *cobra.Command, ws *workspace, acct model.Account, window reconcile.Window) ([]reconcile.LedgerItem, error) {
	txns, err := ws.store.Transactions(cmd.Context(), ws.tenant, store.TxFilter{
		Status:    model.StatusPosted,
		From:      window.Start,
		AccountID: acct.ID,
	})
	if err != nil {
		return nil, err
	}

	var items []reconcile.LedgerItem
	for _, tx := range txns {
		for _, l := range tx.Lines {
			if l.AccountID != acct.ID {
				continue
			}
			items = append(items, reconcile.LedgerItem{
				LineID:      l.ID,
				TxID:        tx.ID,
				AccountID:   acct.ID,
				Date:        tx.Date,
				Amount:      l.Debit.Sub(l.Credit),
				Description: firstNonEmpty(l.Description, tx.Description),
			})
		}
	}
	return items, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func printReport(cmd *cobra.Command, report reconcile.Report) {
	out := cmd.OutOrStdout()

	for _, m := range report.Matches {
		fmt.Fprintf(out, "%-9s %s -> %v (confidence %s, %s)\n",
			m.Type, m.BankExternalID, m.LineIDs, m.Confidence.StringFixed(2), m.Band)
	}
	for _, u := range report.UnmatchedBank {
		fmt.Fprintf(out, "unmatched bank %s %s (%s): %s\n",
			u.Txn.ExternalID, u.Txn.Amount.StringFixed(2), u.Kind, u.Txn.Description)
	}
	for _, u := range report.UnmatchedLedger {
		fmt.Fprintf(out, "unmatched ledger %s %s (%s): %s\n",
			u.Item.LineID, u.Item.Amount.StringFixed(2), u.Kind, u.Item.Description)
	}
	fmt.Fprintf(out, "bank total %s, ledger total %s, variance %s\n",
		report.BankTotal.StringFixed(2), report.LedgerTotal.StringFixed(2), report.Variance.StringFixed(2))
}
