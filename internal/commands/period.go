package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallybook-dev/tallybook/internal/fiscal"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

func newPeriodCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage fiscal periods",
	}

	cmd.PersistentFlags().Int("year", time.Now().Year(), "fiscal year")
	cmd.PersistentFlags().Int("period", 0, "period number within the year")
	cmd.PersistentFlags().String("actor", "cli", "who is acting")

	cmd.AddCommand(newPeriodOpenCommand())
	cmd.AddCommand(newPeriodCloseCommand())
	cmd.AddCommand(newPeriodReopenCommand())
	cmd.AddCommand(newCloseYearCommand())

	return cmd
}

// resolvePeriod finds the period named by the --year/--period flags.
func resolvePeriod(ctx context.Context, cmd *cobra.Command, ws *workspace) (model.Period, model.FiscalYear, error) {
	year, _ := cmd.Flags().GetInt("year")
	number, _ := cmd.Flags().GetInt("period")
	if number == 0 {
		return model.Period{}, model.FiscalYear{}, fmt.Errorf("--period is required")
	}

	years, err := ws.store.FiscalYears(ctx, ws.tenant)
	if err != nil {
		return model.Period{}, model.FiscalYear{}, err
	}
	for _, fy := range years {
		if fy.Year != year {
			continue
		}
		for _, p := range fy.Periods {
			if p.Number == number {
				return p, fy, nil
			}
		}
		return model.Period{}, model.FiscalYear{}, fmt.Errorf("period %d of %d: %w", number, year, model.ErrNotFound)
	}
	return model.Period{}, model.FiscalYear{}, fmt.Errorf("fiscal year %d: %w", year, model.ErrNotFound)
}

func newPeriodOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open a future period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}
			p, _, err := resolvePeriod(cmd.Context(), cmd, ws)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")

			mgr := fiscal.NewManager(ws.store, ws.engine, ws.log)
			if err := mgr.OpenPeriod(cmd.Context(), ws.tenant, p.ID, actor); err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened period %d (%s)\n", p.Number, p.Name)
			return nil
		},
	}
}

// preCloseChecks evaluates the closeable-state checklist for a period.
func preCloseChecks(ctx context.Context, ws *workspace, p model.Period) ([]fiscal.Check, error) {
	drafts, err := ws.store.Transactions(ctx, ws.tenant, store.TxFilter{
		Status: model.StatusDraft,
		From:   p.Start,
		To:     p.End,
	})
	if err != nil {
		return nil, err
	}
	return []fiscal.Check{
		{Name: "unposted_entries_exist", Passed: len(drafts) == 0},
	}, nil
}

func newPeriodCloseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close an open period, generating closing entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}
			p, _, err := resolvePeriod(cmd.Context(), cmd, ws)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")

			checks, err := preCloseChecks(cmd.Context(), ws, p)
			if err != nil {
				return err
			}
			summary, err := ws.summaryAccounts()
			if err != nil {
				return err
			}

			mgr := fiscal.NewManager(ws.store, ws.engine, ws.log)
			if err := mgr.ClosePeriod(cmd.Context(), ws.tenant, p.ID, actor, checks, summary); err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed period %d (%s)\n", p.Number, p.Name)
			return nil
		},
	}
}

func newPeriodReopenCommand() *cobra.Command {
	var reason, token string

	cmd := &cobra.Command{
		Use:   "reopen",
		Short: "Reopen a closed period (audited)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}
			p, _, err := resolvePeriod(cmd.Context(), cmd, ws)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")

			approval := fiscal.Approval{Token: token, Granted: token != ""}
			mgr := fiscal.NewManager(ws.store, ws.engine, ws.log)
			if err := mgr.Reopen(cmd.Context(), ws.tenant, p.ID, actor, reason, approval); err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened period %d (%s)\n", p.Number, p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason for reopening (required)")
	_ = cmd.MarkFlagRequired("reason")
	cmd.Flags().StringVar(&token, "approval-token", "", "approval token (required)")
	_ = cmd.MarkFlagRequired("approval-token")
	return cmd
}

func newCloseYearCommand() *cobra.Command {
	var openingDraft string

	cmd := &cobra.Command{
		Use:   "close-year",
		Short: "Close a fiscal year and emit the successor's opening balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}
			year, _ := cmd.Flags().GetInt("year")
			actor, _ := cmd.Flags().GetString("actor")

			years, err := ws.store.FiscalYears(cmd.Context(), ws.tenant)
			if err != nil {
				return err
			}
			var fy model.FiscalYear
			found := false
			for _, y := range years {
				if y.Year == year {
					fy, found = y, true
					break
				}
			}
			if !found {
				return fmt.Errorf("fiscal year %d: %w", year, model.ErrNotFound)
			}

			mgr := fiscal.NewManager(ws.store, ws.engine, ws.log)
			opening, err := mgr.CloseFiscalYear(cmd.Context(), ws.tenant, fy.ID, actor)
			if err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Closed fiscal year %d\n", year)
			if len(opening.Lines) > 0 {
				path, err := ws.writeDraft(openingDraft, opening)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opening-balance draft for %d written to %s; review and post it\n", year+1, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&openingDraft, "opening-draft", "journal/opening-balances.yaml", "where to write the successor year's opening draft")
	return cmd
}
