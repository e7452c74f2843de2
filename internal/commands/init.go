package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallybook-dev/tallybook/internal/accounts"
	"github.com/tallybook-dev/tallybook/internal/config"
	"github.com/tallybook-dev/tallybook/internal/fiscal"
	"github.com/tallybook-dev/tallybook/internal/model"
)

func newInitCommand() *cobra.Command {
	var name string
	var entityType string
	var year int

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tallybook workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, entityType, year)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&entityType, "entity-type", "llc_single_member", "entity type")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "first fiscal year")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, entityType string, year int) error {
	dirs := []string{
		filepath.Dir(chartFile),
		filepath.Dir(journalFile),
		filepath.Dir(periodsFile),
		filepath.Dir(ratesFile),
		feedsDir,
		logsDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	tenant := uuid.New()

	cfg := config.Default(name, entityType)
	cfg.Business.TenantID = tenant.String()
	if err := config.Save(filepath.Join(dir, configFile), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	chart := accounts.DefaultChart(tenant)
	if err := writeCSV(filepath.Join(dir, chartFile), chart, accounts.WriteAccounts); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	start, err := cfg.FiscalYearStart(year)
	if err != nil {
		return err
	}
	fy, err := fiscal.GenerateYear(tenant, year, start, cfg.Fiscal.Periods)
	if err != nil {
		return err
	}
	// The first period opens immediately so a fresh workspace can post.
	fy.Status = model.PeriodOpen
	fy.Periods[0].Status = model.PeriodOpen
	if err := writeCSV(filepath.Join(dir, periodsFile), []model.FiscalYear{fy}, fiscal.WriteYears); err != nil {
		return fmt.Errorf("writing periods: %w", err)
	}

	gitignore := "feeds/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized tallybook workspace at %s (fiscal year %d)\n", dir, year)
	return nil
}
