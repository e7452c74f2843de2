package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	cfg.BankAccounts = []BankAccount{
		{Name: "Chase Checking", LastFour: "1234", AccountCode: "1010"},
	}

	path := filepath.Join(t.TempDir(), "tallybook.yaml")
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Business.Name, got.Business.Name)
	assert.Equal(t, cfg.Business.EntityType, got.Business.EntityType)
	assert.Equal(t, cfg.Fiscal.YearStart, got.Fiscal.YearStart)
	assert.Equal(t, cfg.Fiscal.Periods, got.Fiscal.Periods)
	assert.Equal(t, "USD", got.Currency.Base)
	assert.InDelta(t, cfg.Thresholds.AutoConfirm, got.Thresholds.AutoConfirm, 0.001)
	assert.InDelta(t, cfg.Thresholds.ReviewFlag, got.Thresholds.ReviewFlag, 0.001)
	assert.Equal(t, cfg.Reconcile.FeeKeywords, got.Reconcile.FeeKeywords)
	require.Len(t, got.BankAccounts, 1)
	assert.Equal(t, "Chase Checking", got.BankAccounts[0].Name)
	assert.Equal(t, "1010", got.BankAccounts[0].AccountCode)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", "llc_single_member")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "llc_single_member", cfg.Business.EntityType)
	assert.Equal(t, "01-01", cfg.Fiscal.YearStart)
	assert.Equal(t, 12, cfg.Fiscal.Periods)
	assert.Equal(t, "USD", cfg.Currency.Base)
	assert.InDelta(t, 0.01, cfg.Currency.BalanceTolerance, 0.0001)
	assert.Equal(t, 3, cfg.Reconcile.DateToleranceDays)
	assert.InDelta(t, 0.95, cfg.Thresholds.AutoConfirm, 0.001)
	assert.InDelta(t, 0.80, cfg.Thresholds.ReviewFlag, 0.001)
	assert.Empty(t, cfg.BankAccounts)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	path := filepath.Join(t.TempDir(), "tallybook.yaml")
	err := Save(path, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "entity_type: llc_single_member")
	assert.Contains(t, contents, "year_start:")
	assert.Contains(t, contents, "base: USD")
}

func TestMatcherConfig(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	cfg.Reconcile.DateToleranceDays = 5
	cfg.Thresholds.ReviewFlag = 0.7

	mc := cfg.MatcherConfig()
	assert.Equal(t, 5*24*time.Hour, mc.DateTolerance)
	assert.True(t, mc.SuggestFloor.Equal(decimal.NewFromFloat(0.7)))
	assert.True(t, mc.AutoFloor.Equal(decimal.NewFromFloat(0.95)))
}

func TestFiscalYearStart(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	cfg.Fiscal.YearStart = "04-01"

	start, err := cfg.FiscalYearStart(2025)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), start)

	cfg.Fiscal.YearStart = "13-01"
	_, err = cfg.FiscalYearStart(2025)
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	db := Database{Host: "db.internal", Port: 5433, User: "books", Password: "s3cret", Name: "ledger", SSLMode: "require"}
	assert.Equal(t, "host=db.internal port=5433 user=books password=s3cret dbname=ledger sslmode=require", db.DSN())
}
