package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tallybook-dev/tallybook/internal/reconcile"
)

// Config represents the top-level tallybook.yaml configuration.
type Config struct {
	Business     BusinessConfig   `yaml:"business"`
	Fiscal       FiscalConfig     `yaml:"fiscal"`
	Currency     CurrencyConfig   `yaml:"currency"`
	BankAccounts []BankAccount    `yaml:"bank_accounts,omitempty"`
	Reconcile    ReconcileConfig  `yaml:"reconcile"`
	Thresholds   ThresholdsConfig `yaml:"thresholds"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
	TenantID   string `yaml:"tenant_id"`
}

// FiscalConfig defines the fiscal year boundaries.
type FiscalConfig struct {
	YearStart string `yaml:"year_start"` // "MM-DD" format, e.g. "01-01"
	// Periods is 12, or 13 for a year-end adjustment period.
	Periods int `yaml:"periods"`
}

// CurrencyConfig sets the base currency and tolerances.
type CurrencyConfig struct {
	Base string `yaml:"base"`
	// BalanceTolerance is the maximum debit/credit imbalance accepted
	// on a posting, in currency units.
	BalanceTolerance float64 `yaml:"balance_tolerance"`
	// Materiality is the minimum revaluation delta worth posting.
	Materiality float64 `yaml:"materiality"`
}

// BankAccount maps a bank feed to a chart-of-accounts entry.
type BankAccount struct {
	Name        string `yaml:"name"`
	LastFour    string `yaml:"last_four"`
	AccountCode string `yaml:"account_code"`
}

// ReconcileConfig tunes the bank reconciliation matcher.
type ReconcileConfig struct {
	DateToleranceDays int      `yaml:"date_tolerance_days"`
	SimilarityFloor   float64  `yaml:"similarity_floor"`
	AmountTolerance   float64  `yaml:"amount_tolerance"`
	MaxSplit          int      `yaml:"max_split"`
	FeeKeywords       []string `yaml:"fee_keywords,omitempty"`
}

// ThresholdsConfig bands match confidences: at or above AutoConfirm a
// match applies without review, at or above ReviewFlag it is suggested.
type ThresholdsConfig struct {
	AutoConfirm float64 `yaml:"auto_confirm"`
	ReviewFlag  float64 `yaml:"review_flag"`
}

// Database holds connection settings, read from the environment rather
// than tallybook.yaml so credentials stay out of the workspace.
type Database struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"tallybook"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"tallybook"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN renders the connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// LoadDatabase reads database settings from the environment, honoring a
// .env file when present.
func LoadDatabase() (Database, error) {
	_ = godotenv.Load()
	var db Database
	if err := envconfig.Process("TALLYBOOK", &db); err != nil {
		return Database{}, fmt.Errorf("reading database environment: %w", err)
	}
	return db, nil
}

// Load reads a tallybook.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(businessName, entityType string) *Config {
	rc := reconcile.DefaultConfig()
	return &Config{
		Business: BusinessConfig{
			Name:       businessName,
			EntityType: entityType,
		},
		Fiscal: FiscalConfig{
			YearStart: "01-01",
			Periods:   12,
		},
		Currency: CurrencyConfig{
			Base:             "USD",
			BalanceTolerance: 0.01,
			Materiality:      0.01,
		},
		Reconcile: ReconcileConfig{
			DateToleranceDays: int(rc.DateTolerance / (24 * time.Hour)),
			SimilarityFloor:   rc.SimilarityFloor,
			AmountTolerance:   0.01,
			MaxSplit:          rc.MaxSplit,
			FeeKeywords:       rc.FeeKeywords,
		},
		Thresholds: ThresholdsConfig{
			AutoConfirm: 0.95,
			ReviewFlag:  0.80,
		},
	}
}

// MatcherConfig translates the YAML settings into matcher thresholds.
func (c *Config) MatcherConfig() reconcile.Config {
	cfg := reconcile.DefaultConfig()
	if c.Reconcile.DateToleranceDays > 0 {
		cfg.DateTolerance = time.Duration(c.Reconcile.DateToleranceDays) * 24 * time.Hour
	}
	if c.Reconcile.SimilarityFloor > 0 {
		cfg.SimilarityFloor = c.Reconcile.SimilarityFloor
	}
	if c.Reconcile.AmountTolerance > 0 {
		cfg.AmountTolerance = decimal.NewFromFloat(c.Reconcile.AmountTolerance)
	}
	if c.Reconcile.MaxSplit > 0 {
		cfg.MaxSplit = c.Reconcile.MaxSplit
	}
	if len(c.Reconcile.FeeKeywords) > 0 {
		cfg.FeeKeywords = c.Reconcile.FeeKeywords
	}
	if c.Thresholds.AutoConfirm > 0 {
		cfg.AutoFloor = decimal.NewFromFloat(c.Thresholds.AutoConfirm)
	}
	if c.Thresholds.ReviewFlag > 0 {
		cfg.SuggestFloor = decimal.NewFromFloat(c.Thresholds.ReviewFlag)
	}
	return cfg
}

// FiscalYearStart resolves the configured "MM-DD" start for a year.
func (c *Config) FiscalYearStart(year int) (time.Time, error) {
	start, err := time.Parse("2006-01-02", fmt.Sprintf("%04d-%s", year, c.Fiscal.YearStart))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing fiscal year_start %q: %w", c.Fiscal.YearStart, err)
	}
	return start, nil
}
