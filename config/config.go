package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Provider ProviderConfig `mapstructure:"provider"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Isolation applies to every ledger-mutating transaction:
	// read_committed, repeatable_read or serializable.
	Isolation      string `mapstructure:"isolation"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LedgerConfig holds ledger business settings.
type LedgerConfig struct {
	// ServiceAccountID is the counterparty account for every credit, debit,
	// refill and purchase. One resolved value instead of a literal scattered
	// across components.
	ServiceAccountID string `mapstructure:"service_account_id"`
	Currency         string `mapstructure:"currency"`
	// RefillAmount is the fixed placeholder used when a payment link is
	// requested without a product.
	RefillAmount string `mapstructure:"refill_amount"`
	// AuditTolerance is the absolute drift allowed between the cached balance
	// and the balance recomputed from history.
	AuditTolerance string `mapstructure:"audit_tolerance"`
}

// ServiceAccountUUID parses the configured service account id.
func (l LedgerConfig) ServiceAccountUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(l.ServiceAccountID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing ledger.service_account_id: %w", err)
	}
	return id, nil
}

// RefillAmountDecimal parses the configured placeholder refill amount.
func (l LedgerConfig) RefillAmountDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(l.RefillAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ledger.refill_amount: %w", err)
	}
	return d, nil
}

// AuditToleranceDecimal parses the configured audit tolerance.
func (l LedgerConfig) AuditToleranceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(l.AuditTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ledger.audit_tolerance: %w", err)
	}
	return d, nil
}

// ProviderConfig holds hosted-checkout provider settings.
type ProviderConfig struct {
	CheckoutBaseURL string `mapstructure:"checkout_base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: BLG_ (Balance Ledger).
// Nested keys use underscore: BLG_DATABASE_HOST, BLG_LEDGER_CURRENCY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "balance_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.isolation", "repeatable_read")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.service_account_id", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("ledger.refill_amount", "10")
	v.SetDefault("ledger.audit_tolerance", "0.01")
	v.SetDefault("provider.checkout_base_url", "https://checkout.example.com/session")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: BLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("BLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
