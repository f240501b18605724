package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "balance_ledger", cfg.Database.DBName)
	assert.Equal(t, "repeatable_read", cfg.Database.Isolation)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.Ledger.ServiceAccountID)
	assert.Equal(t, "USD", cfg.Ledger.Currency)
	assert.Equal(t, "10", cfg.Ledger.RefillAmount)
	assert.Equal(t, "0.01", cfg.Ledger.AuditTolerance)

	assert.Equal(t, "https://checkout.example.com/session", cfg.Provider.CheckoutBaseURL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090
  mode: "release"
database:
  host: "db.example.com"
  port: 5433
  dbname: "ledgerdb"
  isolation: "serializable"
ledger:
  service_account_id: "11111111-1111-1111-1111-111111111111"
  currency: "EUR"
  refill_amount: "25.50"
provider:
  checkout_base_url: "https://pay.example.org/cs"
log:
  level: "debug"
  pretty: true
`)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "ledgerdb", cfg.Database.DBName)
	assert.Equal(t, "serializable", cfg.Database.Isolation)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", cfg.Ledger.ServiceAccountID)
	assert.Equal(t, "EUR", cfg.Ledger.Currency)
	assert.Equal(t, "25.50", cfg.Ledger.RefillAmount)
	assert.Equal(t, "https://pay.example.org/cs", cfg.Provider.CheckoutBaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)

	// Unspecified keys keep defaults.
	assert.Equal(t, "0.01", cfg.Ledger.AuditTolerance)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BLG_DATABASE_HOST", "env-db-host")
	t.Setenv("BLG_LEDGER_CURRENCY", "GBP")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-db-host", cfg.Database.Host)
	assert.Equal(t, "GBP", cfg.Ledger.Currency)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "u", Password: "p", DBName: "ledger", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@localhost:5432/ledger?sslmode=disable", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}

func TestLedgerConfig_ParsedValues(t *testing.T) {
	l := LedgerConfig{
		ServiceAccountID: "00000000-0000-0000-0000-000000000001",
		RefillAmount:     "10",
		AuditTolerance:   "0.01",
	}

	id, err := l.ServiceAccountUUID()
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", id.String())

	amount, err := l.RefillAmountDecimal()
	require.NoError(t, err)
	assert.Equal(t, "10", amount.String())

	tol, err := l.AuditToleranceDecimal()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())
}

func TestLedgerConfig_ParseErrors(t *testing.T) {
	l := LedgerConfig{ServiceAccountID: "not-a-uuid", RefillAmount: "abc", AuditTolerance: "??"}

	_, err := l.ServiceAccountUUID()
	assert.Error(t, err)
	_, err = l.RefillAmountDecimal()
	assert.Error(t, err)
	_, err = l.AuditToleranceDecimal()
	assert.Error(t, err)
}
