package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zohoToken = `
integrations:
  zoho:
    oauth_token: ${TEST_ZOHO_TOKEN}
`

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: tax_intake
    user: intake
  redis:
    address: localhost:6379
orders:
  checkout_base_url: https://example.ch/checkout
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("TEST_ZOHO_TOKEN", "token-123")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+zohoToken))
	require.NoError(t, err)

	assert.Equal(t, "tax-intake", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":9090", cfg.Server.OpsAddress)
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.Server.SessionTTL))
	assert.Equal(t, time.Now().Year()-1, cfg.Questionnaire.FilingYear)
	assert.Equal(t, "CHF", cfg.Questionnaire.Currency)
	assert.Equal(t, IntakeBackendZoho, cfg.Intake.Backend)
	assert.Equal(t, 24*time.Hour, GetDuration(cfg.Intake.DedupeTTL))
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "questionnaire-events", cfg.Analytics.ElasticsearchIndex)
	assert.Equal(t, "token-123", cfg.Integrations.Zoho.AuthToken)
}

func TestLoadFromFile_EnvFallback(t *testing.T) {
	t.Setenv("ZOHO_CRM_OAUTH_TOKEN", "from-env")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Integrations.Zoho.AuthToken)
	assert.Equal(t, "secret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name     string
		extra    string
		expected string
	}{
		{
			name:     "camunda backend needs camunda",
			extra:    "intake:\n  backend: camunda\n",
			expected: "camunda.enabled",
		},
		{
			name:     "unknown backend",
			extra:    "intake:\n  backend: fax\n",
			expected: "not supported",
		},
		{
			name:     "negative auto advance",
			extra:    "questionnaire:\n  auto_advance_delay_ms: -1\n",
			expected: "auto_advance_delay_ms",
		},
		{
			name:     "camunda without broker",
			extra:    "camunda:\n  enabled: true\n",
			expected: "broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ZOHO_TOKEN", "token-123")

			_, err := LoadFromFile(writeConfig(t, minimalConfig+zohoToken+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoadFromFile_RelativeCheckoutURL(t *testing.T) {
	t.Setenv("TEST_ZOHO_TOKEN", "token-123")
	body := strings.Replace(minimalConfig, "https://example.ch/checkout", "/checkout", 1)

	_, err := LoadFromFile(writeConfig(t, body+zohoToken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout_base_url")
}

func TestLoadFromFile_MissingZohoToken(t *testing.T) {
	t.Setenv("ZOHO_CRM_OAUTH_TOKEN", "")

	_, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth_token")
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", p.GetDSN())
}
