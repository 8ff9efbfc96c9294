package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokens(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRM_WEBHOOK_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("WEBHOOK_TOKENS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, "Europe/Stockholm", cfg.GetBookingLocation().String())
	assert.Equal(t, 8, cfg.GetCRMSyncMaxRetry())
	assert.Equal(t, 10*time.Second, cfg.GetCRMSyncTimeout())
	assert.Equal(t, []IntegrationToken{{Name: DefaultIntegration, Token: "s3cret"}}, cfg.GetWebhookTokens())
	assert.NoError(t, cfg.ValidateAPI())
	assert.False(t, cfg.IsMinIOEnabled())
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("BOOKING_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKING_TIMEZONE")
}

func TestValidateAPIRequiresAToken(t *testing.T) {
	t.Setenv("CRM_WEBHOOK_SECRET", "")
	t.Setenv("WEBHOOK_TOKENS_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")

	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualError(t, cfg.ValidateAPI(), "CRM_WEBHOOK_SECRET or WEBHOOK_TOKENS_FILE is required")
}

func TestValidateSender(t *testing.T) {
	cfg := &Config{CRMWebhookSecret: "s"}
	assert.Error(t, cfg.ValidateSender())

	cfg.CRMWebhookURL = "https://crm.example.com"
	assert.NoError(t, cfg.ValidateSender())
}

func TestTokenTableSkipsDisabledIntegrations(t *testing.T) {
	path := writeTokens(t, `
integrations:
  - name: calendly
    token: cal-token
  - name: legacy-form
    token: old-token
    disabled: true
`)
	t.Setenv("CRM_WEBHOOK_SECRET", "s3cret")
	t.Setenv("WEBHOOK_TOKENS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	tokens := cfg.GetWebhookTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, DefaultIntegration, tokens[0].Name)
	assert.Equal(t, "calendly", tokens[1].Name)
}

func TestLoadIntegrationTokensErrors(t *testing.T) {
	cases := map[string]string{
		"missing name":   "integrations:\n  - token: abc\n",
		"missing token":  "integrations:\n  - name: a\n",
		"duplicate name": "integrations:\n  - name: a\n    token: x\n  - name: a\n    token: y\n",
		"bad yaml":       "integrations: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadIntegrationTokens(writeTokens(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadIntegrationTokensMissingFile(t *testing.T) {
	_, err := LoadIntegrationTokens(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
