package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"MVW_API_URL", "MVW_FRONTEND_URL", "MVW_CREDENTIAL_STORE", "MVW_CREDENTIAL_PATH",
		"MVW_HTTP_TIMEOUT", "MVW_LOG_FILE", "MVW_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.APIURL)
	assert.Equal(t, credstore.KindFile, cfg.StoreKind())
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MVW_API_URL", "https://api.example.test")
	t.Setenv("MVW_CREDENTIAL_STORE", "sqlite")
	t.Setenv("MVW_CREDENTIAL_PATH", "/tmp/creds.db")
	t.Setenv("MVW_HTTP_TIMEOUT", "5s")
	t.Setenv("MVW_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", cfg.APIURL)
	assert.Equal(t, credstore.KindSQLite, cfg.StoreKind())
	assert.Equal(t, "/tmp/creds.db", cfg.CredentialPath)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad url", "MVW_API_URL", "ftp://x", "MVW_API_URL"},
		{"relative url", "MVW_API_URL", "/api", "MVW_API_URL"},
		{"bad store", "MVW_CREDENTIAL_STORE", "keychain", "MVW_CREDENTIAL_STORE"},
		{"bad timeout", "MVW_HTTP_TIMEOUT", "soon", "parse env"},
		{"zero timeout", "MVW_HTTP_TIMEOUT", "0s", "MVW_HTTP_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
