package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"environment":              "disabled",
		"database_dsn":             "postgres://json",
		"account_id":               "acct_123",
		"session_secret":           "my_secret_key",
		"session_token":            "header.payload.sig",
		"session_validity_minutes": 15,
		"local_store_path":         "local.db",
		"sweep_interval_minutes":   5,
		"s3_root_user":             "user",
		"s3_root_password":         "password",
		"s3_bucket":                "bucket",
		"s3_region":                "region",
		"s3_base_endpoint":         "base_endpoint",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "disabled", cfg.Environment)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "acct_123", cfg.AccountID)
		assert.Equal(t, "my_secret_key", cfg.SessionSecret)
		assert.Equal(t, "header.payload.sig", cfg.SessionToken)
		assert.Equal(t, 15*time.Minute, cfg.SessionValidity)
		assert.Equal(t, "local.db", cfg.LocalStorePath)
		assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
	})

	t.Run("fields absent from json keep current values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"database_dsn": "postgres://partial",
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "postgres://partial", cfg.DatabaseDSN)
		assert.Equal(t, EnvProduction, cfg.Environment)
		assert.Equal(t, 60*time.Minute, cfg.SessionValidity)
		assert.Equal(t, "cauldron-assets", cfg.S3Bucket)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			Environment:     EnvDisabled,
			DatabaseDSN:     "postgres://keep",
			SessionSecret:   "key",
			SessionValidity: 2 * time.Minute,
			LocalStorePath:  "keep.db",
			SweepInterval:   3 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, EnvDisabled, cfg.Environment)
		assert.Equal(t, "postgres://keep", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SessionSecret)
		assert.Equal(t, 2*time.Minute, cfg.SessionValidity)
		assert.Equal(t, "keep.db", cfg.LocalStorePath)
		assert.Equal(t, 3*time.Minute, cfg.SweepInterval)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
