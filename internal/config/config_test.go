// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billetterie/billetterie/pkg/errutil"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billetterie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.False(t, cfg.Server.Production())
	assert.Equal(t, 10*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 168*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "bcrypt", cfg.Auth.PasswordHasher)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.MetricsAddr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  environment: production
auth:
  jwt_secret: from-file
  session_ttl: 24h
ratelimit:
  limit: 5
log:
  level: debug
`)
	t.Setenv("BILLETTERIE_AUTH__JWT_SECRET", "from-env")
	t.Setenv("BILLETTERIE_RATELIMIT__LIMIT", "7")
	t.Setenv("BILLETTERIE_DATABASE__URL", "postgres://env")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":7000"}))

	cfg, err := Load(LoadOptions{
		File:     path,
		Flags:    flags,
		FlagKeys: map[string]string{"addr": "server.addr", "log-level": "log.level"},
	})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr, "flag beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "unset flag leaves file value")
	assert.True(t, cfg.Server.Production())
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret, "env beats file")
	assert.Equal(t, 7, cfg.RateLimit.Limit)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.yaml")})
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")

	_, err = Load(LoadOptions{File: writeFile(t, "auth:\n  jwt_sekret: typo\n")})
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_MISMATCH")

	_, err = Load(LoadOptions{File: writeFile(t, "auth: [unclosed\n")})
	errutil.AssertErrorCode(t, err, "CONFIG_YAML_INVALID")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(LoadOptions{})
		require.NoError(t, err)
		cfg.Database.URL = "postgres://localhost/billetterie"
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"database url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"session ttl", func(c *Config) { c.Auth.SessionTTL = 0 }, "auth.session_ttl"},
		{"reset ttl", func(c *Config) { c.Auth.ResetTTL = -time.Second }, "auth.reset_ttl"},
		{"hasher", func(c *Config) { c.Auth.PasswordHasher = "md5" }, "auth.password_hasher"},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 4 }, "auth.bcrypt_cost"},
		{"limit", func(c *Config) { c.RateLimit.Limit = 0 }, "ratelimit.limit"},
		{"window", func(c *Config) { c.RateLimit.Window = 0 }, "ratelimit.window"},
		{"environment", func(c *Config) { c.Server.Environment = "staging" }, "server.environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, CodeInvalid)
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("argon2id ignores bcrypt cost", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.PasswordHasher = "argon2id"
		cfg.Auth.BcryptCost = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "auth.jwt_secret", envKey("BILLETTERIE_AUTH__JWT_SECRET"))
	assert.Equal(t, "server.read_header_timeout", envKey("BILLETTERIE_SERVER__READ_HEADER_TIMEOUT"))
}
