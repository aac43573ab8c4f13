// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package config loads Billetterie settings from defaults, a YAML file,
// BILLETTERIE_ environment variables and command flags, in that order of
// precedence.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are joined
// with a double underscore: BILLETTERIE_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "BILLETTERIE_"

// CodeInvalid is the error code for unusable configuration.
const CodeInvalid = "CONFIG_INVALID"

// Config is the complete application configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Database      Database      `koanf:"database"`
	Auth          Auth          `koanf:"auth"`
	RateLimit     RateLimit     `koanf:"ratelimit"`
	Observability Observability `koanf:"observability"`
	Log           Log           `koanf:"log"`
}

// Server configures the HTTP API listener.
type Server struct {
	Addr              string        `koanf:"addr" jsonschema:"description=HTTP listen address"`
	Environment       string        `koanf:"environment" jsonschema:"enum=development,enum=test,enum=production"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// Production reports whether cookies must be marked Secure.
func (s Server) Production() bool {
	return s.Environment == "production"
}

// Database configures PostgreSQL access.
type Database struct {
	URL            string        `koanf:"url" jsonschema:"description=PostgreSQL connection URL"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// Auth configures credentials, tokens and sessions.
type Auth struct {
	JWTSecret      string        `koanf:"jwt_secret" jsonschema:"description=HMAC key for signing tokens"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	ResetTTL       time.Duration `koanf:"reset_ttl"`
	BcryptCost     int           `koanf:"bcrypt_cost" jsonschema:"minimum=10,maximum=31"`
	PasswordHasher string        `koanf:"password_hasher" jsonschema:"enum=bcrypt,enum=argon2id"`
	SweepInterval  time.Duration `koanf:"sweep_interval"`
	// RevealResetLinks logs reset tokens in full. Development only.
	RevealResetLinks bool `koanf:"reveal_reset_links"`
}

// RateLimit configures the Redis-backed limiter. An empty RedisAddr
// disables limiting.
type RateLimit struct {
	RedisAddr string        `koanf:"redis_addr"`
	Limit     int           `koanf:"limit" jsonschema:"minimum=1"`
	Window    time.Duration `koanf:"window"`
}

// Observability configures the metrics and health endpoint.
type Observability struct {
	MetricsAddr string `koanf:"metrics_addr"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Defaults returns the built-in values as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":                ":8080",
		"server.environment":         "development",
		"server.read_header_timeout": 10 * time.Second,
		"server.shutdown_timeout":    15 * time.Second,
		"database.url":               "",
		"database.connect_timeout":   30 * time.Second,
		"database.auto_migrate":      true,
		"auth.jwt_secret":            "",
		"auth.session_ttl":           168 * time.Hour,
		"auth.reset_ttl":             time.Hour,
		"auth.bcrypt_cost":           10,
		"auth.password_hasher":       "bcrypt",
		"auth.sweep_interval":        time.Hour,
		"auth.reveal_reset_links":    false,
		"ratelimit.redis_addr":       "",
		"ratelimit.limit":            10,
		"ratelimit.window":           15 * time.Minute,
		"observability.metrics_addr": "127.0.0.1:9100",
		"log.format":                 "json",
		"log.level":                  "info",
	}
}

// LoadOptions selects the sources Load reads beyond the defaults.
type LoadOptions struct {
	// File is an optional YAML file. It is validated against the schema.
	File string
	// Flags are applied last. Only flags that were set on the command line
	// override other sources.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to koanf keys. Flags not listed are ignored.
	FlagKeys map[string]string
}

// Load builds a Config from the sources in opts. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code(CodeInvalid).With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code(CodeInvalid).With("file", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	switch {
	case c.Auth.JWTSecret == "":
		return invalid("auth.jwt_secret", "auth.jwt_secret is required")
	case c.Auth.SessionTTL <= 0:
		return invalid("auth.session_ttl", "auth.session_ttl must be positive")
	case c.Auth.ResetTTL <= 0:
		return invalid("auth.reset_ttl", "auth.reset_ttl must be positive")
	case !slices.Contains([]string{"bcrypt", "argon2id"}, c.Auth.PasswordHasher):
		return invalid("auth.password_hasher", "auth.password_hasher must be bcrypt or argon2id")
	case c.Auth.PasswordHasher == "bcrypt" && (c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31):
		return invalid("auth.bcrypt_cost", "auth.bcrypt_cost must be between 10 and 31")
	case c.RateLimit.Limit <= 0:
		return invalid("ratelimit.limit", "ratelimit.limit must be positive")
	case c.RateLimit.Window <= 0:
		return invalid("ratelimit.window", "ratelimit.window must be positive")
	case !slices.Contains([]string{"development", "test", "production"}, c.Server.Environment):
		return invalid("server.environment", "server.environment must be development, test or production")
	case c.Server.Addr == "":
		return invalid("server.addr", "server.addr is required")
	}
	return nil
}

// ValidateDatabase checks only the settings needed to reach the database.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database.url is required")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code(CodeInvalid).With("key", key).Errorf("%s", msg)
}
