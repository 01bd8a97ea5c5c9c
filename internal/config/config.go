// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package config loads server configuration from a YAML file and command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/thingful/thingful/internal/logging"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Default values for flags.
const (
	DefaultHTTPAddr          = "127.0.0.1:8000"
	DefaultMetricsAddr       = "127.0.0.1:9100"
	DefaultLogFormat         = "json"
	DefaultLogLevel          = "info"
	DefaultStorage           = StoragePostgres
	DefaultConnectAttempts   = 5
	DefaultBcryptCost        = 12
	DefaultRealm             = "thingful"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
)

// Config is the complete server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Storage  string         `koanf:"storage"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	TLS               TLSConfig     `koanf:"tls"`
}

// TLSConfig enables HTTPS on the API listener. Set either both files or SelfSigned.
type TLSConfig struct {
	CertFile   string `koanf:"cert_file"`
	KeyFile    string `koanf:"key_file"`
	SelfSigned bool   `koanf:"self_signed"`
}

// Enabled reports whether the API listener serves HTTPS.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || t.CertFile != ""
}

// MetricsConfig configures the metrics and health listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	ConnectAttempts int    `koanf:"connect_attempts"`
}

// AuthConfig configures credential hashing and the Basic auth realm.
type AuthConfig struct {
	BcryptCost          int    `koanf:"bcrypt_cost"`
	MaxConcurrentHashes int    `koanf:"max_concurrent_hashes"`
	Realm               string `koanf:"realm"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":                 "http.addr",
	"http-read-header-timeout":  "http.read_header_timeout",
	"http-shutdown-timeout":     "http.shutdown_timeout",
	"tls-cert-file":             "http.tls.cert_file",
	"tls-key-file":              "http.tls.key_file",
	"tls-self-signed":           "http.tls.self_signed",
	"metrics-addr":              "metrics.addr",
	"log-format":                "log.format",
	"log-level":                 "log.level",
	"storage":                   "storage",
	"database-url":              "database.url",
	"database-connect-attempts": "database.connect_attempts",
	"bcrypt-cost":               "auth.bcrypt_cost",
	"max-concurrent-hashes":     "auth.max_concurrent_hashes",
	"realm":                     "auth.realm",
}

// RegisterFlags adds the configuration flags, with their defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.Duration("http-read-header-timeout", DefaultReadHeaderTimeout, "time allowed to read request headers")
	fs.Duration("http-shutdown-timeout", DefaultShutdownTimeout, "graceful shutdown timeout")
	fs.String("tls-cert-file", "", "PEM certificate for HTTPS")
	fs.String("tls-key-file", "", "PEM private key for HTTPS")
	fs.Bool("tls-self-signed", false, "serve HTTPS with a generated self-signed certificate")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("storage", DefaultStorage, "user storage backend (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	fs.Int("database-connect-attempts", DefaultConnectAttempts, "database connection attempts at startup")
	fs.Int("bcrypt-cost", DefaultBcryptCost, "bcrypt work factor")
	fs.Int("max-concurrent-hashes", 0, "concurrent bcrypt computations (0 = GOMAXPROCS)")
	fs.String("realm", DefaultRealm, "Basic auth realm")
}

// Load builds a Config. Values come from, lowest precedence first: flag
// defaults, the YAML file at path (skipped when path is empty), explicitly set
// flags. DATABASE_URL from the environment fills database.url when nothing
// else does.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	// Unchanged flags only fill keys the file left unset.
	flags := posflag.ProviderWithValue(fs, ".", k, func(name, value string) (string, any) {
		key, ok := flagKeys[name]
		if !ok {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if (c.HTTP.TLS.CertFile == "") != (c.HTTP.TLS.KeyFile == "") {
		return oops.Code("CONFIG_INVALID").Errorf("http.tls.cert_file and http.tls.key_file must be set together")
	}
	if c.HTTP.TLS.SelfSigned && c.HTTP.TLS.CertFile != "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.tls.self_signed cannot be combined with certificate files")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Storage {
	case StoragePostgres:
		if c.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.url or DATABASE_URL is required for postgres storage")
		}
	case StorageMemory:
	default:
		return oops.Code("CONFIG_INVALID").Errorf("storage must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return oops.Code("CONFIG_INVALID").
			Errorf("auth.bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if c.Auth.MaxConcurrentHashes < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.max_concurrent_hashes must not be negative")
	}
	if c.Auth.Realm == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.realm is required")
	}
	return nil
}
