// Package config provides functionality for managing configuration
// options for the application using command-line flags, environment
// variables and an optional JSON config file.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"address"`

	// DatabaseDSN holds the PostgreSQL connection string. When empty
	// the embedded bbolt backend at DataFile is used instead.
	DatabaseDSN string `json:"database_dsn"`

	// DataFile is the path of the embedded database file.
	DataFile string `json:"data_file"`

	// EncryptionKey protects persisted secrets. Either base64 of 32
	// raw bytes or a passphrase. Empty means plaintext mode.
	EncryptionKey string `json:"encryption_key"`

	// MaxBackups bounds the retained backup count. 0 means unlimited.
	MaxBackups int `json:"max_backups"`

	// AutoCleanup runs retention after every successful backup.
	AutoCleanup bool `json:"auto_cleanup"`

	// RateLimit is the sustained mutating-requests-per-second budget.
	RateLimit float64 `json:"rate_limit"`

	// LogLevel selects the zap level ("debug", "info", "warn", "error").
	LogLevel string `json:"log_level"`

	// Config is the path to the config file.
	Config string `json:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "postgres dsn (empty: use embedded database)")
	flag.StringVar(&options.DataFile, "f", "otpvault.db", "embedded database file")
	flag.IntVar(&options.MaxBackups, "max-backups", 100, "retained backups, 0 = unlimited")
	flag.BoolVar(&options.AutoCleanup, "auto-cleanup", true, "prune old backups after each new one")
	flag.Float64Var(&options.RateLimit, "rate-limit", 5, "mutating requests per second")
	flag.StringVar(&options.LogLevel, "log-level", "info", "log level")
	flag.StringVar(&options.Config, "config", "", "path to config file")
	flag.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct
// containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	// Environment overrides flags and file.
	if addr := os.Getenv("OTPVAULT_ADDRESS"); addr != "" {
		options.Addr = addr
	}
	if dsn := os.Getenv("OTPVAULT_DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if file := os.Getenv("OTPVAULT_DATA_FILE"); file != "" {
		options.DataFile = file
	}
	if key := os.Getenv("OTPVAULT_ENCRYPTION_KEY"); key != "" {
		options.EncryptionKey = key
	}
	if raw := os.Getenv("OTPVAULT_MAX_BACKUPS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			options.MaxBackups = n
		}
	}
	if raw := os.Getenv("OTPVAULT_AUTO_CLEANUP"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			options.AutoCleanup = b
		}
	}

	return options
}
