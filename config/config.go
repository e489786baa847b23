/*
Package config loads server configuration from the environment and flags.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional, via godotenv)
  3. Process environment
  4. Command-line flags

ENVIRONMENT:
  PORT              HTTP port (default 8080)
  STORAGE           memory | sqlite (default sqlite)
  DB_PATH           SQLite path, ":memory:" for an in-memory database
  DEFAULT_CURRENCY  Currency for reimbursements submitted without one
  DIRECTORY_FILE    Employee directory JSON; empty loads the demo scenario
  ALLOCATION_FILE   Allocation policy JSON; empty uses 21/12/7
  LOG_LEVEL         debug | info | warn | error
  CORS_ORIGINS      Comma-separated allowed origins

FLAGS:
  -port, -storage, -db, -currency, -directory, -allocation, -log-level
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/warp/request-engine/generic"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Config struct {
	Port            int
	Storage         string
	DBPath          string
	DefaultCurrency generic.Currency
	DirectoryFile   string
	AllocationFile  string
	LogLevel        slog.Level
	CORSOrigins     []string
}

// Load reads .env (if present), the environment and then args.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv, args)
}

// FromEnv builds a Config from getenv and args without touching the
// process environment.
func FromEnv(getenv func(string) string, args []string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	port, err := strconv.Atoi(env("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	fsFlags := flag.NewFlagSet("server", flag.ContinueOnError)
	portFlag := fsFlags.Int("port", port, "HTTP server port")
	storage := fsFlags.String("storage", env("STORAGE", StorageSQLite), "storage backend: memory or sqlite")
	dbPath := fsFlags.String("db", env("DB_PATH", "requests.db"), "SQLite database path")
	currency := fsFlags.String("currency", env("DEFAULT_CURRENCY", string(generic.DefaultCurrency)), "default reimbursement currency")
	directory := fsFlags.String("directory", env("DIRECTORY_FILE", ""), "employee directory JSON file")
	allocation := fsFlags.String("allocation", env("ALLOCATION_FILE", ""), "allocation policy JSON file")
	logLevel := fsFlags.String("log-level", env("LOG_LEVEL", "info"), "log level")
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            *portFlag,
		Storage:         strings.ToLower(strings.TrimSpace(*storage)),
		DBPath:          *dbPath,
		DefaultCurrency: generic.NormalizeCurrency(*currency),
		DirectoryFile:   *directory,
		AllocationFile:  *allocation,
		CORSOrigins:     splitList(getenv("CORS_ORIGINS")),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite storage")
		}
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StorageMemory, StorageSQLite, c.Storage)
	}
	if !c.DefaultCurrency.Valid() {
		return fmt.Errorf("DEFAULT_CURRENCY must be an ISO-4217 code, got %q", c.DefaultCurrency)
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
