/*
config.go - Server configuration

PURPOSE:
  Collects every runtime setting in one struct. Values come from, in
  increasing priority:
    1. built-in defaults
    2. a .env file in the working directory (if present)
    3. process environment
    4. command-line flags (-port, -db)

ENVIRONMENT:
  PORT                  HTTP port (default 8080)
  DB_PATH               SQLite path; ":memory:" keeps nothing (default warehouse.db)
  STOCK_POLICY          permissive | strict (default permissive)
  ACTIVITY_CAP          activity log retention (default 1000)
  LOG_LEVEL             zerolog level name (default info)
  LOG_PRETTY            console output instead of JSON (default false)
  CORS_ALLOWED_ORIGINS  comma separated (default *)
  RECONCILE_INTERVAL    Go duration; 0 disables (default 10m)
  SEED                  load demo warehouses/products/stock on an empty store (default true)

SEE ALSO:
  - cmd/server/main.go: the only caller
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mellovesfromage/warehouse-system/stock"
)

type Config struct {
	Port               int
	DBPath             string
	StockPolicy        stock.Policy
	ActivityCap        int
	LogLevel           string
	LogPretty          bool
	CORSAllowedOrigins []string
	ReconcileInterval  time.Duration
	Seed               bool
}

// Addr is the listen address for Port.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Getenv returns the environment value for key, or fallback when unset or
// empty.
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// Load reads .env, the environment and args (without the program name).
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	port, err := strconv.Atoi(Getenv("PORT", "8080"))
	if err != nil {
		errs = append(errs, fmt.Errorf("PORT: %w", err))
	}
	policy, err := stock.ParsePolicy(Getenv("STOCK_POLICY", string(stock.Permissive)))
	if err != nil {
		errs = append(errs, fmt.Errorf("STOCK_POLICY: %w", err))
	}
	activityCap, err := strconv.Atoi(Getenv("ACTIVITY_CAP", "1000"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ACTIVITY_CAP: %w", err))
	}
	pretty, err := strconv.ParseBool(Getenv("LOG_PRETTY", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
	}
	interval, err := time.ParseDuration(Getenv("RECONCILE_INTERVAL", "10m"))
	if err != nil {
		errs = append(errs, fmt.Errorf("RECONCILE_INTERVAL: %w", err))
	}
	seed, err := strconv.ParseBool(Getenv("SEED", "true"))
	if err != nil {
		errs = append(errs, fmt.Errorf("SEED: %w", err))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	cfg := Config{
		Port:               port,
		DBPath:             Getenv("DB_PATH", "warehouse.db"),
		StockPolicy:        policy,
		ActivityCap:        activityCap,
		LogLevel:           Getenv("LOG_LEVEL", "info"),
		LogPretty:          pretty,
		CORSAllowedOrigins: splitList(Getenv("CORS_ALLOWED_ORIGINS", "*")),
		ReconcileInterval:  interval,
		Seed:               seed,
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (use :memory: for in-memory)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("database path is required")
	}
	if _, err := stock.ParsePolicy(string(c.StockPolicy)); err != nil {
		return err
	}
	if c.ActivityCap <= 0 {
		return fmt.Errorf("activity cap must be positive, got %d", c.ActivityCap)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile interval must not be negative, got %s", c.ReconcileInterval)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
