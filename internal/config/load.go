package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// RegisterFlags declares the command-line overrides on fs.
// Flag defaults are informational; only flags the user actually set are applied.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a TOML config file (env TODO_CONFIG)")
	fs.String("env", d.Env, "deployment environment; \"production\" enables strict checks")
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("jwt-secret", "", "HS256 signing secret (env JWT_SECRET)")
	fs.String("driver", d.Driver, "backend: postgres, mongo, dataapi, memory")
	fs.Duration("backend-timeout", d.BackendTimeout, "bound for each backend call")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply postgres migrations on start")
	fs.String("dsn", d.DatabaseDSN, "PostgreSQL DSN")
	fs.String("mongo-uri", d.Mongo.URI, "MongoDB connection string")
	fs.String("mongo-db", d.Mongo.Database, "MongoDB database name")
	fs.String("data-api-url", "", "data API gateway base URL")
	fs.String("data-api-key", "", "data API gateway key")
	fs.StringSlice("cors-origin", d.CORS.Origins, "allowed CORS origin (repeatable)")
	fs.StringSlice("cors-suffix", d.CORS.Suffixes, "allowed CORS origin host suffix (repeatable)")
	fs.String("health-grpc-addr", "", "listen address for the gRPC health service; empty disables it")
}

// Load builds the configuration. getenv is os.Getenv in production and a map lookup in tests;
// fs must have been populated by RegisterFlags and parsed.
func Load(fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	path := getenv("TODO_CONFIG")
	if fs != nil && fs.Changed("config") {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg, getenv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if fs != nil {
		if err := applyFlags(cfg, fs); err != nil {
			return nil, fmt.Errorf("reading flags: %w", err)
		}
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	str("APP_ENV", &cfg.Env)
	if port := getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	str("TODO_ADDR", &cfg.Addr)
	str("TODO_LOG_LEVEL", &cfg.LogLevel)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("TODO_DRIVER", &cfg.Driver)
	str("DATABASE_URL", &cfg.DatabaseDSN)
	str("MONGODB_URI", &cfg.Mongo.URI)
	str("MONGODB_DATABASE", &cfg.Mongo.Database)
	str("MONGODB_DATA_API_URL", &cfg.DataAPI.URL)
	str("MONGODB_DATA_API_KEY", &cfg.DataAPI.Key)
	str("MONGODB_DATA_SOURCE", &cfg.DataAPI.DataSource)
	str("TODO_HEALTH_GRPC_ADDR", &cfg.HealthGRPCAddr)
	list("TODO_CORS_ORIGINS", &cfg.CORS.Origins)
	list("TODO_CORS_SUFFIXES", &cfg.CORS.Suffixes)

	if v := getenv("TODO_BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TODO_BACKEND_TIMEOUT: %w", err)
		}
		cfg.BackendTimeout = d
	}
	if v := getenv("TODO_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODO_AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = b
	}
	return nil
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	str := func(name string, dst *string) {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		v, err := fs.GetString(name)
		keep(err)
		*dst = v
	}
	slice := func(name string, dst *[]string) {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		v, err := fs.GetStringSlice(name)
		keep(err)
		*dst = v
	}

	str("env", &cfg.Env)
	str("addr", &cfg.Addr)
	str("log-level", &cfg.LogLevel)
	str("jwt-secret", &cfg.JWTSecret)
	str("driver", &cfg.Driver)
	str("dsn", &cfg.DatabaseDSN)
	str("mongo-uri", &cfg.Mongo.URI)
	str("mongo-db", &cfg.Mongo.Database)
	str("data-api-url", &cfg.DataAPI.URL)
	str("data-api-key", &cfg.DataAPI.Key)
	str("health-grpc-addr", &cfg.HealthGRPCAddr)
	slice("cors-origin", &cfg.CORS.Origins)
	slice("cors-suffix", &cfg.CORS.Suffixes)

	if fs.Lookup("backend-timeout") != nil && fs.Changed("backend-timeout") {
		v, err := fs.GetDuration("backend-timeout")
		keep(err)
		cfg.BackendTimeout = v
	}
	if fs.Lookup("auto-migrate") != nil && fs.Changed("auto-migrate") {
		v, err := fs.GetBool("auto-migrate")
		keep(err)
		cfg.AutoMigrate = v
	}
	return firstErr
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
