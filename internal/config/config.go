// Package config loads dbschema settings from the environment.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
)

// Defaults.
const (
	DefaultStatePath  = "dbschema.yaml"
	DefaultPrincipal  = "user"
	DefaultListenAddr = ":8080"
)

// Config holds settings shared by every command.
type Config struct {
	// StatePath is where the engine snapshot lives. A .db or .sqlite
	// suffix selects the SQLite store, anything else a YAML file.
	StatePath string
	// Principal evaluates statements when none is given explicitly and
	// receives the default grants of the create command.
	Principal  string
	MaxDepth   int
	LogLevel   string
	LogFormat  string
	ListenAddr string

	// RateLimitRPS and RateLimitBurst bound API requests per client. A
	// zero rate disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// APIKeys maps each accepted API key to its principal. JWTSecret
	// verifies HS256 bearer tokens. Admins may run admin ingestion and
	// evaluate as any principal.
	APIKeys   map[string]string
	JWTSecret string
	Admins    []string

	// Warnings collects non-fatal problems found while loading.
	Warnings []string
}

// SlogLevel maps LogLevel to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesSQLite reports whether StatePath names a SQLite file.
func (c *Config) UsesSQLite() bool {
	switch strings.ToLower(filepath.Ext(c.StatePath)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// LoadFromEnv reads the configuration from environment variables and
// applies defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		StatePath:  os.Getenv("DBSCHEMA_STATE"),
		Principal:  os.Getenv("DBSCHEMA_PRINCIPAL"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		LogFormat:  strings.ToLower(os.Getenv("LOG_FORMAT")),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		MaxDepth:   analyzer.DefaultMaxDepth,
	}

	if v := os.Getenv("DBSCHEMA_MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("DBSCHEMA_MAX_DEPTH must be a positive integer, got %q", v)
		}
		cfg.MaxDepth = n
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS must be a non-negative number, got %q", v)
		}
		cfg.RateLimitRPS = f
	} else {
		cfg.RateLimitRPS = 100
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("RATE_LIMIT_BURST must be a non-negative integer, got %q", v)
		}
		cfg.RateLimitBurst = n
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}

	keys, err := parseAPIKeys(os.Getenv("DBSCHEMA_API_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.APIKeys = keys
	cfg.JWTSecret = os.Getenv("DBSCHEMA_JWT_SECRET")
	cfg.Admins = splitList(os.Getenv("DBSCHEMA_ADMINS"))

	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.Principal == "" {
		cfg.Principal = DefaultPrincipal
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown LOG_FORMAT %q, using text", cfg.LogFormat))
		cfg.LogFormat = "text"
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		cfg.Warnings = append(cfg.Warnings, "DBSCHEMA_JWT_SECRET is shorter than 32 bytes")
	}
	if len(cfg.Admins) == 0 && (len(cfg.APIKeys) > 0 || cfg.JWTSecret != "") {
		cfg.Warnings = append(cfg.Warnings, "DBSCHEMA_ADMINS is empty; only tokens with an admin claim can change the schema")
	}
	if cfg.MaxDepth > 1000 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("DBSCHEMA_MAX_DEPTH=%d may exhaust the stack on hostile input", cfg.MaxDepth))
	}

	return cfg, nil
}

// HasCredentials reports whether the API has any way to authenticate callers.
func (c *Config) HasCredentials() bool {
	return len(c.APIKeys) > 0 || c.JWTSecret != ""
}

// parseAPIKeys reads "principal=key" pairs separated by commas.
func parseAPIKeys(v string) (map[string]string, error) {
	keys := map[string]string{}
	for _, entry := range splitList(v) {
		principal, key, ok := strings.Cut(entry, "=")
		principal, key = strings.TrimSpace(principal), strings.TrimSpace(key)
		if !ok || principal == "" || key == "" {
			return nil, fmt.Errorf("DBSCHEMA_API_KEYS entries must be principal=key, got %q", entry)
		}
		if _, dup := keys[key]; dup {
			return nil, fmt.Errorf("DBSCHEMA_API_KEYS: key for %q is used twice", principal)
		}
		keys[key] = principal
	}
	return keys, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadDotEnv reads KEY=VALUE lines from path and sets the variables that are
// not already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, unquote(strings.TrimSpace(value))); err != nil {
			return fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return scanner.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
