// Package config loads server settings from defaults, an optional .env file,
// the environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/storage/sqldb"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PASSPROTECT"

// Config holds runtime settings for the PassProtect server.
type Config struct {
	HTTPAddr           string        `mapstructure:"http_addr"`
	DBDriver           string        `mapstructure:"db_driver"`
	DatabaseDSN        string        `mapstructure:"database_dsn"`
	DBHost             string        `mapstructure:"db_host"`
	DBPort             string        `mapstructure:"db_port"`
	DBUser             string        `mapstructure:"db_user"`
	DBPassword         string        `mapstructure:"db_password"`
	DBName             string        `mapstructure:"db_name"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	PlannerURL         string        `mapstructure:"planner_url"`
	PlannerAPIKey      string        `mapstructure:"planner_api_key"`
	PlannerModel       string        `mapstructure:"planner_model"`
	PlannerTimeout     time.Duration `mapstructure:"planner_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
	LoginBurst         int           `mapstructure:"login_burst"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	TrustProxyHeaders  bool          `mapstructure:"trust_proxy_headers"`
}

// LoadDefaults populates Config with development defaults. JWTSecret is left
// empty on purpose: the server refuses to start without one.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DBDriver = sqldb.DriverSQLite
	c.DatabaseDSN = ""
	c.DBPort = "5432"
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.PlannerURL = "https://api.openai.com/v1"
	c.PlannerModel = "gpt-4o-mini"
	c.PlannerTimeout = 60 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.LoginRatePerMinute = 10
	c.LoginBurst = 5
	c.CookieSecure = false
	c.TrustProxyHeaders = false
}

// legacyEnv maps keys to unprefixed variable names still honoured for
// deployments that predate the prefix.
var legacyEnv = map[string]string{
	"jwt_secret":  "JWT_SECRET",
	"db_host":     "DB_HOST",
	"db_port":     "DB_PORT",
	"db_user":     "DB_USER",
	"db_password": "DB_PASSWORD",
	"db_name":     "DB_NAME",
}

// Load builds a Config. envFile is optional; a missing file is not an error.
// Only flags the user actually set override the environment.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	defaults := &Config{}
	defaults.LoadDefaults()

	v := viper.New()
	for key, value := range toMap(defaults) {
		v.SetDefault(key, value)
	}

	if envFile != "" {
		if err := applyEnvFile(v, envFile); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if flags != nil {
		flags.Visit(func(f *pflag.Flag) {
			v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		})
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.DatabaseDSN = cfg.resolveDSN()
	return cfg, nil
}

// applyEnvFile reads a dotenv file. Its values sit between defaults and the
// real environment. Keys may be written with or without the prefix.
func applyEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	prefix := strings.ToLower(EnvPrefix) + "_"
	for _, key := range file.AllKeys() {
		v.SetDefault(strings.TrimPrefix(key, prefix), file.Get(key))
	}
	return nil
}

// resolveDSN fills the DSN from the DB_* parts when only those are given.
func (c *Config) resolveDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}

	switch c.DBDriver {
	case sqldb.DriverPostgres:
		if c.DBHost == "" {
			return ""
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     net.JoinHostPort(c.DBHost, c.DBPort),
			Path:     "/" + c.DBName,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	default:
		return "passprotect.db"
	}
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	const op = "config.validate"

	if c.JWTSecret == "" {
		return apperr.Configuration(op, "JWT secret is not set (PASSPROTECT_JWT_SECRET or JWT_SECRET)")
	}
	if c.DBDriver != sqldb.DriverSQLite && c.DBDriver != sqldb.DriverPostgres {
		return apperr.Configuration(op, fmt.Sprintf("unsupported database driver %q", c.DBDriver))
	}
	if c.DatabaseDSN == "" {
		return apperr.Configuration(op, "database DSN is not set")
	}
	if c.LoginRatePerMinute <= 0 || c.LoginBurst <= 0 {
		return apperr.Configuration(op, "login rate limit must be positive")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.JWTSecret != "" {
		out.JWTSecret = "***"
	}
	if out.PlannerAPIKey != "" {
		out.PlannerAPIKey = "***"
	}
	if out.DBPassword != "" {
		out.DBPassword = "***"
	}
	if u, err := url.Parse(out.DatabaseDSN); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			out.DatabaseDSN = u.String()
		}
	}
	return out
}

func toMap(c *Config) map[string]any {
	return map[string]any{
		"http_addr":             c.HTTPAddr,
		"db_driver":             c.DBDriver,
		"database_dsn":          c.DatabaseDSN,
		"db_host":               c.DBHost,
		"db_port":               c.DBPort,
		"db_user":               c.DBUser,
		"db_password":           c.DBPassword,
		"db_name":               c.DBName,
		"jwt_secret":            c.JWTSecret,
		"log_level":             c.LogLevel,
		"log_format":            c.LogFormat,
		"planner_url":           c.PlannerURL,
		"planner_api_key":       c.PlannerAPIKey,
		"planner_model":         c.PlannerModel,
		"planner_timeout":       c.PlannerTimeout,
		"shutdown_timeout":      c.ShutdownTimeout,
		"login_rate_per_minute": c.LoginRatePerMinute,
		"login_burst":           c.LoginBurst,
		"cookie_secure":         c.CookieSecure,
		"trust_proxy_headers":   c.TrustProxyHeaders,
	}
}
