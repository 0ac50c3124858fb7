// Package config defines the top-level configuration for the bond data
// collector and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by YIELDBOT_* environment variables.
type Config struct {
	Terminal TerminalConfig `toml:"terminal"`
	Mail     MailConfig     `toml:"mail"`
	Notify   NotifyConfig   `toml:"notify"`
	Sources  SourcesConfig  `toml:"sources"`
	Output   OutputConfig   `toml:"output"`
	Collect  CollectConfig  `toml:"collect"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// TerminalConfig holds connection parameters for the market-data terminal
// gateway.
type TerminalConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	ApiKey         string   `toml:"api_key"`
	ApiSecret      string   `toml:"api_secret"`
	RequestTimeout duration `toml:"request_timeout"`
}

// Addr returns the host:port pair of the terminal gateway.
func (t TerminalConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// MailConfig holds the outbound SMTP settings used for alerting and the
// mailbox API settings used to fetch the emailed exchange report.
type MailConfig struct {
	SMTPHost              string `toml:"smtp_host"`
	SMTPPort              int    `toml:"smtp_port"`
	Sender                string `toml:"sender"`
	Password              string `toml:"password"`
	EncryptedPasswordPath string `toml:"encrypted_password_path"`
	KeyPassword           string `toml:"key_password"`
	ApiBase               string `toml:"api_base"`
	ApiToken              string `toml:"api_token"`
}

// NotifyConfig holds alert recipients and the event filter.
type NotifyConfig struct {
	ErrorRecipients []string `toml:"error_recipients"`
	Events          []string `toml:"events"`
}

// SourcesConfig holds per-source input locations and report selection.
type SourcesConfig struct {
	BondsPath        string `toml:"bonds_path"`
	IJGDailyPath     string `toml:"ijg_daily_path"`
	ReportSender     string `toml:"report_sender"`
	ReportAttachment string `toml:"report_attachment"`
	LookbackHours    int    `toml:"lookback_hours"`
	CalculatorPath   string `toml:"calculator_path"`
}

// OutputConfig holds output and log directories.
type OutputConfig struct {
	Dir     string `toml:"dir"`
	LogsDir string `toml:"logs_dir"`
}

// CollectConfig holds the retry policy and run gating.
type CollectConfig struct {
	MaxAttempts         int      `toml:"max_attempts"`
	RetryDelay          duration `toml:"retry_delay"`
	SkipNonBusinessDays bool     `toml:"skip_non_business_days"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional run
// history store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the optional run lock.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the optional
// output archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Terminal: TerminalConfig{
			Host:           "localhost",
			Port:           8194,
			RequestTimeout: duration{30 * time.Second},
		},
		Mail: MailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Notify: NotifyConfig{
			Events: []string{"retry_exhausted", "run_report", "run_error"},
		},
		Sources: SourcesConfig{
			BondsPath:        "bonds.json",
			ReportSender:     "info@nsx.com.na",
			ReportAttachment: "NSX Daily Report",
			LookbackHours:    12,
		},
		Output: OutputConfig{
			Dir:     "output",
			LogsDir: "logs",
		},
		Collect: CollectConfig{
			MaxAttempts:         3,
			RetryDelay:          duration{15 * time.Minute},
			SkipNonBusinessDays: true,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "yieldbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
			LockTTL:    duration{2 * time.Hour},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "yieldbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Mode:     "all",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"all":      true,
	"terminal": true,
	"nsx":      true,
	"ijg":      true,
	"closing":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// needsTerminal reports whether mode talks to the terminal gateway.
func needsTerminal(mode string) bool {
	switch mode {
	case "all", "terminal", "closing":
		return true
	default:
		return false
	}
}

// needsMailbox reports whether mode fetches the emailed exchange report.
func needsMailbox(mode string) bool {
	switch mode {
	case "all", "nsx", "closing":
		return true
	default:
		return false
	}
}

// needsSpreadsheet reports whether mode reads the broker daily workbook.
func needsSpreadsheet(mode string) bool {
	switch mode {
	case "all", "ijg", "closing":
		return true
	default:
		return false
	}
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: all, terminal, nsx, ijg, closing)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Terminal
	if needsTerminal(mode) {
		if c.Terminal.Host == "" {
			errs = append(errs, "terminal: host must not be empty")
		}
		if c.Terminal.Port <= 0 || c.Terminal.Port > 65535 {
			errs = append(errs, fmt.Sprintf("terminal: port must be 1-65535, got %d", c.Terminal.Port))
		}
	}

	// Mail settings are required in every mode: a run without a working
	// failure channel is misconfigured, not degraded.
	if c.Mail.SMTPHost == "" {
		errs = append(errs, "mail: smtp_host must not be empty")
	}
	if c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("mail: smtp_port must be 1-65535, got %d", c.Mail.SMTPPort))
	}
	if c.Mail.Sender == "" {
		errs = append(errs, "mail: sender must not be empty")
	}
	if c.Mail.Password == "" && c.Mail.EncryptedPasswordPath == "" {
		errs = append(errs, "mail: either password or encrypted_password_path must be set")
	}
	if c.Mail.EncryptedPasswordPath != "" && c.Mail.KeyPassword == "" {
		errs = append(errs, "mail: key_password is required when encrypted_password_path is set")
	}
	if needsMailbox(mode) && c.Mail.ApiBase == "" {
		errs = append(errs, "mail: api_base is required for mode "+c.Mode)
	}

	// Notify
	if len(c.Notify.ErrorRecipients) == 0 {
		errs = append(errs, "notify: at least one error recipient must be configured")
	}

	// Sources
	if c.Sources.BondsPath == "" {
		errs = append(errs, "sources: bonds_path must not be empty")
	}
	if needsSpreadsheet(mode) && c.Sources.IJGDailyPath == "" {
		errs = append(errs, "sources: ijg_daily_path is required for mode "+c.Mode)
	}
	if needsMailbox(mode) && c.Sources.ReportSender == "" {
		errs = append(errs, "sources: report_sender must not be empty")
	}
	if c.Sources.LookbackHours <= 0 {
		errs = append(errs, fmt.Sprintf("sources: lookback_hours must be positive, got %d", c.Sources.LookbackHours))
	}

	// Output
	if c.Output.Dir == "" {
		errs = append(errs, "output: dir must not be empty")
	}
	if c.Output.LogsDir == "" {
		errs = append(errs, "output: logs_dir must not be empty")
	}

	// Collect
	if c.Collect.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("collect: max_attempts must be >= 1, got %d", c.Collect.MaxAttempts))
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be positive")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
