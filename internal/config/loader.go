package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies YIELDBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known YIELDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Terminal ──
	setStr(&cfg.Terminal.Host, "YIELDBOT_TERMINAL_HOST")
	setInt(&cfg.Terminal.Port, "YIELDBOT_TERMINAL_PORT")
	setStr(&cfg.Terminal.ApiKey, "YIELDBOT_TERMINAL_API_KEY")
	setStr(&cfg.Terminal.ApiSecret, "YIELDBOT_TERMINAL_API_SECRET")
	setDuration(&cfg.Terminal.RequestTimeout, "YIELDBOT_TERMINAL_REQUEST_TIMEOUT")

	// ── Mail ──
	setStr(&cfg.Mail.SMTPHost, "YIELDBOT_MAIL_SMTP_HOST")
	setInt(&cfg.Mail.SMTPPort, "YIELDBOT_MAIL_SMTP_PORT")
	setStr(&cfg.Mail.Sender, "YIELDBOT_MAIL_SENDER")
	setStr(&cfg.Mail.Password, "YIELDBOT_MAIL_PASSWORD")
	setStr(&cfg.Mail.EncryptedPasswordPath, "YIELDBOT_MAIL_ENCRYPTED_PASSWORD_PATH")
	setStr(&cfg.Mail.KeyPassword, "YIELDBOT_MAIL_KEY_PASSWORD")
	setStr(&cfg.Mail.ApiBase, "YIELDBOT_MAIL_API_BASE")
	setStr(&cfg.Mail.ApiToken, "YIELDBOT_MAIL_API_TOKEN")

	// ── Notify ──
	setStringSlice(&cfg.Notify.ErrorRecipients, "YIELDBOT_NOTIFY_ERROR_RECIPIENTS")
	setStringSlice(&cfg.Notify.Events, "YIELDBOT_NOTIFY_EVENTS")

	// ── Sources ──
	setStr(&cfg.Sources.BondsPath, "YIELDBOT_SOURCES_BONDS_PATH")
	setStr(&cfg.Sources.IJGDailyPath, "YIELDBOT_SOURCES_IJG_DAILY_PATH")
	setStr(&cfg.Sources.ReportSender, "YIELDBOT_SOURCES_REPORT_SENDER")
	setStr(&cfg.Sources.ReportAttachment, "YIELDBOT_SOURCES_REPORT_ATTACHMENT")
	setInt(&cfg.Sources.LookbackHours, "YIELDBOT_SOURCES_LOOKBACK_HOURS")
	setStr(&cfg.Sources.CalculatorPath, "YIELDBOT_SOURCES_CALCULATOR_PATH")

	// ── Output ──
	setStr(&cfg.Output.Dir, "YIELDBOT_OUTPUT_DIR")
	setStr(&cfg.Output.LogsDir, "YIELDBOT_OUTPUT_LOGS_DIR")

	// ── Collect ──
	setInt(&cfg.Collect.MaxAttempts, "YIELDBOT_COLLECT_MAX_ATTEMPTS")
	setDuration(&cfg.Collect.RetryDelay, "YIELDBOT_COLLECT_RETRY_DELAY")
	setBool(&cfg.Collect.SkipNonBusinessDays, "YIELDBOT_COLLECT_SKIP_NON_BUSINESS_DAYS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "YIELDBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "YIELDBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "YIELDBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "YIELDBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "YIELDBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "YIELDBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "YIELDBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "YIELDBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "YIELDBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "YIELDBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "YIELDBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "YIELDBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "YIELDBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "YIELDBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "YIELDBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "YIELDBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "YIELDBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "YIELDBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "YIELDBOT_REDIS_LOCK_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "YIELDBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "YIELDBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "YIELDBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "YIELDBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "YIELDBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "YIELDBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "YIELDBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "YIELDBOT_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.Mode, "YIELDBOT_MODE")
	setStr(&cfg.LogLevel, "YIELDBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
