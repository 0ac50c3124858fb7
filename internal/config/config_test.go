package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig is Defaults plus the secrets and paths a real deployment sets.
func validConfig() Config {
	cfg := Defaults()
	cfg.Mail.Sender = "bot@example.com"
	cfg.Mail.Password = "hunter2"
	cfg.Mail.ApiBase = "https://mail.example.com/api"
	cfg.Notify.ErrorRecipients = []string{"ops@example.com"}
	cfg.Sources.IJGDailyPath = "/data/ijg_daily.xlsx"
	return cfg
}

func TestValidConfigPasses(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Mode = "hourly"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "hourly"`)
}

func TestValidateModeScopesRequirements(t *testing.T) {
	t.Parallel()

	// Terminal-only mode does not need the mailbox API or the workbook.
	cfg := validConfig()
	cfg.Mode = "terminal"
	cfg.Mail.ApiBase = ""
	cfg.Sources.IJGDailyPath = ""
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Mode = "nsx"
	cfg.Mail.ApiBase = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_base is required for mode nsx")

	cfg = validConfig()
	cfg.Mode = "ijg"
	cfg.Sources.IJGDailyPath = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ijg_daily_path is required for mode ijg")
}

func TestValidateAggregatesErrors(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Terminal.Host = ""
	cfg.Mail.Sender = ""
	cfg.Notify.ErrorRecipients = nil
	cfg.Collect.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "terminal: host must not be empty")
	assert.Contains(t, msg, "mail: sender must not be empty")
	assert.Contains(t, msg, "at least one error recipient")
	assert.Contains(t, msg, "max_attempts must be >= 1")
}

func TestValidateMailPassword(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Mail.Password = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either password or encrypted_password_path")

	cfg = validConfig()
	cfg.Mail.Password = ""
	cfg.Mail.EncryptedPasswordPath = "/etc/yieldbot/mail.enc"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")

	cfg.Mail.KeyPassword = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateEnabledBackends(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Postgres.Enabled = true
	cfg.Postgres.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host must not be empty")

	// A DSN replaces the discrete connection fields.
	cfg.Postgres.DSN = "postgres://user:pw@db:5432/yieldbot"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")

	cfg = validConfig()
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestValidateDisabledBackendsAreIgnored(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	cfg.S3 = S3Config{}
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "nsx"

[terminal]
host = "gateway.internal"

[mail]
sender = "bot@example.com"
password = "hunter2"
api_base = "https://mail.example.com/api"

[notify]
error_recipients = ["ops@example.com"]

[collect]
max_attempts = 5
retry_delay = "5m"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nsx", cfg.Mode)
	assert.Equal(t, "gateway.internal", cfg.Terminal.Host)
	assert.Equal(t, 8194, cfg.Terminal.Port, "unset fields keep their defaults")
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
	assert.Equal(t, 5, cfg.Collect.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Collect.RetryDelay.Duration)
	assert.Equal(t, "info@nsx.com.na", cfg.Sources.ReportSender)
	assert.Equal(t, "gateway.internal:8194", cfg.Terminal.Addr())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "all"

[mail]
sender = "bot@example.com"
password = "from-file"
`), 0o600))

	t.Setenv("YIELDBOT_MODE", "closing")
	t.Setenv("YIELDBOT_MAIL_PASSWORD", "from-env")
	t.Setenv("YIELDBOT_TERMINAL_PORT", "9194")
	t.Setenv("YIELDBOT_COLLECT_RETRY_DELAY", "90s")
	t.Setenv("YIELDBOT_COLLECT_SKIP_NON_BUSINESS_DAYS", "false")
	t.Setenv("YIELDBOT_NOTIFY_ERROR_RECIPIENTS", "a@example.com, b@example.com")
	t.Setenv("YIELDBOT_POSTGRES_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "closing", cfg.Mode)
	assert.Equal(t, "from-env", cfg.Mail.Password)
	assert.Equal(t, 9194, cfg.Terminal.Port)
	assert.Equal(t, 90*time.Second, cfg.Collect.RetryDelay.Duration)
	assert.False(t, cfg.Collect.SkipNonBusinessDays)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.ErrorRecipients)
	assert.True(t, cfg.Postgres.Enabled)
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"all\"\n"), 0o600))

	t.Setenv("YIELDBOT_TERMINAL_PORT", "not-a-number")
	t.Setenv("YIELDBOT_COLLECT_RETRY_DELAY", "soon")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8194, cfg.Terminal.Port)
	assert.Equal(t, 15*time.Minute, cfg.Collect.RetryDelay.Duration)
}

func TestDurationText(t *testing.T) {
	t.Parallel()

	var d duration
	require.NoError(t, d.UnmarshalText([]byte("15m")))
	assert.Equal(t, 15*time.Minute, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "15m0s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("fortnight")))
}
