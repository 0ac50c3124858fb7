package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikwambipolly/how-is-bloomberg/internal/config"
	"github.com/shikwambipolly/how-is-bloomberg/internal/crypto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// minimalConfig returns a configuration that Wire can satisfy without any
// external backend: bonds from a temp file, all optional stores disabled, and
// the mail password given in plain text.
func minimalConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	bondsPath := filepath.Join(dir, "bonds.json")
	bonds := `[
		{"id": "CP507394", "label": "GC24"},
		{"id": "CP885211", "label": "GI27"}
	]`
	require.NoError(t, os.WriteFile(bondsPath, []byte(bonds), 0o644))

	cfg := config.Defaults()
	cfg.Mail.Sender = "bot@example.com"
	cfg.Mail.Password = "app-password"
	cfg.Mail.ApiBase = "https://graph.example.com/v1.0"
	cfg.Notify.ErrorRecipients = []string{"ops@example.com"}
	cfg.Sources.BondsPath = bondsPath
	cfg.Sources.IJGDailyPath = filepath.Join(dir, "IJG Daily.xlsx")
	cfg.Output.Dir = filepath.Join(dir, "output")
	return &cfg
}

func TestWireMinimal(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)

	deps, cleanup, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	defer cleanup()

	assert.Equal(t, 2, deps.Bonds.Len())
	assert.NotNil(t, deps.Notifier)

	// Optional backends stay nil when disabled.
	assert.Nil(t, deps.RunStore)
	assert.Nil(t, deps.ObservationStore)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.Archiver)
}

func TestWireMissingBondsFile(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)
	cfg.Sources.BondsPath = filepath.Join(t.TempDir(), "absent.json")

	deps, cleanup, err := Wire(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: bonds")
	assert.Nil(t, deps)
	assert.Nil(t, cleanup)
}

func TestWireEncryptedMailPassword(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)

	blob, err := crypto.EncryptSecret("app-password", "key-password")
	require.NoError(t, err)
	secretPath := filepath.Join(t.TempDir(), "mail.enc")
	require.NoError(t, os.WriteFile(secretPath, blob, 0o600))

	cfg.Mail.Password = ""
	cfg.Mail.EncryptedPasswordPath = secretPath
	cfg.Mail.KeyPassword = "key-password"

	deps, cleanup, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Notifier)
}

func TestWireMailPasswordUnresolvable(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)
	cfg.Mail.Password = ""
	cfg.Mail.EncryptedPasswordPath = filepath.Join(t.TempDir(), "absent.enc")
	cfg.Mail.KeyPassword = "key-password"

	_, _, err := Wire(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: mail password")
}

func TestRunRejectsUnsupportedMode(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)
	cfg.Mode = "hourly"

	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "hourly"`)
}

func TestRunWrapsWireFailure(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)
	cfg.Sources.BondsPath = filepath.Join(t.TempDir(), "absent.json")

	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app: wire dependencies")
}

func TestCloseRunsClosersInReverseOrder(t *testing.T) {
	t.Parallel()

	cfg := minimalConfig(t)
	a := New(cfg, testLogger())

	var order []string
	a.closers = append(a.closers,
		func() { order = append(order, "first") },
		func() { order = append(order, "second") },
	)

	a.Close()
	assert.Equal(t, []string{"second", "first"}, order)

	// A second Close is a no-op.
	a.Close()
	assert.Equal(t, []string{"second", "first"}, order)
}
