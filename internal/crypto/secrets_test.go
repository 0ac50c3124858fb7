package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	blob, err := EncryptSecret("app-specific-password", "master-key")
	require.NoError(t, err)

	var stored encryptedSecretJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.Equal(t, 1, stored.Version)
	assert.NotEmpty(t, stored.Salt)
	assert.NotEmpty(t, stored.Nonce)
	assert.NotContains(t, string(blob), "app-specific-password",
		"the blob must not leak the plaintext")

	secret, err := DecryptSecret(blob, "master-key")
	require.NoError(t, err)
	assert.Equal(t, "app-specific-password", secret)
}

func TestDecryptWrongPassword(t *testing.T) {
	t.Parallel()

	blob, err := EncryptSecret("secret", "right")
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptSecretRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	_, err := EncryptSecret("", "pw")
	assert.Error(t, err)

	_, err = EncryptSecret("secret", "")
	assert.Error(t, err)
}

func TestDecryptUnsupportedVersion(t *testing.T) {
	t.Parallel()

	blob, err := EncryptSecret("secret", "pw")
	require.NoError(t, err)

	var stored encryptedSecretJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	stored.Version = 99
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	_, err = DecryptSecret(tampered, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version 99")
}

func TestEncryptSecretSaltsAreUnique(t *testing.T) {
	t.Parallel()

	a, err := EncryptSecret("secret", "pw")
	require.NoError(t, err)
	b, err := EncryptSecret("secret", "pw")
	require.NoError(t, err)

	var sa, sb encryptedSecretJSON
	require.NoError(t, json.Unmarshal(a, &sa))
	require.NoError(t, json.Unmarshal(b, &sb))
	assert.NotEqual(t, sa.Salt, sb.Salt)
	assert.NotEqual(t, sa.Ciphertext, sb.Ciphertext)
}

func TestLoadSecretPrefersRaw(t *testing.T) {
	t.Parallel()

	secret, err := LoadSecret(SecretConfig{RawSecret: "plain", EncryptedPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, "plain", secret)
}

func TestLoadSecretFromEncryptedFile(t *testing.T) {
	t.Parallel()

	blob, err := EncryptSecret("mail-password", "key")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mail.enc")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	secret, err := LoadSecret(SecretConfig{EncryptedPath: path, Password: "key"})
	require.NoError(t, err)
	assert.Equal(t, "mail-password", secret)
}

func TestLoadSecretNoSource(t *testing.T) {
	t.Parallel()

	_, err := LoadSecret(SecretConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no secret source configured")
}

func TestLoadSecretMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadSecret(SecretConfig{
		EncryptedPath: filepath.Join(t.TempDir(), "gone.enc"),
		Password:      "key",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading encrypted secret file")
}
