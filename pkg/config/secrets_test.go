package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-12345",
		"OPENAI_API_KEY":    "sk-openai-67890",
	}

	require.NoError(t, EncryptSecretsFile(dir, "hunter2", secrets))
	assert.True(t, SecretsFileExists(dir))

	got, err := DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "correct", map[string]string{"K": "v"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	assert.Error(t, err)
}

func TestDecryptTightensPermissions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"K": "v"}))

	path := filepath.Join(dir, ProjectDirName, secretsFileName)
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDecryptRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectDirName, secretsFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := DecryptSecretsFile(dir, "pw")
	assert.Error(t, err)
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	t.Setenv("CG_TEST_SECRET", "from-env")

	// Environment only.
	v, err := GetSecret("CG_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	// Decrypted store wins over the environment.
	SetDecryptedSecrets(map[string]string{"CG_TEST_SECRET": "from-file"})
	v, err = GetSecret("CG_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	_, err = GetSecret("CG_TEST_MISSING")
	assert.Error(t, err)
}
