package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", "9999")

	v, err := Load(t.TempDir(), "absent")
	req.NoError(err)
	req.Equal(9999, v.GetInt("server.port"))
}

func TestLoad_ReadsYAML(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chat:\n  history_page_size: 25\n"), 0o600))

	v, err := Load(dir, "config")
	req.NoError(err)
	req.Equal(25, v.GetInt("chat.history_page_size"))
}

func TestParseDuration(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: 15s\nb: nope\n"), 0o600))

	v, err := Load(dir, "config")
	req.NoError(err)
	req.Equal(15*time.Second, ParseDuration(v, "a", time.Second))
	req.Equal(time.Second, ParseDuration(v, "b", time.Second))
	req.Equal(time.Minute, ParseDuration(v, "missing", time.Minute))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	req.NoError(os.WriteFile(file, []byte("WES_CHAT_A=from-file\nWES_CHAT_B=from-file\n"), 0o600))

	t.Setenv("WES_CHAT_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("WES_CHAT_B") })

	req.NoError(LoadDotEnv(file, filepath.Join(dir, "missing.env")))
	req.Equal("from-env", os.Getenv("WES_CHAT_A"))
	req.Equal("from-file", os.Getenv("WES_CHAT_B"))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WES_CHAT_SET", "x")
	require.Equal(t, "x", GetEnv("WES_CHAT_SET", "y"))
	require.Equal(t, "y", GetEnv("WES_CHAT_UNSET_KEY", "y"))
}
