package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("TORBOXDAV_TEST_STRING", "value")
	t.Setenv("TORBOXDAV_TEST_INT", "42")
	t.Setenv("TORBOXDAV_TEST_BAD_INT", "forty")
	t.Setenv("TORBOXDAV_TEST_SECONDS", "90")
	t.Setenv("TORBOXDAV_TEST_DURATION", "2h")

	assert.Equal(t, "value", GetString("TORBOXDAV_TEST_STRING", "x"))
	assert.Equal(t, "x", GetString("TORBOXDAV_TEST_UNSET", "x"))
	assert.Equal(t, 42, GetInt("TORBOXDAV_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("TORBOXDAV_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, GetDuration("TORBOXDAV_TEST_SECONDS", time.Minute))
	assert.Equal(t, 2*time.Hour, GetDuration("TORBOXDAV_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("TORBOXDAV_TEST_UNSET", time.Minute))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TORBOXDAV_TEST_FROM_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TORBOXDAV_TEST_FROM_FILE") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "loaded", GetString("TORBOXDAV_TEST_FROM_FILE", ""))

	err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
