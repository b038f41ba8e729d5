package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverlayFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadOverlay_MissingFileYieldsEmptyOverlay(t *testing.T) {
	overlay, err := LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, overlay)
}

func TestOverlayGet_EnvWinsOverFileWinsOverDefault(t *testing.T) {
	path := writeOverlayFile(t, "AMQP_HOST: rabbit.internal\nPREFETCH: \"4\"\n")
	overlay, err := LoadOverlay(path)
	require.NoError(t, err)

	assert.Equal(t, "rabbit.internal", overlay.Get("AMQP_HOST", "localhost"))
	assert.Equal(t, "localhost", overlay.Get("POSTGRES_HOST", "localhost"))

	t.Setenv("AMQP_HOST", "rabbit.prod")
	assert.Equal(t, "rabbit.prod", overlay.Get("AMQP_HOST", "localhost"))
}

func TestOverlayGetInt(t *testing.T) {
	path := writeOverlayFile(t, "PREFETCH: \"4\"\nMAX_RETRIES: not-a-number\n")
	overlay, err := LoadOverlay(path)
	require.NoError(t, err)

	assert.Equal(t, 4, overlay.GetInt("PREFETCH", 1))
	assert.Equal(t, 3, overlay.GetInt("MAX_RETRIES", 3))
	assert.Equal(t, 9, overlay.GetInt("UNSET_KEY", 9))

	t.Setenv("PREFETCH", "16")
	assert.Equal(t, 16, overlay.GetInt("PREFETCH", 1))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SOME_KEY", "value")
	assert.Equal(t, "value", GetEnv("SOME_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("SOME_OTHER_KEY", "fallback"))
}
