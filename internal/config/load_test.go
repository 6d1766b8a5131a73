package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOXSPLIT_DATABASE_URL", "postgres://localhost:5432/voxsplit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 2, cfg.Pipeline.WorkerCount)
	assert.Equal(t, 100, cfg.Pipeline.QueueSize)
	assert.Equal(t, 30, cfg.Pipeline.StaleJobTimeoutMinutes)
	assert.Equal(t, 2.0, cfg.Pipeline.SpeakerGapSeconds)
	assert.Equal(t, "whisperx", cfg.Engine.WhisperXPath)
	assert.Equal(t, "ffmpeg", cfg.Engine.FFmpegPath)
	assert.Equal(t, "cpu", cfg.Engine.Device)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VOXSPLIT_DATABASE_URL", "postgres://localhost:5432/voxsplit")
	t.Setenv("VOXSPLIT_SERVER_PORT", "9090")
	t.Setenv("VOXSPLIT_PIPELINE_WORKER_COUNT", "8")
	t.Setenv("VOXSPLIT_ENGINE_DEVICE", "cuda")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.WorkerCount)
	assert.Equal(t, "cuda", cfg.Engine.Device)
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	t.Setenv("VOXSPLIT_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid log level", "VOXSPLIT_SERVER_LOG_LEVEL", "verbose"},
		{"invalid device", "VOXSPLIT_ENGINE_DEVICE", "tpu"},
		{"zero workers", "VOXSPLIT_PIPELINE_WORKER_COUNT", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VOXSPLIT_DATABASE_URL", "postgres://localhost:5432/voxsplit")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
