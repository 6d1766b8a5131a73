package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxsplit/internal/apperrors"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	in := New(t.TempDir(), 10)

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{name: "valid mp3", filename: "episode.mp3", size: 1024},
		{name: "valid wav uppercase ext", filename: "EPISODE.WAV", size: 1024},
		{name: "valid flac", filename: "session.flac", size: 1024},
		{name: "valid m4a", filename: "memo.m4a", size: 1024},
		{name: "valid ogg", filename: "call.ogg", size: 1024},
		{name: "rejected extension", filename: "video.mp4", size: 1024, wantErr: true},
		{name: "no extension", filename: "noext", size: 1024, wantErr: true},
		{name: "empty filename", filename: "", size: 1024, wantErr: true},
		{name: "empty file", filename: "episode.mp3", size: 0, wantErr: true},
		{name: "negative size", filename: "episode.mp3", size: -1, wantErr: true},
		{name: "over size cap", filename: "episode.mp3", size: 11 * 1024 * 1024, wantErr: true},
		{name: "exactly at cap", filename: "episode.mp3", size: 10 * 1024 * 1024},
		{name: "path traversal in name", filename: "../../etc/passwd.mp3", size: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := in.Validate(tt.filename, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	t.Parallel()

	t.Run("stores upload under generated name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := New(dir, 10)

		path, err := in.Save(context.Background(), strings.NewReader("audio bytes"), "episode.mp3")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(path, dir))
		assert.Equal(t, ".mp3", filepath.Ext(path))
		// Generated name must not leak the original filename.
		assert.NotContains(t, filepath.Base(path), "episode")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "audio bytes", string(data))
	})

	t.Run("rejects body over the cap", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := New(dir, 10)
		in.maxBytes = 8 // shrink the cap to keep the test small

		_, err := in.Save(context.Background(), strings.NewReader("way more than eight"), "a.mp3")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "oversized upload must not be left on disk")
	})

	t.Run("rejects empty body", func(t *testing.T) {
		t.Parallel()

		in := New(t.TempDir(), 10)
		_, err := in.Save(context.Background(), strings.NewReader(""), "a.mp3")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func TestRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := New(dir, 10)

	path, err := in.Save(context.Background(), strings.NewReader("x"), "a.wav")
	require.NoError(t, err)

	require.NoError(t, in.Remove(path))
	assert.NoFileExists(t, path)

	// Removing twice is not an error.
	assert.NoError(t, in.Remove(path))
}

func TestAllowedExtensions(t *testing.T) {
	t.Parallel()

	exts := AllowedExtensions()
	assert.Len(t, exts, 5)
	assert.Contains(t, exts, ".mp3")
	assert.Contains(t, exts, ".ogg")
}
