package codec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxsplit/internal/apperrors"
)

type fakeRunner struct {
	calls  [][]string
	result commandResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (commandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

func TestBuildDecodeArgs(t *testing.T) {
	t.Parallel()

	t.Run("without hint lets ffmpeg sniff", func(t *testing.T) {
		t.Parallel()

		args := buildDecodeArgs("in.mp3", "", "out.wav")
		assert.NotContains(t, args, "-f")
		assert.Contains(t, args, "in.mp3")
		assert.Contains(t, args, "pcm_s16le")
		assert.Equal(t, "out.wav", args[len(args)-1])
	})

	t.Run("with hint forces format", func(t *testing.T) {
		t.Parallel()

		args := buildDecodeArgs("in.dat", "mp3", "out.wav")
		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-f mp3")
		// Hint must come before the input flag.
		assert.Less(t, indexOf(args, "-f"), indexOf(args, "-i"))
	})
}

func TestBuildRenderArgs(t *testing.T) {
	t.Parallel()

	spans := []Span{{Start: 0, End: 3}, {Start: 7.5, End: 12}}
	args := buildRenderArgs("src.wav", spans, 500*time.Millisecond, "track.wav")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "atrim=start=0.000:end=3.000")
	assert.Contains(t, joined, "atrim=start=7.500:end=12.000")
	assert.Contains(t, joined, "aevalsrc=0:d=0.500")
	// Two spans plus one silence gap feed the concat filter.
	assert.Contains(t, joined, "concat=n=3:v=0:a=1[out]")
	assert.Equal(t, "track.wav", args[len(args)-1])
}

func TestTrackDuration(t *testing.T) {
	t.Parallel()

	spans := []Span{{Start: 0, End: 3}, {Start: 7.5, End: 12}, {Start: 20, End: 21}}
	got := TrackDuration(spans, 500*time.Millisecond)
	assert.InDelta(t, 3+4.5+1+0.5+0.5, got, 1e-9)

	assert.InDelta(t, 2.0, TrackDuration([]Span{{Start: 1, End: 3}}, time.Second), 1e-9)
	assert.Zero(t, TrackDuration(nil, time.Second))
	// Inverted spans contribute nothing.
	assert.InDelta(t, 0.5, TrackDuration([]Span{{Start: 3, End: 1}, {Start: 0, End: 0.5}}, time.Second), 1e-9)
}

func TestFFmpegDecodeFailure(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg("ffmpeg")
	f.runner = &fakeRunner{
		result: commandResult{ExitCode: 1, Stderr: "Invalid data found when processing input"},
		err:    errors.New("exit status 1"),
	}

	err := f.Decode(context.Background(), "in.bin", "", "out.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExternal))
}

func TestFFmpegDecodeContextDeadline(t *testing.T) {
	t.Parallel()

	f := NewFFmpeg("ffmpeg")
	f.runner = &fakeRunner{result: commandResult{ExitCode: -1}, err: errors.New("signal: killed")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Decode(ctx, "in.mp3", "", "out.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTimeout))
}

func TestFFmpegRenderTrack(t *testing.T) {
	t.Parallel()

	t.Run("returns computed duration", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		f := NewFFmpeg("ffmpeg")
		f.runner = runner

		dur, err := f.RenderTrack(context.Background(), "src.wav",
			[]Span{{Start: 0, End: 2}, {Start: 4, End: 6}}, 500*time.Millisecond, "track.wav")
		require.NoError(t, err)
		assert.InDelta(t, 4.5, dur, 1e-9)
		require.Len(t, runner.calls, 1)
	})

	t.Run("rejects empty span list", func(t *testing.T) {
		t.Parallel()

		f := NewFFmpeg("ffmpeg")
		f.runner = &fakeRunner{}

		_, err := f.RenderTrack(context.Background(), "src.wav", nil, time.Second, "track.wav")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func indexOf(list []string, want string) int {
	for i, v := range list {
		if v == want {
			return i
		}
	}
	return -1
}
