package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder"
)

// fakeFFmpeg creates a script that records its arguments and writes
// 32 zero bytes to the last argument (the output file).
func fakeFFmpeg(t *testing.T, exitCode int) (string, string) {
	if runtime.GOOS == "windows" {
		t.Skip("the fake ffmpeg is a shell script")
	}
	dir := t.TempDir()
	argsPath := filepath.Join(dir, "args")
	scriptPath := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> '" + argsPath + "'\n" +
		"if [ \"$1\" = \"-version\" ]; then exit 0; fi\n" +
		"if [ " + strconv.Itoa(exitCode) + " -ne 0 ]; then echo 'Invalid data found when processing input' >&2; exit 1; fi\n" +
		"for last; do :; done\n" +
		"head -c 32 /dev/zero > \"$last\"\n"
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))
	return scriptPath, argsPath
}

func readArgs(t *testing.T, argsPath string) []string {
	data, err := os.ReadFile(argsPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestExtract(t *testing.T) {
	ctx := context.Background()
	binary, argsPath := fakeFFmpeg(t, 0)
	workDir := t.TempDir()

	buf, err := New(binary).Extract(ctx, transcoder.ExtractRequest{
		MediaPath:  "/videos/in.mp4",
		WorkDir:    workDir,
		SampleRate: 44100,
		Channels:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, audio.SampleRate(44100), buf.SampleRate)
	assert.Equal(t, audio.Channel(2), buf.Channels)
	assert.Equal(t, audio.LayoutInterleaved, buf.Layout)
	assert.Equal(t, 4, buf.Length())

	args := readArgs(t, argsPath)
	require.Len(t, args, 1)
	assert.Equal(t, "-hide_banner -nostdin -y -i /videos/in.mp4 -vn -ac 2 -ar 44100 -f f32le "+filepath.Join(workDir, ExtractedFileName), args[0])
}

func TestExtractFailure(t *testing.T) {
	binary, _ := fakeFFmpeg(t, 1)
	_, err := New(binary).Extract(context.Background(), transcoder.ExtractRequest{
		MediaPath:  "/videos/in.mp4",
		WorkDir:    t.TempDir(),
		SampleRate: 16000,
		Channels:   1,
	})
	require.ErrorIs(t, err, transcoder.ErrExtraction)
	require.ErrorContains(t, err, "Invalid data found")

	_, err = New(binary).Extract(context.Background(), transcoder.ExtractRequest{
		MediaPath: "/videos/in.mp4",
		WorkDir:   t.TempDir(),
	})
	require.ErrorIs(t, err, transcoder.ErrExtraction)
}

func TestRemux(t *testing.T) {
	ctx := context.Background()
	binary, argsPath := fakeFFmpeg(t, 0)
	workDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "out.mp4")

	samples, err := audio.NewSampleBufferFromChannels(16000, audio.LayoutPlanar, [][]float64{
		{0.1, 0.2, 0.3},
		{-0.1, -0.2, -0.3},
	})
	require.NoError(t, err)

	err = New(binary).Remux(ctx, transcoder.RemuxRequest{
		OriginalMediaPath: "/videos/in.mp4",
		OutputPath:        outputPath,
		WorkDir:           workDir,
		Samples:           samples,
	})
	require.NoError(t, err)
	require.FileExists(t, outputPath)

	processed, err := os.ReadFile(filepath.Join(workDir, ProcessedFileName))
	require.NoError(t, err)
	require.Len(t, processed, 6*4)

	args := readArgs(t, argsPath)
	require.Len(t, args, 1)
	assert.Equal(t, "-hide_banner -nostdin -y -i /videos/in.mp4 -f f32le -ar 16000 -ac 2 -i "+filepath.Join(workDir, ProcessedFileName)+" -c:v copy -c:a aac -map 0:v:0 -map 1:a:0 "+outputPath, args[0])
}

func TestRemuxFailure(t *testing.T) {
	binary, _ := fakeFFmpeg(t, 1)
	err := New(binary).Remux(context.Background(), transcoder.RemuxRequest{
		OriginalMediaPath: "/videos/in.mp4",
		OutputPath:        filepath.Join(t.TempDir(), "out.mp4"),
		WorkDir:           t.TempDir(),
		Samples:           &audio.SampleBuffer{SampleRate: 16000, Channels: 1, Samples: []float64{0}},
	})
	require.ErrorIs(t, err, transcoder.ErrRemux)
}

func TestCheckAvailable(t *testing.T) {
	binary, _ := fakeFFmpeg(t, 0)
	require.NoError(t, New(binary).CheckAvailable(context.Background()))
	require.Error(t, New(filepath.Join(t.TempDir(), "no-ffmpeg")).CheckAvailable(context.Background()))
}
