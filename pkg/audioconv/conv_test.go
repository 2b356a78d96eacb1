package audioconv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, rate, channels int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestWAVStereo48kToMono16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.wav")
	frames := 4800
	samples := make([]int, 0, frames*2)
	for i := 0; i < frames; i++ {
		samples = append(samples, 16384, 0) // L=0.5, R=0
	}
	writeWAV(t, path, 48000, 2, samples)

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Len(t, pcm, 1600)
	for _, v := range pcm[:10] {
		assert.InDelta(t, 0.25, v, 1e-3)
	}
}

func TestWAVMaxSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip")
	writeWAV(t, path, 16000, 1, make([]int, 16000))

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 100})
	require.NoError(t, err, "RIFF header is sniffed without an extension")
	assert.Len(t, pcm, 100)
}

func TestUnsupported(t *testing.T) {
	_, err := Decode(context.Background(), bytes.NewReader([]byte("plain text")), ".txt", Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestBadOgg(t *testing.T) {
	_, err := Decode(context.Background(), bytes.NewReader([]byte("OggS garbage")), ".ogg", Options{})
	assert.Error(t, err)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, bytes.NewReader(nil), ".wav", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMissingFile(t *testing.T) {
	_, err := ConvertFileToPCM16k(context.Background(), filepath.Join(t.TempDir(), "none.wav"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float32{0.5, -0.25}, downmixInterleaved([]float32{1, 0, -0.5, 0}, 2))
	in := []float32{1, 2}
	assert.Equal(t, in, downmixInterleaved(in, 1))
}

func TestResampleLinear(t *testing.T) {
	assert.Equal(t, []float32{0, 0.5, 1, 1}, resampleLinear([]float32{0, 1}, 8000, 16000))
	assert.Len(t, resampleLinear(make([]float32, 1000), 44100, 16000), 363)
	assert.Empty(t, resampleLinear(nil, 44100, 16000))
}

func TestIntScaling(t *testing.T) {
	got := intSliceToFloat32([]int{32767, -32768, 0}, 16)
	assert.InDelta(t, 1.0, got[0], 1e-4)
	assert.Equal(t, float32(-1), got[1])
	assert.Equal(t, float32(0), got[2])
}
