package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

func writeWAV(t *testing.T, channels, rate int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	file, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(file, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())
	return path
}

func TestReadWAV(t *testing.T) {
	path := writeWAV(t, 2, 8000, []int{16384, -16384, 0, 8192})
	s, err := readWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Num)
	assert.Equal(t, 2, s.Dim)
	assert.Equal(t, 8000.0, s.SampleRate)
	assert.Equal(t, []float64{0.5, -0.5, 0, 0.25}, s.Float64s())

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("not a wav file"), 0o644))
	_, err = readWAV(bogus)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	s, err := stream.FromFloat64([]float64{1, 2, 3, 4}, 2, 10)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, s, 2))
	assert.Equal(t, "0.00,1.00,2.00\n0.10,3.00,4.00\n", buf.String())
}

func TestButterCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"butter", "--order", "2", "--low", "0.5", "--nfft", "8"})
	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// one section, a blank line, the header and five bins
	require.Len(t, lines, 8)
	assert.Len(t, strings.Fields(lines[0]), 6)
	assert.Equal(t, "0 1.000000000", lines[3])
	assert.Equal(t, "0.5 0.000000000", lines[7])
}

func TestRunCommand(t *testing.T) {
	data := make([]int, 16)
	for i := range data {
		data[i] = 16384
	}
	wavPath := writeWAV(t, 1, 8, data)
	pipelinePath := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(pipelinePath, []byte(`
frame: 4
boundary: drop
filters:
  - type: iir
    params: {coefs: [[2, 0, 0, 1, 0, 0]]}
features:
  - type: avgvar
    params: {win: 0.5}
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--pipeline", pipelinePath, wavPath})
	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "# "+wavPath, lines[0])
	for _, line := range lines[1:] {
		assert.True(t, strings.HasSuffix(line, ",1.000000"), line)
	}
}
