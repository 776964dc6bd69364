package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// readWAV decodes a PCM WAV file into a double stream scaled to [-1, 1).
func readWAV(path string) (*stream.Stream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode: %w", path, err)
	}
	return fromIntBuffer(buf, int(decoder.NumChans), int(decoder.BitDepth), float64(decoder.SampleRate))
}

func fromIntBuffer(buf *audio.IntBuffer, channels, bitDepth int, sampleRate float64) (*stream.Stream, error) {
	if channels <= 0 || bitDepth <= 0 {
		return nil, fmt.Errorf("unsupported wav layout: %d channels, %d bits", channels, bitDepth)
	}
	scale := math.Ldexp(1, bitDepth-1)
	frames := len(buf.Data) / channels
	data := make([]float64, frames*channels)
	for i := range data {
		data[i] = float64(buf.Data[i]) / scale
	}
	return stream.FromFloat64(data, channels, sampleRate)
}

// writeCSV writes one row per sample: the sample's start time and its
// channels.
func writeCSV(w io.Writer, s *stream.Stream, precision int) error {
	values, err := stream.ToFloat64(s)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	record := make([]string, s.Dim+1)
	for i := range s.Num {
		t := s.Time
		if s.SampleRate > 0 {
			t += float64(i) / s.SampleRate
		}
		record[0] = strconv.FormatFloat(t, 'f', precision, 64)
		for ch := range s.Dim {
			record[ch+1] = strconv.FormatFloat(values[i*s.Dim+ch], 'f', precision, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCSVFile(path string, s *stream.Stream, precision int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeCSV(file, s, precision); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
