package audioconv

import (
	"errors"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate = 16000
	BitDepth   = 16
)

// WriteWAVFile encodes mono float32 PCM @ 16 kHz into a 16-bit PCM WAV file.
// This is the payload shape the transcription endpoint expects.
func WriteWAVFile(path string, pcm []float32) error {
	if len(pcm) == 0 {
		return errors.New("no audio samples provided")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, SampleRate, BitDepth, 1, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  SampleRate,
		},
		Data:           Float32SliceToInt(pcm),
		SourceBitDepth: BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Float32SliceToInt converts [-1, 1] samples to signed 16-bit values.
func Float32SliceToInt(in []float32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(clamp(float64(v), -1.0, 1.0) * 32767.0)
	}
	return out
}

// DownmixInterleaved averages interleaved channels into mono.
func DownmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
