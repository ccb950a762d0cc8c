package audio

import (
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrNoSpeech reports that nothing above the silence threshold was heard
// within the listen timeout. Callers treat it as "no input", not a failure.
var ErrNoSpeech = errors.New("no speech detected")

const (
	sampleRate       = 16000
	frameSize        = 320 // 20ms
	frameMillis      = 20
	silenceThreshRMS = 0.015
	silenceDuration  = 600 * time.Millisecond
)

type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture blocks until one utterance is recorded. Recording starts when the
// frame RMS rises above the silence threshold and stops after 600ms of
// trailing silence. If no speech starts within timeout, ErrNoSpeech is
// returned; maxPhrase bounds the utterance length once speech has started.
func (r *Recorder) Capture(timeout, maxPhrase time.Duration) ([]float32, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxPhrase <= 0 {
		maxPhrase = 15 * time.Second
	}

	buf := make([]float32, frameSize)
	out := make([]float32, 0, sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
		speechFrames  int
	)

	timeoutFrames := int(timeout.Milliseconds() / frameMillis)
	maxSpeechFrames := int(maxPhrase.Milliseconds() / frameMillis)

	for i := 0; ; i++ {
		if !speaking && i >= timeoutFrames {
			return nil, ErrNoSpeech
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		rms := frameRMS(buf)

		if rms > silenceThreshRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
		} else if speaking {
			silenceFrames++
			if time.Duration(silenceFrames)*frameMillis*time.Millisecond >= silenceDuration {
				break
			}
			out = append(out, buf...)
		}

		if speaking {
			speechFrames++
			if speechFrames >= maxSpeechFrames {
				break
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSpeech
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
