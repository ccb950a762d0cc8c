package stt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "log/slog"

	openai "github.com/sashabaranov/go-openai"

	"athena/internal/audio"
	"athena/pkg/audioconv"
)

// api is the slice of the OpenAI client the transcriber needs.
type api interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Transcriber uploads captured PCM to the remote Whisper endpoint. The audio
// is staged in a temp WAV file that is removed regardless of the outcome.
type Transcriber struct {
	client api
	dir    string
}

func NewTranscriber(client api) *Transcriber {
	return &Transcriber{client: client, dir: os.TempDir()}
}

// Transcribe returns the recognized text for one utterance. An empty
// transcript is reported as audio.ErrNoSpeech so callers can treat it the
// same as a capture timeout.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	path := filepath.Join(t.dir, fmt.Sprintf("athena-%d.wav", time.Now().UnixNano()))

	if err := audioconv.WriteWAVFile(path, pcm); err != nil {
		return "", fmt.Errorf("stage wav: %w", err)
	}
	defer os.Remove(path)

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	log.Debug("Transcribed", "elapsed", time.Since(start))

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", audio.ErrNoSpeech
	}

	return text, nil
}
