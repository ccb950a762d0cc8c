package tts

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"athena/internal/audio"
)

type api interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Speaker synthesizes text through the remote TTS endpoint and plays the
// resulting MP3 stream. Synthesis and playback are both blocking.
type Speaker struct {
	client api
	voice  string

	play func(data []byte) error
}

func NewSpeaker(client api, voice string) *Speaker {
	return &Speaker{
		client: client,
		voice:  voice,
		play:   audio.PlayMP3,
	}
}

// Say speaks text with the configured voice.
func (s *Speaker) Say(ctx context.Context, text string) error {
	return s.SayWith(ctx, text, s.voice)
}

// SayWith speaks text with an explicit voice, used by the command-execution
// session which announces itself in a different voice.
func (s *Speaker) SayWith(ctx context.Context, text, voice string) error {
	if text == "" {
		return nil
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(voice),
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("read audio stream: %w", err)
	}

	return s.play(data)
}
