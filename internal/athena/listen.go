package athena

import (
	"context"
	"time"

	log "log/slog"

	"athena/internal/audio"
	"athena/internal/stt"
)

// VoiceListener glues the microphone recorder to the remote transcriber.
type VoiceListener struct {
	rec *audio.Recorder
	tr  *stt.Transcriber

	timeout   time.Duration
	maxPhrase time.Duration
}

func NewVoiceListener(rec *audio.Recorder, tr *stt.Transcriber, timeout, maxPhrase time.Duration) *VoiceListener {
	return &VoiceListener{
		rec:       rec,
		tr:        tr,
		timeout:   timeout,
		maxPhrase: maxPhrase,
	}
}

func (l *VoiceListener) Listen(ctx context.Context) (string, error) {
	log.Info("Listening for speech...")

	pcm, err := l.rec.Capture(l.timeout, l.maxPhrase)
	if err != nil {
		return "", err
	}

	log.Debug("Recorded", "samples", len(pcm))

	return l.tr.Transcribe(ctx, pcm)
}
