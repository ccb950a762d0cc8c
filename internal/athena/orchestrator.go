// Package athena holds the turn-taking loop that ties microphone capture,
// remote transcription, the conversation session and speech synthesis into
// one voice session with two modes: conversation and command execution.
package athena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "log/slog"

	"athena/internal/audio"
	"athena/internal/config"
)

const (
	// TriggerPhrase switches from conversation to command-execution mode.
	TriggerPhrase = "start open interpreter"
	// ExitPhrase ends a command-execution session from the inside.
	ExitPhrase = "exit interpreter"
)

var exitWords = []string{"exit", "quit", "goodbye"}

// Listener captures one utterance and transcribes it. A silent window is
// reported as audio.ErrNoSpeech.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker voices text; SayWith selects a non-default voice.
type Speaker interface {
	Say(ctx context.Context, text string) error
	SayWith(ctx context.Context, text, voice string) error
}

// Conversation is the assistant session. Ask never fails: it degrades to an
// apology string, so the loop only decides what to speak next.
type Conversation interface {
	EnsureAssistant(ctx context.Context) error
	Ask(ctx context.Context, query string) string
}

// Commander is the stateful command-execution agent.
type Commander interface {
	Chat(ctx context.Context, input string) (string, error)
	Reset()
}

type Orchestrator struct {
	listener Listener
	speaker  Speaker
	convo    Conversation
	cmd      Commander

	userName    string
	interpVoice string
	pause       time.Duration
}

func NewOrchestrator(l Listener, s Speaker, c Conversation, cmd Commander, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		listener:    l,
		speaker:     s,
		convo:       c,
		cmd:         cmd,
		userName:    cfg.UserName,
		interpVoice: cfg.InterpreterVoice,
		pause:       time.Second,
	}
}

// Run drives the session until an exit word or ctx cancellation. The only
// fatal failure is persona initialization; every per-turn error is spoken
// and the cycle restarts.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.convo.EnsureAssistant(ctx); err != nil {
		return fmt.Errorf("initialize assistant: %w", err)
	}

	o.reply(ctx, fmt.Sprintf("Hey %s! What's up!", o.userName))

	for {
		select {
		case <-ctx.Done():
			o.farewell(fmt.Sprintf("Thank you for chatting with me. Goodbye, %s!", o.userName))
			return nil
		default:
		}

		utterance, err := o.listener.Listen(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrNoSpeech) {
				log.Debug("No input detected, still listening")
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.Error("Turn failed", "err", err)
			o.reply(ctx, "An error occurred. I'm ready to assist with something else.")
			continue
		}

		log.Info("Utterance", "user", o.userName, "text", utterance)

		switch {
		case isExitWord(utterance):
			o.farewell(fmt.Sprintf("Goodbye, %s! Have a great day.", o.userName))
			return nil

		case strings.EqualFold(utterance, TriggerPhrase):
			o.reply(ctx, o.interpreterSession(ctx))

		default:
			o.reply(ctx, o.convo.Ask(ctx, utterance))
		}

		time.Sleep(o.pause)
	}
}

// interpreterSession runs the command-execution sub-loop until the exit
// phrase. A failing command is spoken and the loop continues; only the exit
// phrase (or cancellation) ends the session.
func (o *Orchestrator) interpreterSession(ctx context.Context) string {
	const ended = "Open Interpreter session ended."

	o.cmd.Reset()
	log.Info("Entering Open Interpreter mode", "exit_phrase", ExitPhrase)
	o.sayInterp(ctx, "Entering Open Interpreter mode. Say 'Exit Interpreter' to end the session.")

	for {
		if ctx.Err() != nil {
			return ended
		}

		utterance, err := o.listener.Listen(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrNoSpeech) {
				log.Debug("No input detected in interpreter mode")
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.Error("Interpreter capture failed", "err", err)
			continue
		}

		if strings.EqualFold(utterance, ExitPhrase) {
			o.sayInterp(ctx, "Exiting Open Interpreter mode.")
			return ended
		}

		resp, err := o.cmd.Chat(ctx, utterance)
		if err != nil {
			log.Error("Interpreter command failed", "err", err)
			o.sayInterp(ctx, fmt.Sprintf("Error in Open Interpreter: %v", err))
			continue
		}

		log.Info("Open Interpreter", "reply", resp)
		o.sayInterp(ctx, resp)
	}
}

// reply logs and speaks one response. Speech failures are per-turn
// recoverable: the text was already printed, so only log them.
func (o *Orchestrator) reply(ctx context.Context, text string) {
	log.Info("Athena", "say", text)
	if err := o.speaker.Say(ctx, text); err != nil {
		log.Error("Playback failed", "err", err)
	}
}

func (o *Orchestrator) sayInterp(ctx context.Context, text string) {
	if err := o.speaker.SayWith(ctx, text, o.interpVoice); err != nil {
		log.Error("Playback failed", "err", err)
	}
}

// farewell is spoken on a detached context so the goodbye still plays when
// the session context was cancelled by an interrupt.
func (o *Orchestrator) farewell(text string) {
	log.Info("Athena", "say", text)
	if err := o.speaker.Say(context.Background(), text); err != nil {
		log.Error("Playback failed", "err", err)
	}
}

func isExitWord(utterance string) bool {
	for _, w := range exitWords {
		if strings.EqualFold(utterance, w) {
			return true
		}
	}
	return false
}
