package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment value the daemon reads. Read once at
// startup; nothing is reconfigured at runtime.
type Config struct {
	APIKey string
	Model  string

	// AssistantID is an optional previously created persona. When retrieval
	// fails a fresh persona is created with Instructions and Tools.
	AssistantID  string
	UserName     string
	Instructions string
	Tools        []string

	ListenTimeout time.Duration // max wait for speech to start
	MaxPhrase     time.Duration // max length of one utterance

	RunPollInterval time.Duration
	RunTimeout      time.Duration

	Voice            string // conversation voice
	InterpreterVoice string // command-execution voice

	InterpreterAutoRun bool
}

const defaultInstructions = "You are Athena, a friendly and supportive personal " +
	"AI companion. Keep answers short enough to be spoken aloud."

// FromEnv builds the config from process environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		Model:        getEnv("OPENAI_MODEL", "gpt-4o"),
		AssistantID:  os.Getenv("ASSISTANT_ID"),
		UserName:     getEnv("USER_NAME", "friend"),
		Instructions: getEnv("ATHENA_INSTRUCTIONS", defaultInstructions),
		Tools:        splitList(getEnv("ATHENA_TOOLS", "code_interpreter")),

		ListenTimeout: getDurationEnv("SPEECH_RECOGNITION_TIMEOUT", 10*time.Second),
		MaxPhrase:     getDurationEnv("SPEECH_RECOGNITION_PHRASE_TIME_LIMIT", 15*time.Second),

		RunPollInterval: getDurationEnv("RUN_POLL_INTERVAL", time.Second),
		RunTimeout:      getDurationEnv("RUN_TIMEOUT", 2*time.Minute),

		Voice:            getEnv("ATHENA_VOICE", "nova"),
		InterpreterVoice: getEnv("INTERPRETER_VOICE", "onyx"),

		InterpreterAutoRun: getBoolEnv("INTERPRETER_AUTO_RUN", false),
	}

	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

// getDurationEnv accepts either a Go duration ("1m30s") or a bare number of
// seconds, which is what the original env files carried.
func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
