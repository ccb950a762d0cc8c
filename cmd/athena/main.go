package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/sashabaranov/go-openai"

	"athena/internal/assistant"
	"athena/internal/athena"
	"athena/internal/audio"
	"athena/internal/config"
	"athena/internal/interpreter"
	"athena/internal/proxy"
	"athena/internal/stt"
	"athena/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Optional SOCKS5 proxy address")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	log.Info("Initializing Athena", "user", cfg.UserName, "model", cfg.Model)

	httpClient, err := proxy.NewHTTPClient(*proxyAddr)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
		os.Exit(1)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.HTTPClient = httpClient
	client := openai.NewClientWithConfig(apiCfg)

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	listener := athena.NewVoiceListener(
		rec,
		stt.NewTranscriber(client),
		cfg.ListenTimeout,
		cfg.MaxPhrase,
	)
	speaker := tts.NewSpeaker(client, cfg.Voice)
	session := assistant.NewSession(client, cfg)
	agent := interpreter.NewAgent(client, cfg.Model, cfg.InterpreterAutoRun)

	orch := athena.NewOrchestrator(listener, speaker, session, agent, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		log.Error("Failed to start session", "err", err)
		os.Exit(1)
	}

	log.Info("Session ended")
}
