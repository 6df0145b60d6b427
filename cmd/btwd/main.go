package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"btwd/internal/answer"
	"btwd/internal/asr"
	"btwd/internal/audio"
	"btwd/internal/capture"
	"btwd/internal/config"
	"btwd/internal/executor"
	"btwd/internal/intent"
	"btwd/internal/ipc"
	"btwd/internal/orchestrator"
	"btwd/internal/proxy"
	"btwd/internal/registry"
	"btwd/internal/tts"
	"btwd/internal/vad"
	"btwd/internal/wake"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// llmBaseURL resolves the OpenAI-compatible endpoint for the configured
// LLM provider (§9 Open Question: llm.provider default resolution).
func llmBaseURL(provider string) string {
	switch provider {
	case "mistral":
		return "https://api.mistral.ai/v1/"
	default:
		return "https://api.groq.com/openai/v1/"
	}
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	configPath := cli.StringP("config", "c", "/etc/btwd/config.yaml", "Config file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (disabled if empty)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("booting btwd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	secrets, err := config.LoadSecrets(*envFile, cfg.LLM.Provider)
	if err != nil {
		log.Error("failed to load secrets", "err", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if *proxyAddr != "" {
		httpClient, err = proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
	}

	llmClient := openai.NewClient(
		option.WithAPIKey(secrets.LLMCredential),
		option.WithHTTPClient(httpClient),
		option.WithBaseURL(llmBaseURL(cfg.LLM.Provider)),
	)

	reg, err := registry.Load(cfg.Execution.RegistryPath)
	if err != nil {
		log.Error("failed to load command registry", "path", cfg.Execution.RegistryPath, "err", err)
		os.Exit(1)
	}
	log.Info("loaded command registry", "commands", len(reg.List()))

	spotter, err := wake.New(secrets.WakeWordAccessKey, wake.Config{
		ModelPath:   cfg.WakeWord.ModelPath,
		PPNPath:     cfg.WakeWord.PPNPath,
		Sensitivity: cfg.WakeWord.Sensitivity,
	})
	if err != nil {
		log.Error("failed to init wake detector", "err", err)
		os.Exit(1)
	}
	defer spotter.Close()

	src, err := audio.Open(spotter.FrameLength(), 32)
	if err != nil {
		log.Error("failed to open audio device", "err", err)
		os.Exit(1)
	}
	defer src.Close()

	preRollFrames := int(cfg.Speech.PreRollMs) * audio.SampleRate / 1000 / spotter.FrameLength()
	if preRollFrames < 1 {
		preRollFrames = 1
	}
	preRoll := audio.NewRingBuffer(preRollFrames)

	gate := vad.NewGateWithThreshold(float64(cfg.Speech.SilenceThreshold))
	capturer := capture.New(capture.Config{
		SampleRate:       audio.SampleRate,
		FrameSamples:     spotter.FrameLength(),
		NStart:           cfg.Speech.NStart,
		TrailingSilence:  time.Duration(cfg.Speech.SilenceDurationMs) * time.Millisecond,
		MaxUtterance:     time.Duration(cfg.Speech.MaxUtteranceSecs) * time.Second,
		PreSpeechTimeout: time.Duration(cfg.Speech.PreSpeechTimeoutMs) * time.Millisecond,
		PreRoll:          time.Duration(cfg.Speech.PreRollMs) * time.Millisecond,
	}, gate)

	asrClient := asr.New(llmClient, "whisper-large-v3", 15*time.Second)

	classifier := intent.NewLLMClassifier(llmClient, "", 10*time.Second)
	router := intent.New(intent.Config{
		DeterministicThreshold: cfg.Intent.DeterministicThreshold,
		LLMFallbackThreshold:   cfg.Intent.LLMFallbackThreshold,
	}, reg, classifier)

	exec := executor.New(reg, executor.Config{
		ConfirmationTimeout: time.Duration(cfg.Execution.ConfirmationTimeoutSeconds) * time.Second,
		DryRun:              cfg.Execution.DryRun,
	}, executor.RunConfirmHelper(cfg.Execution.HelperPath), executor.PollSpool)

	answerPath := answer.New(answer.Config{
		SearchEnabled:    cfg.Search.Enabled,
		SearchTimeout:    time.Duration(cfg.Search.TimeoutMs) * time.Millisecond,
		SearchCountry:    cfg.Search.Country,
		SearchCredential: secrets.SearchCredential,
	}, answer.NewTavilyClient(httpClient, secrets.SearchCredential), llmClient, "")

	ttsCredential := os.Getenv("GROQ_API_KEY")
	if ttsCredential == "" {
		ttsCredential = secrets.LLMCredential
	}
	ttsClient := tts.New(httpClient, ttsCredential, "")
	ttsCfg := tts.Config{
		Enabled:  cfg.SpeechOut.Enabled,
		Provider: cfg.SpeechOut.Provider,
		Voice:    cfg.SpeechOut.Voice,
		Format:   cfg.SpeechOut.Format,
		Rate:     cfg.SpeechOut.Rate,
	}

	ducker := audio.NewDucker(cfg.Ducking.SelfNames, cfg.Ducking.MinVolume)

	orch := orchestrator.New(spotter, src, preRoll, capturer, asrClient, router, exec, answerPath, ttsClient, ttsCfg, ducker, orchestrator.UIConfig{
		ListeningNotification: cfg.UI.ListeningNotification,
		OSD:                   cfg.UI.OSD,
		OSDTimeoutMs:          cfg.UI.OSDTimeoutMs,
		DuckOtherAudio:        cfg.Ducking.Enabled,
		DuckFactor:            cfg.Ducking.DuckFactor,
		DuckFadeMs:            cfg.Ducking.FadeMs,
	})

	if err := ipc.StartServer(func(cmd ipc.Command) ipc.Response {
		switch cmd.Action {
		case ipc.ActionTrigger:
			orch.Trigger()
			return ipc.Response{Success: true}
		case ipc.ActionStatus:
			return orch.Status()
		case ipc.ActionCancel:
			orch.Cancel()
			return ipc.Response{Success: true}
		default:
			return ipc.Response{Success: false, Error: "unknown action: " + cmd.Action}
		}
	}); err != nil {
		log.Error("failed to start ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("btwd ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		log.Error("orchestrator stopped", "err", err)
		os.Exit(1)
	}

	log.Info("btwd shutting down")
}
