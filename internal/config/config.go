// Package config loads btwd's declarative configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from config.yaml.
type Config struct {
	Name      string          `yaml:"name"`
	WakeWord  WakeWord        `yaml:"wake_word"`
	Speech    Speech          `yaml:"speech"`
	Intent    IntentCfg       `yaml:"intent"`
	Execution ExecutionCfg    `yaml:"execution"`
	UI        UICfg           `yaml:"ui"`
	SpeechOut SpeechOutputCfg `yaml:"speech_output"`
	Search    SearchCfg       `yaml:"search"`
	LLM       LLMCfg          `yaml:"llm"`
	Ducking   AudioDuckCfg    `yaml:"ducking"`
}

// WakeWord configures the wake detector.
type WakeWord struct {
	PPNPath     string  `yaml:"ppn_path"`
	ModelPath   string  `yaml:"model_path"`
	Device      string  `yaml:"device"`
	Sensitivity float32 `yaml:"sensitivity"`
}

// Speech configures the utterance capturer's VAD bounds.
type Speech struct {
	SilenceThreshold   float32 `yaml:"silence_threshold"`
	SilenceDurationMs  uint32  `yaml:"silence_duration_ms"`
	MaxUtteranceSecs   uint32  `yaml:"max_utterance_seconds"`
	PreSpeechTimeoutMs uint32  `yaml:"pre_speech_timeout_ms"`
	PreRollMs          uint32  `yaml:"pre_roll_ms"`
	NStart             int     `yaml:"n_start"`
}

// IntentCfg configures the deterministic-vs-LLM-fallback thresholds.
type IntentCfg struct {
	DeterministicThreshold float32 `yaml:"deterministic_threshold"`
	LLMFallbackThreshold   float32 `yaml:"llm_fallback_threshold"`
}

// ExecutionCfg configures the safe executor.
type ExecutionCfg struct {
	ConfirmationTimeoutSeconds int    `yaml:"confirmation_timeout_seconds"`
	DryRun                     bool   `yaml:"dry_run"`
	HelperPath                 string `yaml:"helper_path"`
	RegistryPath               string `yaml:"registry_path"`
}

// UICfg configures OSD behaviour.
type UICfg struct {
	ListeningNotification bool `yaml:"listening_notification"`
	OSD                    bool `yaml:"osd"`
	OSDTimeoutMs           int  `yaml:"osd_timeout_ms"`
}

// SpeechOutputCfg configures TTS.
type SpeechOutputCfg struct {
	Enabled  bool    `yaml:"enabled"`
	Provider string  `yaml:"provider"`
	Voice    string  `yaml:"voice"`
	Format   string  `yaml:"format"`
	Rate     float32 `yaml:"rate"`
}

// SearchCfg configures the Answer Path's search step.
type SearchCfg struct {
	Enabled   bool   `yaml:"enabled"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Country   string `yaml:"country"`
}

// LLMCfg selects the summariser/classifier provider.
type LLMCfg struct {
	Provider string `yaml:"provider"`
}

// AudioDuckCfg configures internal/audio.Ducker: lowering every other
// PulseAudio stream's volume while btwd is listening or speaking.
type AudioDuckCfg struct {
	Enabled    bool     `yaml:"enabled"`
	SelfNames  []string `yaml:"self_names"`
	MinVolume  int      `yaml:"min_volume"`
	DuckFactor float64  `yaml:"duck_factor"`
	FadeMs     int      `yaml:"fade_ms"`
}

func defaults() Config {
	return Config{
		WakeWord: WakeWord{Device: "cpu", Sensitivity: 0.6},
		Speech: Speech{
			SilenceThreshold:   0.015,
			SilenceDurationMs:  700,
			MaxUtteranceSecs:   15,
			PreSpeechTimeoutMs: 3000,
			PreRollMs:          200,
			NStart:             3,
		},
		Intent: IntentCfg{
			DeterministicThreshold: 0.75,
			LLMFallbackThreshold:   0.8,
		},
		Execution: ExecutionCfg{
			ConfirmationTimeoutSeconds: 10,
			HelperPath:                 "/usr/local/libexec/btwd-confirm-helper",
			RegistryPath:               "/etc/btwd/commands.json",
		},
		UI:        UICfg{ListeningNotification: true, OSD: true, OSDTimeoutMs: 1500},
		SpeechOut: SpeechOutputCfg{Enabled: true, Provider: "groq", Voice: "default", Format: "wav", Rate: 1.0},
		Search:    SearchCfg{Enabled: true, TimeoutMs: 3500},
		LLM:       LLMCfg{Provider: "groq"},
		Ducking:   AudioDuckCfg{Enabled: false, SelfNames: []string{"btwd"}, MinVolume: 20, DuckFactor: 0.3, FadeMs: 150},
	}
}

// Load reads and parses the config file at path, applying defaults for any
// section the file omits.
func Load(path string) (Config, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.WakeWord.PPNPath == "" {
		return Config{}, fmt.Errorf("config invalid: wake_word.ppn_path is required")
	}
	if cfg.WakeWord.ModelPath == "" {
		return Config{}, fmt.Errorf("config invalid: wake_word.model_path is required")
	}
	if cfg.WakeWord.Sensitivity < 0 || cfg.WakeWord.Sensitivity > 1 {
		return Config{}, fmt.Errorf("config invalid: wake_word.sensitivity must be in [0,1], got %v", cfg.WakeWord.Sensitivity)
	}

	return cfg, nil
}
