// Package tts requests synthesized speech from a cloud text-to-speech
// endpoint and plays it back through the first available local player
// (§4.H step 5, §6 OSD and TTS sinks).
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Config mirrors §6's speech_output.* settings.
type Config struct {
	Enabled  bool
	Provider string
	Voice    string
	Format   string
	Rate     float32
}

// Client speaks text through a Groq-style OpenAI-compatible TTS endpoint,
// trying a primary model and then an ordered list of fallbacks.
type Client struct {
	httpClient     *http.Client
	credential     string
	endpoint       string
	primaryModel   string
	fallbackModels []string
}

// New builds a Client. httpClient should be the shared SOCKS-proxied
// client (internal/proxy) used by every other cloud call.
func New(httpClient *http.Client, credential, endpoint string) *Client {
	primary := os.Getenv("BTWD_TTS_MODEL")
	if primary == "" {
		primary = "canopylabs/orpheus-v1-english"
	}

	fallbacks := defaultFallbackModels
	if raw := os.Getenv("BTWD_TTS_FALLBACK_MODELS"); raw != "" {
		var parsed []string
		for _, m := range strings.Split(raw, ",") {
			m = strings.TrimSpace(m)
			if m != "" {
				parsed = append(parsed, m)
			}
		}
		if len(parsed) > 0 {
			fallbacks = parsed
		}
	}

	if endpoint == "" {
		endpoint = "https://api.groq.com/openai/v1/audio/speech"
	}

	return &Client{
		httpClient:     httpClient,
		credential:     credential,
		endpoint:       endpoint,
		primaryModel:   primary,
		fallbackModels: fallbacks,
	}
}

var defaultFallbackModels = []string{
	"canopylabs/orpheus-v1-english",
	"tts-1",
	"tts-1-hd",
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float32 `json:"speed,omitempty"`
}

// Speak synthesizes text and plays it back, blocking until playback
// finishes. It is disabled entirely unless cfg.Enabled and cfg.Provider is
// "groq" — the only provider this client speaks to.
func (c *Client) Speak(ctx context.Context, text string, cfg Config) error {
	if !cfg.Enabled || strings.ToLower(cfg.Provider) != "groq" {
		return nil
	}

	candidates := c.candidateModels()

	var lastErr error
	for _, model := range candidates {
		audio, retryable, err := c.requestSpeech(ctx, text, model, cfg)
		if err == nil {
			return Play(audio)
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("tts: failed for all models tried=%v: %w", candidates, lastErr)
}

func (c *Client) candidateModels() []string {
	seen := map[string]bool{c.primaryModel: true}
	out := []string{c.primaryModel}
	for _, m := range c.fallbackModels {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// requestSpeech issues one TTS request. retryable is true when the
// failure looks like an unavailable model (404 / model_not_found) and the
// next candidate should be tried; false for anything else (bad request,
// unauthorized), which aborts the whole fallback chain.
func (c *Client) requestSpeech(ctx context.Context, text, model string, cfg Config) (audio []byte, retryable bool, err error) {
	body := speechRequest{
		Model:          model,
		Voice:          cfg.Voice,
		Input:          text,
		ResponseFormat: strings.ToLower(cfg.Format),
	}
	if cfg.Rate > 0 {
		body.Speed = cfg.Rate
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("tts: read body: %w", err)
		}
		return data, false, nil
	}

	preview := make([]byte, 400)
	n, _ := resp.Body.Read(preview)
	previewStr := string(preview[:n])

	if resp.StatusCode == http.StatusNotFound || strings.Contains(previewStr, "model_not_found") {
		return nil, true, fmt.Errorf("tts model unavailable: status=%d body=%s", resp.StatusCode, previewStr)
	}

	return nil, false, fmt.Errorf("tts http status: %d body=%s", resp.StatusCode, previewStr)
}
