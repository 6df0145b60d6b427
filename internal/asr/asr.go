// Package asr sends a captured utterance to a cloud transcription endpoint
// and returns trimmed text (§4.D).
package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

// ErrNoSpeech is returned when the transcript is empty after trimming,
// treated identically to the Utterance Capturer's no_speech abort (§4.D).
var ErrNoSpeech = errors.New("no_speech")

// Client transcribes WAV utterances via an OpenAI-compatible audio
// transcription endpoint (Groq and Mistral both speak this API).
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

// New builds an ASR client. api must already be configured with the
// provider's base URL, bearer credential, and SOCKS-proxied HTTP client
// (internal/proxy).
func New(api openai.Client, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if model == "" {
		model = "whisper-large-v3"
	}
	return &Client{api: api, model: model, timeout: timeout}
}

// Transcribe sends wav (RIFF/WAVE PCM16 mono) and returns the trimmed
// transcript. An empty transcript after trimming is reported as
// ErrNoSpeech rather than an empty string (§4.D, §7).
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("asr: transcription request: %w", err)
	}

	return normalizeTranscript(resp.Text)
}

func normalizeTranscript(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
