// Package capture bounds a single utterance with VAD (§4.C): it waits for
// speech to start, accumulates frames while the speaker is talking, and
// finalises on trailing silence, a hard duration cap, or a pre-speech
// timeout.
package capture

import (
	"errors"
	"time"

	"btwd/internal/audio"
	"btwd/internal/vad"
	"btwd/pkg/audioconv"
)

// ErrNoSpeech is returned when speaking is never entered before the
// pre-speech timeout elapses (§4.C step 5).
var ErrNoSpeech = errors.New("no_speech")

// Config bounds the capturer's state machine (§6 speech.*).
type Config struct {
	SampleRate         int
	FrameSamples       int
	NStart             int           // consecutive positive VAD frames to enter speaking
	TrailingSilence    time.Duration // consecutive negative frames to finalise
	MaxUtterance       time.Duration // hard cap
	PreSpeechTimeout   time.Duration // abort if never entered speaking
	PreRoll            time.Duration // frames prepended from the ring buffer
}

// Result is a finalised utterance.
type Result struct {
	WAV       []byte
	Duration  time.Duration
	Truncated bool
}

// Capturer runs the §4.C state machine over a frame stream starting at a
// wake event.
type Capturer struct {
	cfg  Config
	gate *vad.Gate
}

// New builds a Capturer from cfg and a VAD gate tuned by the caller.
func New(cfg Config, gate *vad.Gate) *Capturer {
	if cfg.NStart <= 0 {
		cfg.NStart = 3
	}
	return &Capturer{cfg: cfg, gate: gate}
}

// Capture consumes frames from in (typically audio.Source.Frames()),
// preceded by preRoll (the ring buffer snapshot taken at the wake event),
// and runs the state machine until finalisation, truncation, or timeout.
func (c *Capturer) Capture(preRoll []audio.Frame, in <-chan audio.Frame) (Result, error) {
	frameDur := time.Duration(c.cfg.FrameSamples) * time.Second / time.Duration(c.cfg.SampleRate)

	maxRoll := int(c.cfg.PreRoll / frameDur)
	if maxRoll > 0 && len(preRoll) > maxRoll {
		preRoll = preRoll[len(preRoll)-maxRoll:]
	}

	var (
		samples        []int16
		speaking       bool
		positiveStreak int
		negativeStreak int
		elapsedSpeech  time.Duration
		elapsedWait    time.Duration
	)

	for _, f := range preRoll {
		samples = append(samples, f.Samples...)
	}

	trailingFrames := framesFor(c.cfg.TrailingSilence, frameDur)
	maxFrames := framesFor(c.cfg.MaxUtterance, frameDur)
	preSpeechFrames := framesFor(c.cfg.PreSpeechTimeout, frameDur)

	frameCount := 0

	for f := range in {
		isSpeech := c.gate.IsSpeech(f.Samples)

		if !speaking {
			if isSpeech {
				positiveStreak++
			} else {
				positiveStreak = 0
			}

			if positiveStreak >= c.cfg.NStart {
				speaking = true
				negativeStreak = 0
			} else {
				elapsedWait++
				if preSpeechFrames > 0 && elapsedWait >= preSpeechFrames {
					return Result{}, ErrNoSpeech
				}
				continue
			}
		}

		samples = append(samples, f.Samples...)
		frameCount++
		elapsedSpeech++

		if isSpeech {
			negativeStreak = 0
		} else {
			negativeStreak++
			if trailingFrames > 0 && negativeStreak >= trailingFrames {
				return c.finalize(samples, frameDur, false)
			}
		}

		if maxFrames > 0 && frameCount >= maxFrames {
			return c.finalize(samples, frameDur, true)
		}
	}

	if !speaking {
		return Result{}, ErrNoSpeech
	}

	return c.finalize(samples, frameDur, false)
}

func (c *Capturer) finalize(samples []int16, frameDur time.Duration, truncated bool) (Result, error) {
	wavBytes, err := audioconv.EncodeWAV16kMono(samples)
	if err != nil {
		return Result{}, err
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(c.cfg.SampleRate)

	return Result{
		WAV:       wavBytes,
		Duration:  duration,
		Truncated: truncated,
	}, nil
}

func framesFor(d time.Duration, frameDur time.Duration) int {
	if d <= 0 || frameDur <= 0 {
		return 0
	}
	n := int(d / frameDur)
	if n < 1 {
		n = 1
	}
	return n
}
