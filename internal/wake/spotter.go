// Package wake detects the configured wake word in a stream of 16 kHz mono
// PCM frames and emits a cooldown-gated event when it fires (§4.B).
package wake

import "time"

// Event is emitted the instant the wake word crosses threshold.
type Event struct {
	Keyword string
	At      time.Time
}

// Spotter turns PCM frames into wake Events. Implementations must not block
// longer than one frame period inside Process.
type Spotter interface {
	// FrameLength is the number of int16 samples Process expects per call.
	FrameLength() int
	// SampleRate is the sample rate Process expects, in Hz.
	SampleRate() int
	// Process feeds one frame of exactly FrameLength samples and reports
	// whether the wake word fired on this frame.
	Process(pcm []int16) (bool, error)
	// Close releases the native resources held by the spotter.
	Close() error
}
