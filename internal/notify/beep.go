// Package notify drives the OSD overlay, desktop notifications, and the
// short acknowledgement beep played when the wake word fires.
package notify

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var speakerInitialized bool

// Beep plays a short acknowledgement sound from path, blocking until it
// finishes. Unlike the teacher's version this reports failures instead of
// panicking — a missing sound file must never crash the daemon.
func Beep(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("notify: open beep file: %w", err)
	}
	defer f.Close()

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		return fmt.Errorf("notify: decode beep file: %w", err)
	}
	defer streamer.Close()

	if !speakerInitialized {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("notify: init speaker: %w", err)
		}
		speakerInitialized = true
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done

	return nil
}
