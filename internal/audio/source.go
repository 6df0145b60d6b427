package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	Channels   = 1
)

// Source opens one capture stream at 16 kHz mono S16LE and emits fixed-size
// frames into a bounded channel (§4.A). It never blocks the capture
// callback: on a full queue it drops the oldest frame and counts the drop.
type Source struct {
	frameLen int
	stream   *portaudio.Stream
	out      chan Frame
	dropped  atomic.Uint64
	seq      atomic.Uint64
	stop     chan struct{}
}

// Open starts a capture stream with frameLen samples per frame and a queue
// of the given depth (must be >= 20, per §4.A). Fails fast if the device
// cannot be opened at the required parameters; there is no resampling or
// channel-mixing fallback.
func Open(frameLen, queueDepth int) (*Source, error) {
	if queueDepth < 20 {
		queueDepth = 20
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio device unavailable: initialize: %w", err)
	}

	buf := make([]int16, frameLen)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(SampleRate), frameLen, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audio device unavailable: open stream at %dHz mono: %w", SampleRate, err)
	}

	s := &Source{
		frameLen: frameLen,
		stream:   stream,
		out:      make(chan Frame, queueDepth),
		stop:     make(chan struct{}),
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audio device unavailable: start stream: %w", err)
	}

	go s.pump(buf)

	return s, nil
}

func (s *Source) pump(buf []int16) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			return
		}

		frame := Frame{
			Samples: append([]int16(nil), buf...),
			Seq:     s.seq.Add(1),
			At:      time.Now(),
		}

		s.enqueue(frame)
	}
}

// enqueue is the capture callback's only outbound operation: a non-blocking
// send that drops the oldest queued frame on overflow (§4.A, §5).
func (s *Source) enqueue(f Frame) {
	select {
	case s.out <- f:
		return
	default:
	}

	select {
	case <-s.out:
		s.dropped.Add(1)
	default:
	}

	select {
	case s.out <- f:
	default:
		s.dropped.Add(1)
	}
}

// Frames returns the channel frames are delivered on, in capture order.
func (s *Source) Frames() <-chan Frame { return s.out }

// Dropped returns the number of frames dropped so far due to queue
// overflow (§7 FrameDrop: counted, not reported per-event).
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// Close drains and closes the capture device within the process's shutdown
// budget (§5 Cancellation: "drains the audio queue, closes the capture
// device, and exits within 2s").
func (s *Source) Close() error {
	close(s.stop)
	err := s.stream.Stop()
	if cerr := s.stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	portaudio.Terminate()
	return err
}
