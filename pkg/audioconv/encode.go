package audioconv

import (
	"bytes"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV16kMono writes samples (16 kHz mono PCM) as a RIFF/WAVE, 16-bit
// PCM byte buffer — the Utterance Capturer's output format (§4.C).
func EncodeWAV16kMono(samples []int16) ([]byte, error) {
	var buf bytes.Buffer

	enc := wav.NewEncoder(&buf, 16000, 16, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}

	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           ints,
		SourceBitDepth: 16,
	}

	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}

	return buf.Bytes(), nil
}
