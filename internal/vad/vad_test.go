package vad

import "testing"

func silentFrame(n int) []int16 { return make([]int16, n) }

func loudFrame(n int, amp int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = amp
		} else {
			f[i] = -amp
		}
	}
	return f
}

func TestGateSilence(t *testing.T) {
	g := NewGateWithThreshold(0.02)
	if g.IsSpeech(silentFrame(480)) {
		t.Fatal("silent frame classified as speech")
	}
}

func TestGateLoudFrame(t *testing.T) {
	g := NewGateWithThreshold(0.02)
	if !g.IsSpeech(loudFrame(480, 20000)) {
		t.Fatal("loud frame classified as silence")
	}
}

func TestGateEmptyFrame(t *testing.T) {
	g := NewGateWithThreshold(0.02)
	if g.IsSpeech(nil) {
		t.Fatal("empty frame must never be speech")
	}
}

func TestModesRaiseThreshold(t *testing.T) {
	low := NewGate(ModeLowBitrate)
	aggressive := NewGate(ModeVeryAggressive)

	frame := loudFrame(480, 700)
	if !low.IsSpeech(frame) {
		t.Fatal("low-bitrate mode should classify moderate energy as speech")
	}
	if aggressive.IsSpeech(frame) {
		t.Fatal("very-aggressive mode should reject the same moderate energy")
	}
}
