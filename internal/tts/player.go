package tts

import (
	"fmt"
	"os/exec"
)

// players are tried in order; the synthesized audio is piped directly to
// each player's stdin, never staged through a temp file (§9 Open Question:
// TTS audio disposal).
var players = []struct {
	cmd  string
	args []string
}{
	{"pw-play", []string{"-"}},
	{"aplay", []string{"-"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}},
}

// Play tries each configured player in order until one accepts and plays
// audio successfully.
func Play(audio []byte) error {
	var lastErr error
	for _, p := range players {
		if err := tryPlayer(p.cmd, p.args, audio); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("tts: no suitable audio player found (pw-play/aplay/ffplay): %w", lastErr)
}

func tryPlayer(name string, args []string, audio []byte) error {
	cmd := exec.Command(name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player %s: stdin pipe: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("player %s: start: %w", name, err)
	}

	if _, err := stdin.Write(audio); err != nil {
		stdin.Close()
		_ = cmd.Wait()
		return fmt.Errorf("player %s: write: %w", name, err)
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("player %s: exit: %w", name, err)
	}

	return nil
}
