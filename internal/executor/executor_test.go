package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"btwd/internal/registry"
)

func writeRegistry(t *testing.T, body string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	return reg
}

func noopHelper(requestID, title, body string) error { return nil }

func TestExecuteUnknownCommand(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"a","parameters":{},"argv_template":["echo"]}]`)
	ex := New(reg, Config{DryRun: true}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "missing", nil)
	if out.Kind != OutcomeUnknownCommand {
		t.Fatalf("Kind = %v, want OutcomeUnknownCommand", out.Kind)
	}
}

func TestExecuteDryRunSubstitutesArgv(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"set_brightness","parameters":{"level":"int 0-255"},"argv_template":["lampctl","--brightness","{level}"]}]`)
	ex := New(reg, Config{DryRun: true}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "set_brightness", map[string]any{"level": int64(200)})
	if out.Kind != OutcomeDryRun {
		t.Fatalf("Kind = %v, want OutcomeDryRun", out.Kind)
	}
	want := []string{"lampctl", "--brightness", "200"}
	if len(out.Argv) != len(want) {
		t.Fatalf("Argv = %v", out.Argv)
	}
	for i := range want {
		if out.Argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, out.Argv[i], want[i])
		}
	}
}

// TestExecuteSubstitutesPlaceholderWithinToken covers spec.md §8 Scenario
// 1's worked example: a placeholder sharing a token with literal text
// ("{percent}%") must still substitute, not just a whole-token "{name}".
func TestExecuteSubstitutesPlaceholderWithinToken(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"set_volume","parameters":{"percent":"int 0-100"},"argv_template":["wpctl","set-volume","@DEFAULT_AUDIO_SINK@","{percent}%"]}]`)
	ex := New(reg, Config{DryRun: true}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "set_volume", map[string]any{"percent": int64(30)})
	if out.Kind != OutcomeDryRun {
		t.Fatalf("Kind = %v, want OutcomeDryRun", out.Kind)
	}
	want := []string{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "30%"}
	if len(out.Argv) != len(want) {
		t.Fatalf("Argv = %v", out.Argv)
	}
	for i := range want {
		if out.Argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, out.Argv[i], want[i])
		}
	}
}

func TestExecuteSubstitutesFloatAndEnumAndStringBindings(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"set_mode","parameters":{"gain":"float 0.0-1.0","mode":"enum quiet|normal|loud","label":"string ^[a-z]+$"},"argv_template":["amp","--gain={gain}","--mode={mode}","--label={label}"]}]`)
	ex := New(reg, Config{DryRun: true}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "set_mode", map[string]any{"gain": 0.5, "mode": "loud", "label": "kitchen"})
	if out.Kind != OutcomeDryRun {
		t.Fatalf("Kind = %v, want OutcomeDryRun", out.Kind)
	}
	want := []string{"amp", "--gain=0.5", "--mode=loud", "--label=kitchen"}
	if len(out.Argv) != len(want) {
		t.Fatalf("Argv = %v", out.Argv)
	}
	for i := range want {
		if out.Argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, out.Argv[i], want[i])
		}
	}
}

func TestExecuteRejectsOutOfRangeBinding(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"set_brightness","parameters":{"level":"int 0-255"},"argv_template":["lampctl","{level}"]}]`)
	ex := New(reg, Config{DryRun: true}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "set_brightness", map[string]any{"level": int64(999)})
	if out.Kind != OutcomeRejected {
		t.Fatalf("Kind = %v, want OutcomeRejected", out.Kind)
	}
}

func TestExecuteDangerousAwaitsConfirmation(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"shutdown","dangerous":true,"parameters":{},"argv_template":["true"]}]`)
	ex := New(reg, Config{DryRun: true, ConfirmationTimeout: time.Second}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "shutdown", nil)
	if out.Kind != OutcomeAwaitingConfirmation {
		t.Fatalf("Kind = %v, want OutcomeAwaitingConfirmation", out.Kind)
	}
	if out.RequestID == "" {
		t.Error("expected a non-empty request id")
	}
}

func TestExecuteSerializesOverlappingRequests(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"shutdown","dangerous":true,"parameters":{},"argv_template":["true"]}]`)
	ex := New(reg, Config{DryRun: true, ConfirmationTimeout: time.Second}, noopHelper, PollSpool)

	first := ex.Execute(context.Background(), "shutdown", nil)
	if first.Kind != OutcomeAwaitingConfirmation {
		t.Fatalf("first.Kind = %v", first.Kind)
	}

	second := ex.Execute(context.Background(), "shutdown", nil)
	if second.Kind != OutcomeRejected {
		t.Fatalf("second.Kind = %v, want OutcomeRejected while confirmation pending", second.Kind)
	}
}

func TestResumeCancelsOnDeadline(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"shutdown","dangerous":true,"parameters":{},"argv_template":["true"]}]`)
	ex := New(reg, Config{DryRun: true, ConfirmationTimeout: 10 * time.Millisecond}, noopHelper, PollSpool)

	out := ex.Execute(context.Background(), "shutdown", nil)
	if out.Kind != OutcomeAwaitingConfirmation {
		t.Fatalf("Kind = %v", out.Kind)
	}

	time.Sleep(20 * time.Millisecond)

	resumed := ex.Resume(context.Background())
	if resumed.Kind != OutcomeCancelled {
		t.Fatalf("Resume() Kind = %v, want OutcomeCancelled on deadline", resumed.Kind)
	}
}

func TestCancelClearsPending(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"shutdown","dangerous":true,"parameters":{},"argv_template":["true"]}]`)
	ex := New(reg, Config{DryRun: true, ConfirmationTimeout: time.Second}, noopHelper, PollSpool)

	ex.Execute(context.Background(), "shutdown", nil)
	out := ex.Cancel()
	if out.Kind != OutcomeCancelled {
		t.Fatalf("Cancel() Kind = %v", out.Kind)
	}

	// After cancelling, a new request must be accepted again.
	second := ex.Execute(context.Background(), "shutdown", nil)
	if second.Kind != OutcomeAwaitingConfirmation {
		t.Fatalf("second.Kind = %v, want OutcomeAwaitingConfirmation after cancel", second.Kind)
	}
}
