package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"

	"btwd/internal/answer"
	"btwd/internal/executor"
	"btwd/internal/intent"
	"btwd/internal/registry"
	"btwd/internal/tts"
)

func writeRegistry(t *testing.T, body string) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.json")
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

func newTestOrchestrator(exec *executor.Executor) *Orchestrator {
	ans := answer.New(answer.Config{SearchEnabled: false}, nil, openai.Client{}, "")
	return New(nil, nil, nil, nil, nil, nil, exec, ans, nil, tts.Config{}, nil, UIConfig{})
}

func waitForState(t *testing.T, o *Orchestrator, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v after %s", o.State(), want, timeout)
}

func TestHandleDetectionDropsWhenBusy(t *testing.T) {
	o := newTestOrchestrator(nil)
	o.setState(Executing)

	o.handleDetection(context.Background(), "wake")

	if got := o.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	if o.State() != Executing {
		t.Fatalf("state changed to %v, want unchanged Executing", o.State())
	}
}

func TestCancelResetsPendingAndState(t *testing.T) {
	o := newTestOrchestrator(nil)
	o.mu.Lock()
	o.state = AwaitingConfirmation
	o.pend = &PendingConfirmation{RequestID: "req-1", CommandID: "shutdown"}
	o.mu.Unlock()

	o.Cancel()

	if o.State() != Idle {
		t.Fatalf("state = %v, want Idle", o.State())
	}
	if id := o.PendingRequestID(); id != "" {
		t.Fatalf("PendingRequestID() = %q, want empty", id)
	}
}

func TestTriggerIsNonBlocking(t *testing.T) {
	o := newTestOrchestrator(nil)

	o.Trigger()
	o.Trigger() // second call must not block even though the buffer is full

	select {
	case <-o.manualTrigger:
	default:
		t.Fatal("expected a buffered trigger signal")
	}
}

func TestRunCommandDryRunReturnsToIdle(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"set_brightness","parameters":{"level":"int 0-255"},"argv_template":["lampctl","{level}"]}]`)
	ex := executor.New(reg, executor.Config{DryRun: true}, noopHelper, executor.PollSpool)
	o := newTestOrchestrator(ex)

	o.runCommand(context.Background(), intent.Decision{
		Kind:      intent.KindCommand,
		CommandID: "set_brightness",
		Bindings:  map[string]any{"level": int64(100)},
	})

	if o.State() != Idle {
		t.Fatalf("state = %v, want Idle", o.State())
	}
}

func TestRunCommandDangerousResolvesAfterConfirmation(t *testing.T) {
	reg := writeRegistry(t, `[{"id":"shutdown","dangerous":true,"parameters":{},"argv_template":["true"]}]`)
	instantConfirm := func(ctx context.Context, requestID string, deadline time.Time) (bool, error) {
		return true, nil
	}
	ex := executor.New(reg, executor.Config{DryRun: true, ConfirmationTimeout: time.Second}, noopHelper, instantConfirm)
	o := newTestOrchestrator(ex)

	o.runCommand(context.Background(), intent.Decision{Kind: intent.KindCommand, CommandID: "shutdown"})

	if o.State() != AwaitingConfirmation {
		t.Fatalf("state = %v, want AwaitingConfirmation immediately after runCommand", o.State())
	}

	waitForState(t, o, Idle, time.Second)
	if id := o.PendingRequestID(); id != "" {
		t.Fatalf("PendingRequestID() = %q, want cleared after resolution", id)
	}
}

func TestRunAnswerSkipsTTSWhenNilAndReturnsIdle(t *testing.T) {
	o := newTestOrchestrator(nil)

	o.runAnswer(context.Background(), "what is the capital of france")

	if o.State() != Idle {
		t.Fatalf("state = %v, want Idle", o.State())
	}
}
