// Package executor is the Safe Executor (§4.G): it substitutes typed
// bindings into an allow-listed argv template and spawns the result,
// detached from any shell, gating dangerous commands behind an external
// confirmation helper.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"btwd/internal/registry"
)

// Outcome is the result of one execute() call (§4.G).
type Outcome struct {
	Kind        OutcomeKind
	CommandID   string
	RequestID   string
	Argv        []string
	PID         int
	Description string
	Reason      string
}

type OutcomeKind int

const (
	OutcomeUnknownCommand OutcomeKind = iota
	OutcomeAwaitingConfirmation
	OutcomeCancelled
	OutcomeDryRun
	OutcomeSpawned
	OutcomeRejected
)

// Config mirrors §6's execution.* settings.
type Config struct {
	ConfirmationTimeout time.Duration
	DryRun              bool
}

// ConfirmHelper invokes the external confirmation program with
// {request_id, title, body} (§6 Confirmation helper contract).
type ConfirmHelper func(requestID, title, body string) error

type pending struct {
	commandID   string
	argv        []string
	requestID   string
	deadline    time.Time
	description string
}

// Executor serialises at most one execution in flight; the orchestrator is
// responsible for not overlapping requests (§4.G Concurrency).
type Executor struct {
	mu      sync.Mutex
	reg     *registry.Registry
	cfg     Config
	helper  ConfirmHelper
	poll    SpoolPoller
	pending *pending
}

// SpoolPoller polls the confirmation spool file for a request and reports
// the user's reply before deadline elapses.
type SpoolPoller func(ctx context.Context, requestID string, deadline time.Time) (confirmed bool, err error)

// New builds an Executor bound to reg, cfg, and the given confirmation
// helper/poller (both real implementations live in spool.go).
func New(reg *registry.Registry, cfg Config, helper ConfirmHelper, poll SpoolPoller) *Executor {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 10 * time.Second
	}
	return &Executor{reg: reg, cfg: cfg, helper: helper, poll: poll}
}

// Execute runs the §4.G protocol for one deterministic command proposal.
func (e *Executor) Execute(ctx context.Context, commandID string, bindings map[string]any) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: "confirmation pending; ignoring new commands"}
	}

	cmd, ok := e.reg.Get(commandID)
	if !ok {
		return Outcome{Kind: OutcomeUnknownCommand, CommandID: commandID}
	}

	typed, err := e.reg.ValidateBindings(commandID, bindings)
	if err != nil {
		return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: err.Error()}
	}

	argv, err := renderArgv(cmd.ArgvTemplate, typed)
	if err != nil {
		return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: err.Error()}
	}

	if cmd.Dangerous {
		requestID := fmt.Sprintf("%s-%d-%d", commandID, time.Now().UnixNano(), rand.Int63())
		deadline := time.Now().Add(e.cfg.ConfirmationTimeout)

		if err := e.helper(requestID, cmd.Description, "Say 'yes' to confirm or 'no' to cancel."); err != nil {
			return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: fmt.Sprintf("confirmation helper: %v", err)}
		}

		e.pending = &pending{
			commandID:   commandID,
			argv:        argv,
			requestID:   requestID,
			deadline:    deadline,
			description: cmd.Description,
		}

		return Outcome{
			Kind:        OutcomeAwaitingConfirmation,
			CommandID:   commandID,
			RequestID:   requestID,
			Description: cmd.Description,
		}
	}

	return e.spawn(commandID, argv)
}

// Resume is called on the orchestrator's next ConfirmationReply intent or
// when the pending deadline elapses (§4.G step 3.d).
func (e *Executor) Resume(ctx context.Context) Outcome {
	e.mu.Lock()
	p := e.pending
	e.mu.Unlock()

	if p == nil {
		return Outcome{Kind: OutcomeCancelled, Reason: "no pending confirmation"}
	}

	confirmed, err := e.poll(ctx, p.requestID, p.deadline)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil

	if err != nil || !confirmed {
		return Outcome{Kind: OutcomeCancelled, CommandID: p.commandID, RequestID: p.requestID}
	}

	return e.spawnLocked(p.commandID, p.argv)
}

// Cancel discards any pending confirmation (e.g. on a hard reset).
func (e *Executor) Cancel() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return Outcome{Kind: OutcomeCancelled, Reason: "no pending confirmation"}
	}

	p := e.pending
	e.pending = nil
	return Outcome{Kind: OutcomeCancelled, CommandID: p.commandID, RequestID: p.requestID}
}

func (e *Executor) spawn(commandID string, argv []string) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawnLocked(commandID, argv)
}

// spawnLocked performs step 4/5 of §4.G. It is fire-and-forget: Start, not
// Run or Output — the executor never waits for the child, a deliberate
// departure from the original implementation's blocking Command::output().
func (e *Executor) spawnLocked(commandID string, argv []string) Outcome {
	if len(argv) == 0 {
		return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: "empty argv"}
	}

	if e.cfg.DryRun {
		return Outcome{Kind: OutcomeDryRun, CommandID: commandID, Argv: argv}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = minimalEnv()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return Outcome{Kind: OutcomeRejected, CommandID: commandID, Reason: fmt.Sprintf("spawn failed: %v", err)}
	}

	go cmd.Wait() // reap without blocking the executor

	return Outcome{Kind: OutcomeSpawned, CommandID: commandID, Argv: argv, PID: cmd.Process.Pid}
}

// minimalEnv filters the inherited environment down to PATH and HOME,
// never forwarding secrets such as API credentials to spawned commands.
func minimalEnv() []string {
	var out []string
	for _, key := range []string{"PATH", "HOME", "LANG", "XDG_RUNTIME_DIR"} {
		if v, ok := os.LookupEnv(key); ok {
			out = append(out, key+"="+v)
		}
	}
	return out
}

// renderArgv substitutes typed bindings into argv_template slots (§4.G
// step 2). Each token may contain at most one {name} placeholder, anywhere
// within the token (e.g. "{percent}%", §8 Scenario 1); tokens with no
// placeholder pass through literally. There is no shell involved at any
// point.
func renderArgv(template []string, bindings map[string]any) ([]string, error) {
	out := make([]string, 0, len(template))
	for _, tok := range template {
		rendered, err := renderToken(tok, bindings)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}

func renderToken(tok string, bindings map[string]any) (string, error) {
	open := strings.IndexByte(tok, '{')
	if open < 0 {
		return tok, nil
	}
	shut := strings.IndexByte(tok[open:], '}')
	if shut < 0 {
		return tok, nil
	}
	shut += open

	name := tok[open+1 : shut]
	v, ok := bindings[name]
	if !ok {
		return "", fmt.Errorf("missing binding for placeholder %q", name)
	}
	rendered, err := formatValue(v)
	if err != nil {
		return "", fmt.Errorf("placeholder %q: %w", name, err)
	}

	return tok[:open] + rendered + tok[shut+1:], nil
}

// formatValue renders one typed binding value (int64/float64/string, per
// the registry's ParamKind) as the literal argv text substituted in place
// of its placeholder.
func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("unsupported binding value type %T", v)
	}
}
