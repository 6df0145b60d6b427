// Package orchestrator owns the single state machine driving btwd's
// voice pipeline end to end (§4.I), grounded on
// original_source/src/manager.rs's Manager/State/ManagerOutcome shape but
// renamed onto spec.md's seven named states and generalized from a single
// "command vs question" outcome into the full Command/Question/WebQuery/
// AwaitingConfirmation fan-out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"btwd/internal/answer"
	"btwd/internal/asr"
	"btwd/internal/audio"
	"btwd/internal/capture"
	"btwd/internal/executor"
	"btwd/internal/intent"
	"btwd/internal/ipc"
	"btwd/internal/notify"
	"btwd/internal/tts"
	"btwd/internal/wake"
)

// UIConfig mirrors config.UICfg's notification toggles and
// config.AudioDuckCfg's other-stream ducking settings.
type UIConfig struct {
	ListeningNotification bool
	OSD                   bool
	OSDTimeoutMs          int
	DuckOtherAudio        bool
	DuckFactor            float64
	DuckFadeMs            int
}

// Orchestrator wires the wake detector, capturer, ASR client, intent
// router, safe executor, Answer Path, and TTS client into one sequential
// pipeline driven by a single consumer goroutine (§5 "Scheduling model":
// the capture thread never blocks, the consumer thread does all the
// blocking work).
type Orchestrator struct {
	spotter  wake.Spotter
	src      *audio.Source
	preRoll  *audio.RingBuffer
	capturer *capture.Capturer
	asr      *asr.Client
	router   *intent.Router
	exec     *executor.Executor
	answer   *answer.Path
	tts      *tts.Client
	ttsCfg   tts.Config
	ducker   *audio.Ducker
	ui       UIConfig

	manualTrigger chan struct{}
	dropped       atomic.Uint64

	mu    sync.Mutex
	state State
	pend  *PendingConfirmation
}

// New builds an Orchestrator. Every dependency is constructed by
// cmd/btwd/main.go and handed down fully formed; Orchestrator itself
// never reads configuration or builds clients.
func New(
	spotter wake.Spotter,
	src *audio.Source,
	preRoll *audio.RingBuffer,
	capturer *capture.Capturer,
	asrClient *asr.Client,
	router *intent.Router,
	exec *executor.Executor,
	answerPath *answer.Path,
	ttsClient *tts.Client,
	ttsCfg tts.Config,
	ducker *audio.Ducker,
	ui UIConfig,
) *Orchestrator {
	return &Orchestrator{
		spotter:       spotter,
		src:           src,
		preRoll:       preRoll,
		capturer:      capturer,
		asr:           asrClient,
		router:        router,
		exec:          exec,
		answer:        answerPath,
		tts:           ttsClient,
		ttsCfg:        ttsCfg,
		ducker:        ducker,
		ui:            ui,
		manualTrigger: make(chan struct{}, 1),
		state:         Idle,
	}
}

// State returns the orchestrator's current state, safe to call from the
// IPC handler goroutine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Dropped returns the count of wake events ignored while busy (§5
// Ordering guarantees, §8 Invariant 6).
func (o *Orchestrator) Dropped() uint64 {
	return o.dropped.Load()
}

// Trigger simulates a wake-word detection, used by the IPC "trigger"
// action for testing without a live microphone.
func (o *Orchestrator) Trigger() {
	select {
	case o.manualTrigger <- struct{}{}:
	default:
	}
}

// Cancel hard-resets a pending confirmation, mirroring manager.rs's
// cancel() (Rule 2: cancel is always a hard reset regardless of state).
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pend = nil
	o.state = Idle
}

// PendingRequestID reports the in-flight confirmation's request id, if
// any, for IPC status reporting.
func (o *Orchestrator) PendingRequestID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pend == nil {
		return ""
	}
	return o.pend.RequestID
}

// Run is the single consumer goroutine: it blocks in turn on the frame
// channel (driving the wake detector), and on the fully synchronous
// Capturing→Transcribing→Routing→{Executing,Answering,AwaitingConfirmation}
// pipeline triggered by a detection. It never touches the audio capture
// goroutine directly — capture.Capture reads frames from the same channel
// this loop would otherwise read from, so the two never run concurrently.
func (o *Orchestrator) Run(ctx context.Context) error {
	frames := o.src.Frames()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-o.manualTrigger:
			o.handleDetection(ctx, "manual")

		case frame, ok := <-frames:
			if !ok {
				return errors.New("orchestrator: audio source closed")
			}
			o.preRoll.Push(frame)

			detected, err := o.spotter.Process(frame.Samples)
			if err != nil {
				slog.Error("wake detector error", "err", err)
				continue
			}
			if !detected {
				continue
			}
			o.handleDetection(ctx, "wake")
		}
	}
}

// handleDetection runs one full pipeline pass for a single detected
// utterance. Per §5 Ordering guarantees, a detection arriving while the
// orchestrator is anywhere but Idle is dropped and counted — this
// includes AwaitingConfirmation, whose resolution comes only from the
// confirmation spool file (§6), never from a second wake+utterance.
func (o *Orchestrator) handleDetection(ctx context.Context, source string) {
	o.mu.Lock()
	busy := o.state != Idle
	o.mu.Unlock()
	if busy {
		o.dropped.Add(1)
		slog.Warn("wake event dropped: orchestrator busy", "state", o.State(), "source", source)
		return
	}

	o.setState(Capturing)
	notify.Listening(o.ui.ListeningNotification, o.ui.OSDTimeoutMs)
	o.duck(ctx)

	result, err := o.capturer.Capture(o.preRoll.Snapshot(), o.src.Frames())
	if err != nil {
		o.unduck(ctx)
		slog.Info("capture ended without an utterance", "err", err)
		o.setState(Idle)
		return
	}

	o.setState(Transcribing)
	transcript, err := o.asr.Transcribe(ctx, result.WAV)
	o.unduck(ctx) // listening window ends once the ASR call returns, success or not
	if err != nil {
		slog.Info("transcription produced no text", "err", err)
		o.setState(Idle)
		return
	}
	slog.Info("transcribed utterance", "text", transcript, "duration", result.Duration, "truncated", result.Truncated)
	notify.Text(o.ui.OSD, o.ui.OSDTimeoutMs, "btwd", transcript)

	o.setState(Routing)
	decision := o.router.Route(transcript, false)

	switch decision.Kind {
	case intent.KindCommand:
		o.runCommand(ctx, decision)
	case intent.KindQuestion, intent.KindWebQuery:
		o.runAnswer(ctx, decision.Text)
	default:
		slog.Debug("decision ignored", "kind", decision.Kind, "diagnostic", decision.Diagnostic)
		o.setState(Idle)
	}
}

func (o *Orchestrator) runCommand(ctx context.Context, decision intent.Decision) {
	o.setState(Executing)

	outcome := o.exec.Execute(ctx, decision.CommandID, decision.Bindings)
	switch outcome.Kind {
	case executor.OutcomeAwaitingConfirmation:
		o.mu.Lock()
		o.state = AwaitingConfirmation
		o.pend = &PendingConfirmation{
			RequestID:   outcome.RequestID,
			CommandID:   outcome.CommandID,
			Bindings:    decision.Bindings,
			Description: outcome.Description,
		}
		o.mu.Unlock()
		go o.awaitConfirmation(ctx)

	case executor.OutcomeSpawned:
		slog.Info("command spawned", "command", outcome.CommandID, "argv", outcome.Argv, "pid", outcome.PID)
		o.setState(Idle)

	case executor.OutcomeDryRun:
		slog.Info("command dry-run", "command", outcome.CommandID, "argv", outcome.Argv)
		o.setState(Idle)

	default:
		slog.Warn("command rejected", "command", outcome.CommandID, "reason", outcome.Reason)
		o.setState(Idle)
	}
}

// awaitConfirmation blocks on the confirmation spool file until the
// helper answers or the deadline elapses, then resolves AwaitingConfirmation
// back to Idle (§4.I "AwaitingConfirmation → Executing on affirmative
// reply; → Idle on negative/timeout").
func (o *Orchestrator) awaitConfirmation(ctx context.Context) {
	outcome := o.exec.Resume(ctx)

	o.mu.Lock()
	o.pend = nil
	o.state = Idle
	o.mu.Unlock()

	switch outcome.Kind {
	case executor.OutcomeSpawned, executor.OutcomeDryRun:
		slog.Info("confirmed command spawned", "command", outcome.CommandID, "pid", outcome.PID, "dry_run", outcome.Kind == executor.OutcomeDryRun)
		notify.Answer(o.ui.OSD, o.ui.OSDTimeoutMs, "btwd", fmt.Sprintf("Ran %s", outcome.CommandID))
	case executor.OutcomeCancelled:
		slog.Info("command cancelled", "command", outcome.CommandID, "reason", outcome.Reason)
		notify.Answer(o.ui.OSD, o.ui.OSDTimeoutMs, "btwd", "Cancelled")
	default:
		slog.Warn("confirmation resolution failed", "reason", outcome.Reason)
	}
}

func (o *Orchestrator) runAnswer(ctx context.Context, question string) {
	o.setState(Answering)
	o.duck(ctx)
	defer o.unduck(ctx)

	ans := o.answer.Answer(ctx, question)
	notify.Answer(o.ui.OSD, o.ui.OSDTimeoutMs, "btwd", ans.DisplayText)

	if o.tts != nil {
		if err := o.tts.Speak(ctx, ans.SpokenText, o.ttsCfg); err != nil {
			slog.Error("tts playback failed", "err", err)
		}
	}

	o.setState(Idle)
}

// duck lowers every other PulseAudio stream's volume while btwd is
// listening (Capturing/Transcribing) or speaking (Answering), per
// internal/audio.Ducker's contract. A no-op when ducking is disabled or no
// Ducker was wired in (e.g. in tests).
func (o *Orchestrator) duck(ctx context.Context) {
	if o.ducker == nil || !o.ui.DuckOtherAudio {
		return
	}
	fade := time.Duration(o.ui.DuckFadeMs) * time.Millisecond
	if err := o.ducker.DuckOthers(ctx, o.ui.DuckFactor, fade); err != nil {
		slog.Warn("duck other audio failed", "err", err)
	}
}

// unduck restores every stream duck lowered.
func (o *Orchestrator) unduck(ctx context.Context) {
	if o.ducker == nil || !o.ui.DuckOtherAudio {
		return
	}
	fade := time.Duration(o.ui.DuckFadeMs) * time.Millisecond
	if err := o.ducker.UnduckOthers(ctx, fade); err != nil {
		slog.Warn("unduck other audio failed", "err", err)
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Status builds the IPC status Response for the daemon's control handler.
func (o *Orchestrator) Status() ipc.Response {
	data := map[string]string{
		ipc.DataKeyState: ipc.DaemonState(o.State()).String(),
	}
	if reqID := o.PendingRequestID(); reqID != "" {
		data[ipc.DataKeyRequestID] = reqID
	}
	return ipc.Response{Success: true, Data: data}
}
