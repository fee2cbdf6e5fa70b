/*
 * This file is part of Hausvox (https://github.com/hausvox/hausvox).
 * Copyright (C) 2025 Hausvox
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package orchestrator drives the utterance cycle: capture, transcribe,
// validate, then act, clarify or discard. Exactly one cycle is in
// flight at a time.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/audio"
	"github.com/hausvox/hausvox-hub/internal/config"
	"github.com/hausvox/hausvox-hub/internal/feedback"
	"github.com/hausvox/hausvox-hub/internal/intent"
	"github.com/hausvox/hausvox-hub/internal/logging"
	"github.com/hausvox/hausvox-hub/internal/stt"
	"github.com/hausvox/hausvox-hub/internal/validate"
)

// Orchestrator error taxonomy. Capture errors pass through from the
// audio package.
var (
	ErrAlreadyRecording = audio.ErrAlreadyRecording
	ErrNotRecording     = audio.ErrNotRecording
	ErrOperationAborted = errors.New("operation aborted")
)

// State is the orchestrator's position in the utterance cycle
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateTranscribing
	StateValidating
	StateAwaitingClarification
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateTranscribing:
		return "transcribing"
	case StateValidating:
		return "validating"
	case StateAwaitingClarification:
		return "awaiting_clarification"
	default:
		return "unknown"
	}
}

// Validator is the validation engine surface the orchestrator consumes
type Validator interface {
	Validate(ctx context.Context, transcript string, confidence float64, vctx validate.Context) *validate.Result
}

// Dispatcher hands accepted intents downstream
type Dispatcher interface {
	Dispatch(record *intent.Record, terminalID, sessionID string) error
}

// Orchestrator owns the single active recording session, the last
// validation result and the clarification flag. All other components
// only observe.
type Orchestrator struct {
	session     *audio.Session
	transcriber stt.Transcriber
	validator   Validator
	dispatcher  Dispatcher
	coordinator *feedback.Coordinator
	cfg         config.PipelineConfig

	maxDuration   time.Duration
	chunkInterval time.Duration
	mimeType      string
	language      string

	mu                    sync.Mutex
	state                 State
	generation            uint64
	cycleCtx              context.Context
	cycleCancel           context.CancelFunc
	lastValidation        *validate.Result
	awaitingClarification bool
	clarificationRetries  int
	restartTimer          *time.Timer
}

// Options wires the orchestrator's collaborators
type Options struct {
	Microphone  audio.Microphone
	Transcriber stt.Transcriber
	Validator   Validator
	Dispatcher  Dispatcher
	Coordinator *feedback.Coordinator
	Pipeline    config.PipelineConfig
	Capture     config.CaptureConfig
	Language    string
}

// New creates an orchestrator in the idle state
func New(opts Options) *Orchestrator {
	coordinator := opts.Coordinator
	if coordinator == nil {
		coordinator = feedback.NewCoordinator(nil, false)
	}
	maxDuration := opts.Capture.MaxDuration
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}
	mimeType := opts.Capture.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return &Orchestrator{
		session:       audio.NewSession(opts.Microphone, mimeType),
		transcriber:   opts.Transcriber,
		validator:     opts.Validator,
		dispatcher:    opts.Dispatcher,
		coordinator:   coordinator,
		cfg:           opts.Pipeline,
		maxDuration:   maxDuration,
		chunkInterval: opts.Capture.ChunkInterval,
		mimeType:      mimeType,
		language:      opts.Language,
		state:         StateIdle,
	}
}

// State returns the current cycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsRecording reports whether a capture is active
func (o *Orchestrator) IsRecording() bool {
	return o.State() == StateCapturing
}

// AwaitingClarification reports whether the pipeline is waiting for the
// user to answer a clarification question
func (o *Orchestrator) AwaitingClarification() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awaitingClarification
}

// LastValidation returns the most recent validation result, or nil
func (o *Orchestrator) LastValidation() *validate.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastValidation
}

// StartRecording begins a new capture. It fails fast with
// AlreadyRecording when a cycle is already in flight; answering a
// clarification question is the one allowed re-entry.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle && o.state != StateAwaitingClarification {
		o.mu.Unlock()
		return ErrAlreadyRecording
	}
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	o.state = StateCapturing
	o.generation++
	o.cycleCtx, o.cycleCancel = context.WithCancel(ctx)
	cycleCtx := o.cycleCtx
	o.mu.Unlock()

	constraints := audio.DefaultConstraints()
	if o.chunkInterval > 0 {
		constraints.ChunkInterval = o.chunkInterval
	}

	err := o.session.Start(cycleCtx, audio.StartOptions{
		MaxDuration: o.maxDuration,
		Constraints: constraints,
	})
	if err != nil {
		o.mu.Lock()
		o.state = StateIdle
		o.awaitingClarification = false
		o.clarificationRetries = 0
		if o.cycleCancel != nil {
			o.cycleCancel()
			o.cycleCancel = nil
		}
		o.mu.Unlock()
		return err
	}

	o.coordinator.Observe(feedback.PhaseCapturing, nil)
	return nil
}

// StopRecording finalizes the capture and runs the rest of the cycle:
// transcription, validation and outcome routing. Empty audio
// short-circuits straight back to idle without touching the network.
// Transcription failures resolve to a neutral failed status, never an
// error; the returned error is non-nil only for NotRecording and
// aborts.
func (o *Orchestrator) StopRecording() (*validate.Result, error) {
	o.mu.Lock()
	if o.state != StateCapturing {
		o.mu.Unlock()
		return nil, ErrNotRecording
	}
	o.state = StateTranscribing
	gen := o.generation
	cycleCtx := o.cycleCtx
	sessionID := o.session.ID()
	o.mu.Unlock()

	clip, err := o.session.Stop()
	if err != nil {
		if errors.Is(err, audio.ErrAborted) {
			return nil, ErrOperationAborted
		}
		o.finishCycle(gen, feedback.PhaseFailed)
		return nil, err
	}

	if clip.Empty() {
		o.finishCycle(gen, feedback.PhaseIdle)
		return nil, nil
	}

	o.coordinator.Observe(feedback.PhaseTranscribing, nil)

	transcript, err := o.transcriber.Transcribe(cycleCtx, clip.Data, stt.Request{
		MimeType:      clip.MimeType,
		Language:      o.language,
		MaxDurationMs: o.maxDuration.Milliseconds(),
		SessionID:     sessionID,
		TerminalID:    o.cfg.TerminalID,
	})
	if o.abortedSince(gen) {
		return nil, ErrOperationAborted
	}
	if err != nil {
		logging.LogError(err, "Transcription failed",
			zap.String("session_id", sessionID))
		o.finishCycle(gen, feedback.PhaseFailed)
		return nil, nil
	}

	o.coordinator.Observe(feedback.PhaseValidating, nil)

	result := o.validator.Validate(cycleCtx, transcript.Text, transcript.Confidence, validate.Context{
		SessionID:       sessionID,
		TerminalID:      o.cfg.TerminalID,
		Provider:        transcript.Provider,
		Language:        transcript.Language,
		AudioDurationMs: clip.Duration.Milliseconds(),
		TranscriptionMs: transcript.TranscriptionMs,
	})
	if o.abortedSince(gen) {
		return nil, ErrOperationAborted
	}

	return o.route(gen, sessionID, result), nil
}

// AbortCurrentOperation tears down the whole cycle from any state:
// media tracks stop synchronously, pending stages observe the
// cancellation, clarification state clears. Safe to call when idle.
func (o *Orchestrator) AbortCurrentOperation() {
	o.mu.Lock()
	wasIdle := o.state == StateIdle && !o.awaitingClarification
	o.generation++
	if o.cycleCancel != nil {
		o.cycleCancel()
		o.cycleCancel = nil
	}
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	o.state = StateIdle
	o.awaitingClarification = false
	o.clarificationRetries = 0
	o.lastValidation = nil
	o.mu.Unlock()

	o.session.Abort()

	if !wasIdle {
		o.coordinator.Observe(feedback.PhaseAborted, nil)
	}
}

// route applies the validation outcome routing table
func (o *Orchestrator) route(gen uint64, sessionID string, result *validate.Result) *validate.Result {
	switch {
	case result.ClarificationNeeded:
		o.enterClarification(gen, result)

	case result.IsValid && result.Intent != nil:
		if o.dispatcher != nil {
			if err := o.dispatcher.Dispatch(result.Intent, o.cfg.TerminalID, sessionID); err != nil {
				logging.LogError(err, "Intent dispatch failed",
					zap.String("session_id", sessionID))
			}
		}
		o.coordinator.Observe(feedback.PhaseActing, result)
		o.resolveCycle(gen, result)

	case result.IsValid:
		o.coordinator.Observe(feedback.PhaseActing, result)
		o.resolveCycle(gen, result)

	default:
		// Invalid without a clarification question: cap the confidence
		// and discard quietly
		if result.Confidence > 0.5 {
			result.Confidence = 0.5
		}
		o.coordinator.Observe(feedback.PhaseRejected, result)
		o.resolveCycle(gen, result)
	}
	return result
}

// enterClarification stores the result, speaks the question and, while
// spoken feedback is on and retries remain, schedules an automatic
// re-recording so the user can answer
func (o *Orchestrator) enterClarification(gen uint64, result *validate.Result) {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	o.state = StateAwaitingClarification
	o.awaitingClarification = true
	o.lastValidation = result
	o.clarificationRetries++
	retries := o.clarificationRetries
	cycleCtx := o.cycleCtx
	o.mu.Unlock()

	o.coordinator.Observe(feedback.PhaseClarification, result)
	o.coordinator.Speak(cycleCtx, result.ClarificationQuestion)

	if !o.coordinator.SpokenFeedbackEnabled() {
		return
	}
	if retries > o.cfg.MaxClarificationRetries {
		logging.LogWarn("Clarification retries exhausted, returning to idle",
			zap.Int("retries", retries-1))
		o.mu.Lock()
		if o.generation == gen {
			o.state = StateIdle
			o.awaitingClarification = false
			o.clarificationRetries = 0
		}
		o.mu.Unlock()
		o.coordinator.Observe(feedback.PhaseIdle, nil)
		return
	}

	delay := o.cfg.ClarificationDelay
	if delay <= 0 {
		delay = time.Second
	}

	o.mu.Lock()
	if o.generation == gen {
		o.restartTimer = time.AfterFunc(delay, func() {
			o.mu.Lock()
			stale := o.generation != gen || o.state != StateAwaitingClarification
			o.mu.Unlock()
			if stale {
				return
			}
			if err := o.StartRecording(context.Background()); err != nil {
				logging.LogError(err, "Automatic clarification restart failed")
			}
		})
	}
	o.mu.Unlock()
}

// resolveCycle finishes a successful cycle: the result becomes the last
// validation, clarification state clears, the machine goes idle
func (o *Orchestrator) resolveCycle(gen uint64, result *validate.Result) {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	o.awaitingClarification = false
	o.clarificationRetries = 0
	o.lastValidation = result
	if o.cycleCancel != nil {
		o.cycleCancel()
		o.cycleCancel = nil
	}
	o.mu.Unlock()
}

// finishCycle returns to idle without a validation result. Any pending
// clarification clears with it, so an empty or failed answer does not
// leave the machine waiting or eat into the next utterance's retry
// budget.
func (o *Orchestrator) finishCycle(gen uint64, phase feedback.Phase) {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	o.awaitingClarification = false
	o.clarificationRetries = 0
	if o.cycleCancel != nil {
		o.cycleCancel()
		o.cycleCancel = nil
	}
	o.mu.Unlock()
	o.coordinator.Observe(phase, nil)
}

// abortedSince reports whether AbortCurrentOperation ran after the
// given generation was captured
func (o *Orchestrator) abortedSince(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation != gen
}
