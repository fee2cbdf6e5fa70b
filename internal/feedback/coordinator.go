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

// Package feedback turns pipeline state into user-visible status text
// and optional spoken prompts. It is purely reactive: it observes, it
// never decides.
package feedback

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/logging"
	"github.com/hausvox/hausvox-hub/internal/tts"
	"github.com/hausvox/hausvox-hub/internal/validate"
)

// Phase is the pipeline stage as the coordinator sees it
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseCapturing     Phase = "capturing"
	PhaseTranscribing  Phase = "transcribing"
	PhaseValidating    Phase = "validating"
	PhaseActing        Phase = "acting"
	PhaseClarification Phase = "clarification"
	PhaseRejected      Phase = "rejected"
	PhaseAborted       Phase = "aborted"
	PhaseFailed        Phase = "failed"
)

// Status strings shown to the user, one per phase
var statusText = map[Phase]string{
	PhaseIdle:          "Bereit.",
	PhaseCapturing:     "Ich höre zu ...",
	PhaseTranscribing:  "Aufnahme wird verarbeitet ...",
	PhaseValidating:    "Anfrage wird geprüft ...",
	PhaseActing:        "Verstanden, wird ausgeführt.",
	PhaseClarification: "Bitte präzisieren Sie Ihre Anfrage.",
	PhaseRejected:      "Das war leider keine gültige Anfrage.",
	PhaseAborted:       "Abgebrochen.",
	PhaseFailed:        "Das habe ich leider nicht verstanden.",
}

// Coordinator tracks the current phase and last validation result and
// speaks clarification questions when spoken feedback is enabled
type Coordinator struct {
	synth   tts.Synthesizer
	enabled bool

	mu         sync.RWMutex
	phase      Phase
	lastResult *validate.Result
}

// NewCoordinator creates a feedback coordinator. synth may be nil when
// spoken feedback is disabled.
func NewCoordinator(synth tts.Synthesizer, enabled bool) *Coordinator {
	return &Coordinator{
		synth:   synth,
		enabled: enabled && synth != nil,
		phase:   PhaseIdle,
	}
}

// Observe records a phase change and, where present, the validation
// result that caused it
func (c *Coordinator) Observe(phase Phase, result *validate.Result) {
	c.mu.Lock()
	c.phase = phase
	if result != nil {
		c.lastResult = result
	}
	if phase == PhaseIdle {
		c.lastResult = nil
	}
	c.mu.Unlock()
}

// Phase returns the currently observed phase
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Status returns the status line for the current phase. During
// clarification the classifier's own question wins over the generic
// text.
func (c *Coordinator) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.phase == PhaseClarification && c.lastResult != nil && c.lastResult.ClarificationQuestion != "" {
		return c.lastResult.ClarificationQuestion
	}
	if text, ok := statusText[c.phase]; ok {
		return text
	}
	return statusText[PhaseIdle]
}

// SpokenFeedbackEnabled reports whether clarification questions are
// voiced
func (c *Coordinator) SpokenFeedbackEnabled() bool {
	return c.enabled
}

// Speak voices the given prompt. When spoken feedback is disabled this
// is a silent no-op; synthesis errors are logged and swallowed so a
// broken TTS service never stalls the pipeline.
func (c *Coordinator) Speak(ctx context.Context, text string) {
	if !c.enabled || text == "" {
		return
	}

	result, err := c.synth.Synthesize(ctx, text, nil)
	if err != nil {
		logging.LogError(err, "Failed to synthesize spoken feedback",
			zap.Int("text_length", len(text)))
		return
	}
	defer func() {
		_ = result.Audio.Close()
	}()

	// Playback happens on the terminal; the hub drains the stream so
	// the connection can be reused.
	if _, err := io.Copy(io.Discard, result.Audio); err != nil {
		logging.LogError(err, "Failed to read synthesized audio")
	}
}
