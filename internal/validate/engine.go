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

package validate

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/events"
	"github.com/hausvox/hausvox-hub/internal/intent"
	"github.com/hausvox/hausvox-hub/internal/logging"
)

const (
	// DefaultClarificationQuestion is spoken when a transcript is too
	// short or garbled to act on
	DefaultClarificationQuestion = "Das konnte ich leider nicht verstehen. Bitte wiederholen Sie das etwas deutlicher."

	// degradeFactor scales confidence down when the classifier is
	// unreachable and the transcript is accepted anyway
	degradeFactor = 0.7

	degradeIssue = "remote classifier unreachable"

	minTranscriptLength = 2
)

// Result is the engine's answer for one transcript
type Result struct {
	IsValid               bool           `json:"is_valid"`
	Confidence            float64        `json:"confidence"`
	HasAmbiguity          bool           `json:"has_ambiguity"`
	ClarificationNeeded   bool           `json:"clarification_needed"`
	ClarificationQuestion string         `json:"clarification_question,omitempty"`
	Issues                []string       `json:"issues,omitempty"`
	Intent                *intent.Record `json:"intent,omitempty"`

	Outcome events.ValidationOutcome `json:"outcome"`
}

// Recorder mirrors validation telemetry to persistent storage
type Recorder interface {
	Insert(event *events.UtteranceEvent) error
}

// Context carries per-utterance metadata into validation
type Context struct {
	SessionID       string
	TerminalID      string
	Provider        string
	Language        string
	AudioDurationMs int64
	TranscriptionMs int64
}

// Engine decides, per transcript, whether to accept immediately, accept
// after remote classification, ask for clarification, or degrade. It
// always resolves; classifier failures never escape this boundary.
type Engine struct {
	classifier Classifier
	recorder   Recorder
}

// NewEngine creates a validation engine. The recorder may be nil, in
// which case telemetry mirroring is skipped.
func NewEngine(classifier Classifier, recorder Recorder) *Engine {
	return &Engine{
		classifier: classifier,
		recorder:   recorder,
	}
}

// Validate runs the decision table over one transcript. Every
// invocation, whatever its outcome, is mirrored to the recorder with a
// timing breakdown; persistence failures are logged and swallowed.
func (e *Engine) Validate(ctx context.Context, transcript string, confidence float64, vctx Context) *Result {
	totalStart := time.Now()
	timings := events.Timings{
		AudioDurationMs: vctx.AudioDurationMs,
		TranscriptionMs: vctx.TranscriptionMs,
	}

	preStart := time.Now()
	trimmed := len([]rune(strings.TrimSpace(transcript)))
	report := Score(transcript, confidence)
	timings.PreprocessingMs = time.Since(preStart).Milliseconds()

	var result *Result
	switch {
	case trimmed < minTranscriptLength:
		result = &Result{
			IsValid:               false,
			Confidence:            confidence,
			ClarificationNeeded:   true,
			ClarificationQuestion: DefaultClarificationQuestion,
			Outcome:               events.OutcomeEmptyInput,
		}

	case report.Bypass:
		result = &Result{
			IsValid:    true,
			Confidence: confidence,
			Intent:     bypassIntent(transcript, confidence, report),
			Outcome:    events.OutcomeBypassed,
		}
		logging.LogValidation("bypass",
			zap.String("session_id", vctx.SessionID),
			zap.Float64("german_score", report.GermanScore),
			zap.Bool("greeting_like", report.GreetingLike))

	default:
		result = e.classify(ctx, transcript, confidence, vctx, report, &timings)
	}

	timings.TotalValidationMs = time.Since(totalStart).Milliseconds()
	e.mirror(transcript, confidence, vctx, result, timings)

	return result
}

// classify invokes the remote classifier and maps its verdict, taking
// the degrade-and-accept path when the classifier fails
func (e *Engine) classify(ctx context.Context, transcript string, confidence float64, vctx Context, report Report, timings *events.Timings) *Result {
	timings.ClassifierInvoked = true

	classifierStart := time.Now()
	verdict, err := e.classifier.Classify(ctx, transcript)
	timings.ClassifierMs = time.Since(classifierStart).Milliseconds()

	if err != nil {
		logging.LogValidation("degraded",
			zap.String("session_id", vctx.SessionID), zap.Error(err))
		issues := []string{degradeIssue}
		if report.NoiseLike {
			issues = append(issues, "transcript resembles noise")
		}
		return &Result{
			IsValid:      true,
			Confidence:   confidence * degradeFactor,
			HasAmbiguity: true,
			Issues:       issues,
			Outcome:      events.OutcomeDegraded,
		}
	}

	timings.ClassifierSucceeded = true

	resultConfidence := confidence
	if verdict.Confidence != nil {
		resultConfidence = *verdict.Confidence
	}

	outcome := events.OutcomeAccepted
	if verdict.ClarificationNeeded {
		outcome = events.OutcomeClarification
	} else if !verdict.IsValid {
		outcome = events.OutcomeRejected
	}

	if verdict.Intent != nil && verdict.Intent.OriginalText == "" {
		verdict.Intent.OriginalText = transcript
	}

	logging.LogValidation("classified",
		zap.String("session_id", vctx.SessionID),
		zap.Bool("is_valid", verdict.IsValid),
		zap.Float64("confidence", resultConfidence),
		zap.Bool("clarification_needed", verdict.ClarificationNeeded))

	return &Result{
		IsValid:               verdict.IsValid,
		Confidence:            resultConfidence,
		HasAmbiguity:          verdict.HasAmbiguity,
		ClarificationNeeded:   verdict.ClarificationNeeded,
		ClarificationQuestion: verdict.ClarificationQuestion,
		Issues:                verdict.Issues,
		Intent:                verdict.Intent,
		Outcome:               outcome,
	}
}

// bypassIntent builds the minimal intent produced without the
// classifier. Slot extraction needs the remote model, so slots stay
// empty.
func bypassIntent(transcript string, confidence float64, report Report) *intent.Record {
	kind := intent.KindUnknown
	if report.GreetingLike {
		kind = intent.KindGreeting
	}
	record := &intent.Record{
		Kind:         kind,
		Confidence:   confidence,
		OriginalText: transcript,
	}
	record.Normalize()
	return record
}

// mirror persists the validation as an utterance event, fire and forget
func (e *Engine) mirror(transcript string, confidence float64, vctx Context, result *Result, timings events.Timings) {
	if e.recorder == nil {
		return
	}

	event := events.NewUtteranceEvent(vctx.TerminalID, vctx.SessionID)
	event.SetTranscript(transcript, confidence, vctx.Provider, vctx.Language)
	event.SetValidation(result.Outcome, result.IsValid, result.HasAmbiguity, result.ClarificationNeeded, result.Issues)
	if result.Intent != nil {
		event.SetIntent(string(result.Intent.Kind), result.Intent.Slots)
	}
	event.Timings = timings

	go func() {
		persistStart := time.Now()
		err := e.recorder.Insert(event)
		event.Timings.PersistenceMs = time.Since(persistStart).Milliseconds()
		if err != nil {
			logging.LogError(err, "Failed to persist utterance event",
				zap.String("event_uuid", event.UUID))
			return
		}
		logging.LogUtteranceEvent(event, "recorded",
			zap.Int64("persistence_ms", event.Timings.PersistenceMs))
	}()
}
