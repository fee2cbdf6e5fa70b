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

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationOutcome describes how the validation engine resolved an utterance
type ValidationOutcome string

const (
	OutcomeAccepted      ValidationOutcome = "accepted"
	OutcomeBypassed      ValidationOutcome = "bypassed"
	OutcomeClarification ValidationOutcome = "clarification"
	OutcomeRejected      ValidationOutcome = "rejected"
	OutcomeDegraded      ValidationOutcome = "degraded"
	OutcomeEmptyInput    ValidationOutcome = "empty_input"
)

// Timings breaks an utterance cycle down into its stage latencies
type Timings struct {
	AudioDurationMs     int64 `json:"audio_duration_ms"`
	TranscriptionMs     int64 `json:"transcription_ms"`
	PreprocessingMs     int64 `json:"preprocessing_ms"`
	ClassifierMs        int64 `json:"classifier_ms"`
	PersistenceMs       int64 `json:"persistence_ms"`
	TotalValidationMs   int64 `json:"total_validation_ms"`
	ClassifierInvoked   bool  `json:"classifier_invoked"`
	ClassifierSucceeded bool  `json:"classifier_succeeded"`
}

// UtteranceEvent represents one complete utterance cycle with full traceability
type UtteranceEvent struct {
	// Core identification
	UUID       string    `json:"uuid" db:"uuid"`
	TerminalID string    `json:"terminal_id" db:"terminal_id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`

	// Transcript data
	Transcript string  `json:"transcript" db:"transcript"`
	Confidence float64 `json:"confidence" db:"confidence"`
	Provider   string  `json:"provider" db:"provider"`
	Language   string  `json:"language" db:"language"`

	// Validation results
	Outcome             ValidationOutcome `json:"outcome" db:"outcome"`
	IsValid             bool              `json:"is_valid" db:"is_valid"`
	HasAmbiguity        bool              `json:"has_ambiguity" db:"has_ambiguity"`
	ClarificationNeeded bool              `json:"clarification_needed" db:"clarification_needed"`
	Issues              []string          `json:"issues,omitempty" db:"issues"`

	// Intent results
	IntentKind  string            `json:"intent_kind" db:"intent_kind"`
	IntentSlots map[string]string `json:"intent_slots" db:"intent_slots"`

	// Timing breakdown
	Timings Timings `json:"timings" db:"timings"`

	// Failure data
	Success      bool   `json:"success" db:"success"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`
}

// NewUtteranceEvent creates a new UtteranceEvent with generated UUID and current timestamp
func NewUtteranceEvent(terminalID, sessionID string) *UtteranceEvent {
	return &UtteranceEvent{
		UUID:        uuid.NewString(),
		TerminalID:  terminalID,
		SessionID:   sessionID,
		Timestamp:   time.Now(),
		IntentSlots: make(map[string]string),
		Success:     true,
	}
}

// GetUUID exposes the event UUID for structured logging helpers
func (e *UtteranceEvent) GetUUID() string {
	return e.UUID
}

// SetTranscript records the transcription result
func (e *UtteranceEvent) SetTranscript(text string, confidence float64, provider, language string) {
	e.Transcript = text
	e.Confidence = confidence
	e.Provider = provider
	e.Language = language
}

// SetValidation records the validation outcome
func (e *UtteranceEvent) SetValidation(outcome ValidationOutcome, isValid, hasAmbiguity, clarificationNeeded bool, issues []string) {
	e.Outcome = outcome
	e.IsValid = isValid
	e.HasAmbiguity = hasAmbiguity
	e.ClarificationNeeded = clarificationNeeded
	e.Issues = issues
}

// SetIntent records the classified intent
func (e *UtteranceEvent) SetIntent(kind string, slots map[string]string) {
	e.IntentKind = kind
	if slots != nil {
		e.IntentSlots = slots
	}
}

// SetError marks the event as failed with an error message
func (e *UtteranceEvent) SetError(err error) {
	e.Success = false
	e.ErrorMessage = err.Error()
}

// SlotsJSON returns intent slots as JSON string for database storage
func (e *UtteranceEvent) SlotsJSON() (string, error) {
	if e.IntentSlots == nil {
		return "{}", nil
	}

	data, err := json.Marshal(e.IntentSlots)
	if err != nil {
		return "", fmt.Errorf("failed to marshal intent slots: %w", err)
	}

	return string(data), nil
}

// SetSlotsFromJSON parses JSON string and sets intent slots
func (e *UtteranceEvent) SetSlotsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "{}" {
		e.IntentSlots = make(map[string]string)
		return nil
	}

	var slots map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &slots); err != nil {
		return fmt.Errorf("failed to unmarshal intent slots JSON: %w", err)
	}

	e.IntentSlots = slots
	return nil
}

// IssuesJSON returns issues as JSON string for database storage
func (e *UtteranceEvent) IssuesJSON() (string, error) {
	if len(e.Issues) == 0 {
		return "[]", nil
	}

	data, err := json.Marshal(e.Issues)
	if err != nil {
		return "", fmt.Errorf("failed to marshal issues: %w", err)
	}

	return string(data), nil
}

// SetIssuesFromJSON parses JSON string and sets issues
func (e *UtteranceEvent) SetIssuesFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		e.Issues = nil
		return nil
	}

	var issues []string
	if err := json.Unmarshal([]byte(jsonStr), &issues); err != nil {
		return fmt.Errorf("failed to unmarshal issues JSON: %w", err)
	}

	e.Issues = issues
	return nil
}

// TimingsJSON returns the timing breakdown as JSON string for database storage
func (e *UtteranceEvent) TimingsJSON() (string, error) {
	data, err := json.Marshal(e.Timings)
	if err != nil {
		return "", fmt.Errorf("failed to marshal timings: %w", err)
	}
	return string(data), nil
}

// SetTimingsFromJSON parses JSON string and sets the timing breakdown
func (e *UtteranceEvent) SetTimingsFromJSON(jsonStr string) error {
	if jsonStr == "" {
		e.Timings = Timings{}
		return nil
	}

	var t Timings
	if err := json.Unmarshal([]byte(jsonStr), &t); err != nil {
		return fmt.Errorf("failed to unmarshal timings JSON: %w", err)
	}

	e.Timings = t
	return nil
}

// IsValidRecord performs basic validation on the utterance event
func (e *UtteranceEvent) IsValidRecord() error {
	if e.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if e.TerminalID == "" {
		return fmt.Errorf("terminalID is required")
	}

	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}

	return nil
}

// String returns a human-readable representation of the utterance event
func (e *UtteranceEvent) String() string {
	return fmt.Sprintf("UtteranceEvent{UUID: %s, Terminal: %s, Outcome: %s, Transcript: %q, Confidence: %.2f, Success: %t}",
		e.UUID, e.TerminalID, e.Outcome, e.Transcript, e.Confidence, e.Success)
}
