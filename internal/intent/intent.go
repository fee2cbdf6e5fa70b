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

package intent

import (
	"encoding/json"
	"fmt"
)

// Kind represents the classified purpose of an utterance
type Kind string

const (
	KindCommand         Kind = "command"
	KindQuery           Kind = "query"
	KindNavigation      Kind = "navigation"
	KindWebSearch       Kind = "web_search"
	KindGreeting        Kind = "greeting"
	KindGeneralQuestion Kind = "general_question"
	KindUnknown         Kind = "unknown"
)

// knownKinds is the closed set of intent kinds the pipeline produces
var knownKinds = map[Kind]bool{
	KindCommand:         true,
	KindQuery:           true,
	KindNavigation:      true,
	KindWebSearch:       true,
	KindGreeting:        true,
	KindGeneralQuestion: true,
	KindUnknown:         true,
}

// Record represents a classified utterance intent with extracted slots
type Record struct {
	Kind         Kind              `json:"kind"`
	Confidence   float64           `json:"confidence"`
	OriginalText string            `json:"original_text"`
	Summary      string            `json:"summary,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	Slots        map[string]string `json:"slots,omitempty"`
}

// ParseKind maps a classifier-provided kind string to a known Kind,
// falling back to KindUnknown for anything outside the closed set
func ParseKind(s string) Kind {
	k := Kind(s)
	if knownKinds[k] {
		return k
	}
	return KindUnknown
}

// Normalize fills defaults so downstream consumers never see nil maps
// or out-of-range confidence values
func (r *Record) Normalize() {
	if !knownKinds[r.Kind] {
		r.Kind = KindUnknown
	}
	if r.Slots == nil {
		r.Slots = make(map[string]string)
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		r.Confidence = 0.5
	}
}

// SlotsJSON returns slots as a JSON string for database storage
func (r *Record) SlotsJSON() (string, error) {
	if r.Slots == nil {
		return "{}", nil
	}

	data, err := json.Marshal(r.Slots)
	if err != nil {
		return "", fmt.Errorf("failed to marshal slots: %w", err)
	}

	return string(data), nil
}

// String returns a human-readable representation of the intent record
func (r *Record) String() string {
	return fmt.Sprintf("Intent{Kind: %s, Confidence: %.2f, Text: %q}",
		r.Kind, r.Confidence, r.OriginalText)
}
