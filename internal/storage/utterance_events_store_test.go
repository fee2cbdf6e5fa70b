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

package storage

import (
	"path/filepath"
	"testing"

	"github.com/hausvox/hausvox-hub/internal/events"
)

func newTestStore(t *testing.T) *UtteranceEventsStore {
	t.Helper()

	db, err := NewDatabase(DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewUtteranceEventsStore(db)
}

func sampleEvent(terminalID string) *events.UtteranceEvent {
	event := events.NewUtteranceEvent(terminalID, "session-1")
	event.SetTranscript("Schalte das Licht im Wohnzimmer ein", 0.95, "whisper", "de")
	event.SetValidation(events.OutcomeBypassed, true, false, false, nil)
	event.SetIntent("command", map[string]string{"device": "licht", "location": "wohnzimmer"})
	event.Timings = events.Timings{
		AudioDurationMs:   2400,
		TranscriptionMs:   310,
		TotalValidationMs: 3,
	}
	return event
}

func TestInsertAndGetByUUID(t *testing.T) {
	store := newTestStore(t)
	event := sampleEvent("terminal-1")

	if err := store.Insert(event); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetByUUID(event.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}

	if got.Transcript != event.Transcript {
		t.Errorf("Transcript = %q, want %q", got.Transcript, event.Transcript)
	}
	if got.Confidence != event.Confidence {
		t.Errorf("Confidence = %f, want %f", got.Confidence, event.Confidence)
	}
	if got.Outcome != events.OutcomeBypassed {
		t.Errorf("Outcome = %q, want %q", got.Outcome, events.OutcomeBypassed)
	}
	if got.IntentKind != "command" {
		t.Errorf("IntentKind = %q, want %q", got.IntentKind, "command")
	}
	if got.IntentSlots["device"] != "licht" {
		t.Errorf("device slot = %q, want %q", got.IntentSlots["device"], "licht")
	}
	if got.Timings.TranscriptionMs != 310 {
		t.Errorf("Timings.TranscriptionMs = %d, want %d", got.Timings.TranscriptionMs, 310)
	}
}

func TestInsert_InvalidEvent(t *testing.T) {
	store := newTestStore(t)

	event := sampleEvent("terminal-1")
	event.UUID = ""

	if err := store.Insert(event); err == nil {
		t.Error("Insert() should reject an event without UUID")
	}
}

func TestList_Filtering(t *testing.T) {
	store := newTestStore(t)

	first := sampleEvent("terminal-1")
	second := sampleEvent("terminal-2")
	second.SetValidation(events.OutcomeRejected, false, false, false, nil)
	second.SetIntent("unknown", nil)

	for _, e := range []*events.UtteranceEvent{first, second} {
		if err := store.Insert(e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	t.Run("filter by terminal", func(t *testing.T) {
		got, err := store.List(ListOptions{TerminalID: "terminal-1"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("List() returned %d events, want 1", len(got))
		}
		if got[0].UUID != first.UUID {
			t.Errorf("got UUID %s, want %s", got[0].UUID, first.UUID)
		}
	})

	t.Run("filter by outcome", func(t *testing.T) {
		got, err := store.List(ListOptions{Outcome: string(events.OutcomeRejected)})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("List() returned %d events, want 1", len(got))
		}
		if got[0].UUID != second.UUID {
			t.Errorf("got UUID %s, want %s", got[0].UUID, second.UUID)
		}
	})

	t.Run("filter by intent kind", func(t *testing.T) {
		got, err := store.List(ListOptions{IntentKind: "command"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("List() returned %d events, want 1", len(got))
		}
	})

	t.Run("no filter returns all", func(t *testing.T) {
		got, err := store.List(ListOptions{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("List() returned %d events, want 2", len(got))
		}
	})
}

func TestList_Pagination(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.Insert(sampleEvent("terminal-1")); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := store.List(ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(Limit: 2) returned %d events, want 2", len(got))
	}

	count, err := store.Count(ListOptions{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	event := sampleEvent("terminal-1")

	if err := store.Insert(event); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := store.Delete(event.UUID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.GetByUUID(event.UUID); err == nil {
		t.Error("GetByUUID() should fail after delete")
	}

	if err := store.Delete(event.UUID); err == nil {
		t.Error("Delete() should fail for missing event")
	}
}
