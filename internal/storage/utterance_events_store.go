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
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/events"
	"github.com/hausvox/hausvox-hub/internal/logging"
)

// UtteranceEventsStore handles database operations for utterance events
type UtteranceEventsStore struct {
	db *Database
}

// NewUtteranceEventsStore creates a new utterance events store
func NewUtteranceEventsStore(db *Database) *UtteranceEventsStore {
	return &UtteranceEventsStore{db: db}
}

// Insert stores a new utterance event in the database
func (s *UtteranceEventsStore) Insert(event *events.UtteranceEvent) error {
	if err := event.IsValidRecord(); err != nil {
		return fmt.Errorf("invalid utterance event: %w", err)
	}

	slotsJSON, err := event.SlotsJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize intent slots: %w", err)
	}

	issuesJSON, err := event.IssuesJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize issues: %w", err)
	}

	timingsJSON, err := event.TimingsJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize timings: %w", err)
	}

	query := `
		INSERT INTO utterance_events (
			uuid, terminal_id, session_id, timestamp,
			transcript, confidence, provider, language,
			outcome, is_valid, has_ambiguity, clarification_needed, issues,
			intent_kind, intent_slots, timings,
			success, error_message
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?
		)`

	_, err = s.db.DB().Exec(query,
		event.UUID, event.TerminalID, event.SessionID, event.Timestamp,
		event.Transcript, event.Confidence, event.Provider, event.Language,
		string(event.Outcome), event.IsValid, event.HasAmbiguity, event.ClarificationNeeded, issuesJSON,
		event.IntentKind, slotsJSON, timingsJSON,
		event.Success, event.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to insert utterance event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "utterance_events",
		zap.String("uuid", event.UUID),
		zap.String("terminal_id", event.TerminalID),
		zap.String("outcome", string(event.Outcome)))
	return nil
}

// GetByUUID retrieves an utterance event by its UUID
func (s *UtteranceEventsStore) GetByUUID(uuid string) (*events.UtteranceEvent, error) {
	query := selectColumns + ` FROM utterance_events WHERE uuid = ?`

	row := s.db.DB().QueryRow(query, uuid)
	return s.scanUtteranceEvent(row)
}

// List retrieves utterance events with pagination and filtering
func (s *UtteranceEventsStore) List(options ListOptions) ([]*events.UtteranceEvent, error) {
	query, args := s.buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query utterance events: %w", err)
	}
	defer rows.Close()

	var eventsList []*events.UtteranceEvent
	for rows.Next() {
		event, err := s.scanUtteranceEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan utterance event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating utterance events: %w", err)
	}

	return eventsList, nil
}

// Count returns the total number of utterance events matching the filter
func (s *UtteranceEventsStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := s.buildListQuery(options)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") as filtered"

	var count int64
	err := s.db.DB().QueryRow(countQuery, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count utterance events: %w", err)
	}

	return count, nil
}

// GetRecentByTerminal retrieves recent events for a specific terminal
func (s *UtteranceEventsStore) GetRecentByTerminal(terminalID string, limit int) ([]*events.UtteranceEvent, error) {
	options := ListOptions{
		TerminalID: terminalID,
		Limit:      limit,
	}
	return s.List(options)
}

// Delete removes an utterance event by UUID
func (s *UtteranceEventsStore) Delete(uuid string) error {
	result, err := s.db.DB().Exec("DELETE FROM utterance_events WHERE uuid = ?", uuid)
	if err != nil {
		return fmt.Errorf("failed to delete utterance event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("utterance event not found: %s", uuid)
	}

	return nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	TerminalID string
	Outcome    string
	IntentKind string
	Success    *bool // nil = all, true = success only, false = errors only
	StartTime  *time.Time
	EndTime    *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "timestamp", "confidence"
	SortOrder string // "ASC", "DESC"
}

const selectColumns = `
	SELECT uuid, terminal_id, session_id, timestamp,
		   transcript, confidence, provider, language,
		   outcome, is_valid, has_ambiguity, clarification_needed, issues,
		   intent_kind, intent_slots, timings,
		   success, error_message`

// buildListQuery constructs the SQL query based on ListOptions
func (s *UtteranceEventsStore) buildListQuery(options ListOptions) (string, []interface{}) {
	query := selectColumns + ` FROM utterance_events WHERE 1=1`

	var args []interface{}

	if options.TerminalID != "" {
		query += " AND terminal_id = ?"
		args = append(args, options.TerminalID)
	}

	if options.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, options.Outcome)
	}

	if options.IntentKind != "" {
		query += " AND intent_kind = ?"
		args = append(args, options.IntentKind)
	}

	if options.Success != nil {
		query += " AND success = ?"
		args = append(args, *options.Success)
	}

	if options.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, options.StartTime)
	}

	if options.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, options.EndTime)
	}

	sortBy := options.SortBy
	switch sortBy {
	case "timestamp", "confidence":
	default:
		sortBy = "timestamp"
	}

	sortOrder := options.SortOrder
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

// scanUtteranceEvent scans a database row into an UtteranceEvent struct
func (s *UtteranceEventsStore) scanUtteranceEvent(scanner interface{}) (*events.UtteranceEvent, error) {
	var event events.UtteranceEvent
	var outcome, slotsJSON, issuesJSON, timingsJSON string

	var row interface {
		Scan(dest ...interface{}) error
	}

	switch v := scanner.(type) {
	case *sql.Row:
		row = v
	case *sql.Rows:
		row = v
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	err := row.Scan(
		&event.UUID, &event.TerminalID, &event.SessionID, &event.Timestamp,
		&event.Transcript, &event.Confidence, &event.Provider, &event.Language,
		&outcome, &event.IsValid, &event.HasAmbiguity, &event.ClarificationNeeded, &issuesJSON,
		&event.IntentKind, &slotsJSON, &timingsJSON,
		&event.Success, &event.ErrorMessage,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("utterance event not found")
		}
		return nil, err
	}

	event.Outcome = events.ValidationOutcome(outcome)

	if err := event.SetSlotsFromJSON(slotsJSON); err != nil {
		return nil, fmt.Errorf("failed to parse intent slots JSON: %w", err)
	}

	if err := event.SetIssuesFromJSON(issuesJSON); err != nil {
		return nil, fmt.Errorf("failed to parse issues JSON: %w", err)
	}

	if err := event.SetTimingsFromJSON(timingsJSON); err != nil {
		return nil, fmt.Errorf("failed to parse timings JSON: %w", err)
	}

	return &event, nil
}
