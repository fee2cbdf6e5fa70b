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

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/events"
	"github.com/hausvox/hausvox-hub/internal/logging"
	"github.com/hausvox/hausvox-hub/internal/storage"
)

// UtterancesHandler serves the recorded utterance telemetry
type UtterancesHandler struct {
	store *storage.UtteranceEventsStore
}

// NewUtterancesHandler creates an utterances handler
func NewUtterancesHandler(store *storage.UtteranceEventsStore) *UtterancesHandler {
	return &UtterancesHandler{store: store}
}

// ListUtterancesResponse is the paginated listing payload
type ListUtterancesResponse struct {
	Events     []*events.UtteranceEvent `json:"events"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

// HandleUtterances handles GET /api/utterances
func (h *UtterancesHandler) HandleUtterances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listUtterances(w, r)
}

// HandleUtteranceByID handles GET /api/utterances/{uuid}
func (h *UtterancesHandler) HandleUtteranceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/utterances/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	h.getUtteranceByID(w, pathParts[0])
}

func (h *UtterancesHandler) listUtterances(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	options := storage.ListOptions{
		TerminalID: query.Get("terminal_id"),
		Outcome:    query.Get("outcome"),
		IntentKind: query.Get("intent_kind"),
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
		SortBy:     query.Get("sort_by"),
		SortOrder:  strings.ToUpper(query.Get("sort_order")),
	}

	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}
	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count utterance events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	utterances, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list utterance events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response := ListUtterancesResponse{
		Events:     utterances,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	logging.Sugar.Infow("Utterances API request",
		"endpoint", "list",
		"page", page,
		"page_size", pageSize,
		"total_results", total,
		"terminal_id", options.TerminalID,
		"outcome", options.Outcome,
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.LogError(err, "Failed to encode utterances response")
	}
}

func (h *UtterancesHandler) getUtteranceByID(w http.ResponseWriter, uuid string) {
	event, err := h.store.GetByUUID(uuid)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Utterance event not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get utterance event",
			zap.String("uuid", uuid))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(event); err != nil {
		logging.LogError(err, "Failed to encode utterance response")
	}
}

func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(param); err == nil {
		return value
	}
	return defaultValue
}
