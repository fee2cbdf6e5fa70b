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

// Package server exposes the hub's HTTP surface: pipeline control,
// transcript validation and the utterance telemetry API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hausvox/hausvox-hub/internal/api"
	"github.com/hausvox/hausvox-hub/internal/audio"
	"github.com/hausvox/hausvox-hub/internal/config"
	"github.com/hausvox/hausvox-hub/internal/feedback"
	"github.com/hausvox/hausvox-hub/internal/logging"
	"github.com/hausvox/hausvox-hub/internal/orchestrator"
	"github.com/hausvox/hausvox-hub/internal/storage"
	"github.com/hausvox/hausvox-hub/internal/validate"
)

// Server is the hub's HTTP front
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	server *http.Server

	orchestrator *orchestrator.Orchestrator
	validator    orchestrator.Validator
	coordinator  *feedback.Coordinator
	utterances   *api.UtterancesHandler
	db           *storage.Database
	microphone   *audio.PushMicrophone

	ctx    context.Context
	cancel context.CancelFunc
}

// Options wires the server's collaborators
type Options struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Validator    orchestrator.Validator
	Coordinator  *feedback.Coordinator
	Store        *storage.UtteranceEventsStore
	Database     *storage.Database
	Microphone   *audio.PushMicrophone
}

// New creates the HTTP server and registers all routes
func New(opts Options) *Server {
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:          opts.Config,
		mux:          mux,
		orchestrator: opts.Orchestrator,
		validator:    opts.Validator,
		coordinator:  opts.Coordinator,
		utterances:   api.NewUtterancesHandler(opts.Store),
		db:           opts.Database,
		microphone:   opts.Microphone,
		ctx:          ctx,
		cancel:       cancel,
	}

	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(opts.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  opts.Config.Server.ReadTimeout,
		WriteTimeout: opts.Config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

// Start runs the HTTP server until Stop is called
func (s *Server) Start() error {
	logging.Sugar.Infow("Hausvox hub starting",
		"http_port", s.cfg.Server.Port,
		"stt_url", s.cfg.STT.URL,
		"classifier_url", s.cfg.Classifier.URL)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	logging.Sugar.Infow("Shutting down Hausvox hub")

	s.cancel()
	s.orchestrator.AbortCurrentOperation()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.Sugar.Infow("Hausvox hub shut down")
	return nil
}

// Handler exposes the route mux for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/validate", s.handleValidate)

	s.mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	s.mux.HandleFunc("/api/recording/chunk", s.handleRecordingChunk)
	s.mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	s.mux.HandleFunc("/api/recording/abort", s.handleRecordingAbort)

	s.mux.HandleFunc("/api/utterances", s.utterances.HandleUtterances)
	s.mux.HandleFunc("/api/utterances/", s.utterances.HandleUtteranceByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"state":     s.orchestrator.State().String(),
	}

	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			health["status"] = "degraded"
			health["database"] = "unreachable"
		} else {
			health["database"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStatus reports the pipeline state the way the UI consumes it
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"state":                  s.orchestrator.State().String(),
		"is_recording":           s.orchestrator.IsRecording(),
		"awaiting_clarification": s.orchestrator.AwaitingClarification(),
	}
	if s.coordinator != nil {
		status["status_text"] = s.coordinator.Status()
	}
	if last := s.orchestrator.LastValidation(); last != nil {
		status["last_validation"] = last
	}

	writeJSON(w, http.StatusOK, status)
}

// ValidateRequest is the payload for POST /api/validate. It runs a
// transcript through the validation engine without a capture, useful
// for terminals doing their own speech-to-text.
type ValidateRequest struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	TerminalID string  `json:"terminal_id,omitempty"`
	Language   string  `json:"language,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		http.Error(w, "confidence must be between 0 and 1", http.StatusBadRequest)
		return
	}

	terminalID := req.TerminalID
	if terminalID == "" {
		terminalID = s.cfg.Pipeline.TerminalID
	}
	language := req.Language
	if language == "" {
		language = s.cfg.STT.Language
	}

	result := s.validator.Validate(r.Context(), req.Transcript, req.Confidence, validate.Context{
		TerminalID: terminalID,
		Language:   language,
		Provider:   "external",
	})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.orchestrator.StartRecording(s.ctx); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrAlreadyRecording):
			http.Error(w, "Recording already in progress", http.StatusConflict)
		default:
			logging.LogError(err, "Failed to start recording")
			http.Error(w, "Failed to start recording", http.StatusServiceUnavailable)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"state": s.orchestrator.State().String()})
}

// maxChunkBytes caps a single pushed audio chunk.
const maxChunkBytes = 1 << 20

// handleRecordingChunk ingests one encoded audio chunk pushed by a
// terminal while a capture is active.
func (s *Server) handleRecordingChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.microphone == nil {
		http.Error(w, "Audio ingest not configured", http.StatusServiceUnavailable)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBytes+1))
	if err != nil {
		http.Error(w, "Failed to read chunk", http.StatusBadRequest)
		return
	}
	if len(data) > maxChunkBytes {
		http.Error(w, "Chunk too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.microphone.Push(data); err != nil {
		switch {
		case errors.Is(err, audio.ErrNoActiveCapture):
			http.Error(w, "No recording in progress", http.StatusConflict)
		case errors.Is(err, audio.ErrCaptureBufferFull):
			http.Error(w, "Capture buffer full", http.StatusTooManyRequests)
		default:
			logging.LogError(err, "Failed to ingest audio chunk")
			http.Error(w, "Failed to ingest audio chunk", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.orchestrator.StopRecording()
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNotRecording):
			http.Error(w, "No recording in progress", http.StatusConflict)
		case errors.Is(err, orchestrator.ErrOperationAborted):
			http.Error(w, "Operation aborted", http.StatusGone)
		default:
			logging.LogError(err, "Failed to stop recording")
			http.Error(w, "Failed to stop recording", http.StatusInternalServerError)
		}
		return
	}

	response := map[string]interface{}{
		"state": s.orchestrator.State().String(),
	}
	if result != nil {
		response["validation"] = result
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRecordingAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.orchestrator.AbortCurrentOperation()
	writeJSON(w, http.StatusOK, map[string]string{"state": s.orchestrator.State().String()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Sugar.Errorw("Failed to write JSON response", "error", err)
	}
}
