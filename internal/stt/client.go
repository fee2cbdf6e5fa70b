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

// Package stt talks to the remote speech-to-text service. The service
// answers in more than one envelope shape; this package flattens all of
// them into a single Transcript record or a typed TranscriptionError.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/hausvox/hausvox-hub/internal/logging"
)

// Stable failure reason codes. Callers branch on these, never on the
// wrapped transport error.
const (
	ReasonEmptyAudio   = "empty_audio"
	ReasonNetwork      = "network"
	ReasonRemoteError  = "remote_error"
	ReasonBadStatus    = "bad_status"
	ReasonMalformed    = "malformed_response"
	ReasonNoTranscript = "no_transcript"
)

// TranscriptionError carries a stable reason code alongside the
// underlying cause
type TranscriptionError struct {
	Reason string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transcription failed (%s)", e.Reason)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

func failure(reason string, err error) *TranscriptionError {
	return &TranscriptionError{Reason: reason, Err: err}
}

// Transcript is the normalized result of one transcription call.
// Immutable after creation.
type Transcript struct {
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	Provider        string  `json:"provider"`
	Language        string  `json:"language"`
	AudioDurationMs int64   `json:"audio_duration_ms,omitempty"`
	TranscriptionMs int64   `json:"transcription_ms,omitempty"`
}

// Request carries per-call hints forwarded to the service
type Request struct {
	MimeType      string
	Language      string
	MaxDurationMs int64
	SessionID     string
	TerminalID    string
}

// Transcriber is the interface the orchestrator consumes
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, req Request) (*Transcript, error)
}

// Client is an HTTP Transcriber
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewClient creates a transcription client for the given service URL
func NewClient(baseURL, language string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if language == "" {
		language = "de"
	}
	return &Client{
		baseURL:  baseURL,
		language: language,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the default request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// HealthCheck verifies the service is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to STT service at %s: %w", c.baseURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.LogWarn("Failed to close health check response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("STT service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Remote envelope. The service either fills data, fills error, or sends
// something that deserializes into neither.
type remoteEnvelope struct {
	Success *bool         `json:"success"`
	Data    *remoteResult `json:"data"`
	Error   *remoteError  `json:"error"`

	// Some deployments answer with a bare result instead of an envelope
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

type remoteResult struct {
	Transcript      string   `json:"transcript"`
	Confidence      *float64 `json:"confidence"`
	Provider        string   `json:"provider"`
	Language        string   `json:"language"`
	AudioDurationMs int64    `json:"audio_duration_ms"`
	TranscriptionMs int64    `json:"transcription_duration_ms"`
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Transcribe posts the audio blob as multipart form data and normalizes
// the response. Empty audio is rejected locally without a network call.
func (c *Client) Transcribe(ctx context.Context, audio []byte, req Request) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, failure(ReasonEmptyAudio, errors.New("no audio data captured"))
	}

	startTime := time.Now()

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	audioWriter, err := writer.CreateFormFile("file", "utterance"+extensionFor(req.MimeType))
	if err != nil {
		return nil, failure(ReasonNetwork, fmt.Errorf("failed to create form file: %w", err))
	}
	if _, err := audioWriter.Write(audio); err != nil {
		return nil, failure(ReasonNetwork, fmt.Errorf("failed to write audio data: %w", err))
	}

	language := req.Language
	if language == "" {
		language = c.language
	}
	_ = writer.WriteField("language", language)
	if req.MaxDurationMs > 0 {
		_ = writer.WriteField("max_duration_ms", strconv.FormatInt(req.MaxDurationMs, 10))
	}
	if req.SessionID != "" {
		_ = writer.WriteField("session_id", req.SessionID)
	}
	if req.TerminalID != "" {
		_ = writer.WriteField("terminal_id", req.TerminalID)
	}

	contentType := writer.FormDataContentType()
	if err := writer.Close(); err != nil {
		return nil, failure(ReasonNetwork, fmt.Errorf("failed to close multipart writer: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &requestBody)
	if err != nil {
		return nil, failure(ReasonNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)

	logging.LogCaptureStage(req.SessionID, "transcribing")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, failure(ReasonNetwork, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.LogWarn("Failed to close transcription response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure(ReasonNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		// A non-200 may still carry an error envelope worth surfacing
		var envelope remoteEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			return nil, failure(ReasonRemoteError,
				fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message))
		}
		return nil, failure(ReasonBadStatus, fmt.Errorf("status %d", resp.StatusCode))
	}

	transcript, terr := c.normalize(body, language)
	if terr != nil {
		return nil, terr
	}
	transcript.TranscriptionMs = time.Since(startTime).Milliseconds()

	if logging.Sugar != nil {
		logging.Sugar.Infow("Transcription completed",
			"session_id", req.SessionID,
			"provider", transcript.Provider,
			"confidence", transcript.Confidence,
			"transcription_ms", transcript.TranscriptionMs,
			"text_length", len(transcript.Text),
		)
	}

	return transcript, nil
}

// normalize flattens the three known envelope shapes into a Transcript
func (c *Client) normalize(body []byte, language string) (*Transcript, *TranscriptionError) {
	if len(body) == 0 {
		return nil, failure(ReasonMalformed, errors.New("empty response body"))
	}

	var envelope remoteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, failure(ReasonMalformed, err)
	}

	// Shape 2: explicit error envelope
	if envelope.Error != nil || (envelope.Success != nil && !*envelope.Success) {
		if envelope.Error != nil {
			return nil, failure(ReasonRemoteError,
				fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message))
		}
		return nil, failure(ReasonRemoteError, errors.New("service reported failure without detail"))
	}

	// Shape 1: success/data envelope
	if envelope.Data != nil {
		confidence := 1.0
		if envelope.Data.Confidence != nil {
			confidence = clamp01(*envelope.Data.Confidence)
		}
		lang := envelope.Data.Language
		if lang == "" {
			lang = language
		}
		provider := envelope.Data.Provider
		if provider == "" {
			provider = "unknown"
		}
		return &Transcript{
			Text:            envelope.Data.Transcript,
			Confidence:      confidence,
			Provider:        provider,
			Language:        lang,
			AudioDurationMs: envelope.Data.AudioDurationMs,
		}, nil
	}

	// Shape 3: bare OpenAI-style result
	if envelope.Text != "" || envelope.Confidence != nil {
		confidence := 1.0
		if envelope.Confidence != nil {
			confidence = clamp01(*envelope.Confidence)
		}
		return &Transcript{
			Text:       envelope.Text,
			Confidence: confidence,
			Provider:   "unknown",
			Language:   language,
		}, nil
	}

	return nil, failure(ReasonNoTranscript, errors.New("response carried no transcript"))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4":
		return ".m4a"
	default:
		return ".webm"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
