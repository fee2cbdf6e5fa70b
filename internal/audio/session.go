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

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/logging"
)

// Capture error taxonomy
var (
	ErrAlreadyRecording      = errors.New("recording already in progress")
	ErrNotRecording          = errors.New("no recording in progress")
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	ErrAborted               = errors.New("operation aborted")
)

// State describes the capture session lifecycle
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateStopping
	StateProcessing
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// StartOptions configures one recording attempt
type StartOptions struct {
	MaxDuration time.Duration
	Constraints Constraints
}

// Session owns one recording attempt: it acquires a microphone stream,
// buffers audio chunks, enforces a maximum duration, and finalizes the
// buffered audio into a single Clip. At most one capture is active per
// session; Start while non-idle fails with ErrAlreadyRecording.
type Session struct {
	mic      Microphone
	mimeType string

	mu        sync.Mutex
	id        string
	state     State
	startedAt time.Time
	stoppedAt time.Time
	chunks    [][]byte
	aborted   bool

	stream    Stream
	closeOnce *sync.Once
	deadline  *time.Timer
	drained   chan struct{}
}

// NewSession creates a capture session over the given microphone device
func NewSession(mic Microphone, mimeType string) *Session {
	return &Session{
		mic:      mic,
		mimeType: mimeType,
		state:    StateIdle,
	}
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the identifier of the current or most recent capture
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Start acquires the microphone and begins buffering audio chunks.
// Acquisition falls back to a minimal constraint set when the device
// rejects the first request. A deadline timer auto-stops buffering once
// MaxDuration elapses, exactly as if Stop had been called.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	s.state = StateCapturing
	s.id = uuid.NewString()
	s.aborted = false
	s.chunks = nil
	s.stoppedAt = time.Time{}
	sessionID := s.id
	s.mu.Unlock()

	constraints := opts.Constraints
	if constraints.SampleRate == 0 {
		constraints = DefaultConstraints()
	}

	stream, err := s.mic.Acquire(ctx, constraints)
	if err != nil {
		// Retry once with the minimal constraint set before giving up
		logging.LogWarn("Microphone rejected constraints, retrying with minimal set",
			zap.String("session_id", sessionID), zap.Error(err))
		stream, err = s.mic.Acquire(ctx, MinimalConstraints())
	}
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	maxDuration := opts.MaxDuration
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}

	s.mu.Lock()
	s.stream = stream
	s.closeOnce = &sync.Once{}
	s.startedAt = time.Now()
	s.drained = make(chan struct{})
	s.deadline = time.AfterFunc(maxDuration, s.deadlineExpired)
	drained := s.drained
	s.mu.Unlock()

	go s.drain(stream, drained)

	logging.LogCaptureStage(sessionID, "started",
		zap.Duration("max_duration", maxDuration))

	return nil
}

// drain buffers chunks until the stream channel closes
func (s *Session) drain(stream Stream, done chan struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		s.mu.Lock()
		if s.state == StateCapturing {
			s.chunks = append(s.chunks, chunk)
		}
		s.mu.Unlock()
	}
}

// deadlineExpired is invoked by the deadline timer; it ends buffering
// exactly as a manual stop would, leaving finalization to Stop
func (s *Session) deadlineExpired() {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return
	}
	s.stoppedAt = time.Now()
	stream, once := s.stream, s.closeOnce
	sessionID := s.id
	s.mu.Unlock()

	logging.LogCaptureStage(sessionID, "deadline_expired")
	closeStream(stream, once)
}

// Stop finalizes buffered audio into a single Clip and releases the
// underlying media tracks unconditionally. A session with zero captured
// chunks still resolves with an empty clip; callers must treat empty
// audio as "no transcription attempt".
func (s *Session) Stop() (*Clip, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.state = StateStopping
	if s.stoppedAt.IsZero() {
		s.stoppedAt = time.Now()
	}
	stream, once := s.stream, s.closeOnce
	drained := s.drained
	deadline := s.deadline
	s.mu.Unlock()

	if deadline != nil {
		deadline.Stop()
	}
	closeStream(stream, once)
	<-drained

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		s.reset()
		return nil, ErrAborted
	}

	var size int
	for _, chunk := range s.chunks {
		size += len(chunk)
	}
	data := make([]byte, 0, size)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}

	clip := &Clip{
		Data:     data,
		MimeType: s.mimeType,
		Duration: s.stoppedAt.Sub(s.startedAt),
	}

	sessionID := s.id
	s.reset()

	logging.LogCaptureStage(sessionID, "finalized",
		zap.Int("bytes", len(clip.Data)),
		zap.Duration("duration", clip.Duration))

	return clip, nil
}

// Abort tears the session down immediately: tracks are stopped, buffered
// chunks are discarded, and any pending Stop resolves with ErrAborted.
// Safe to call when already idle.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}

	s.aborted = true
	s.chunks = nil
	stream, once := s.stream, s.closeOnce
	deadline := s.deadline
	sessionID := s.id

	// A pending Stop observes the aborted flag and resets the session;
	// only tear down here when no Stop is in flight.
	if s.state == StateCapturing {
		s.reset()
	}
	s.mu.Unlock()

	if deadline != nil {
		deadline.Stop()
	}
	closeStream(stream, once)

	logging.LogCaptureStage(sessionID, "aborted")
}

// reset returns the session to idle; caller must hold the lock
func (s *Session) reset() {
	s.state = StateIdle
	s.chunks = nil
	s.stream = nil
	s.deadline = nil
	s.aborted = false
}

func closeStream(stream Stream, once *sync.Once) {
	if stream == nil || once == nil {
		return
	}
	once.Do(func() {
		if err := stream.Close(); err != nil {
			logging.LogError(err, "Failed to close audio stream")
		}
	})
}
