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
	"sync"
)

// chunkBuffer bounds how many pushed chunks may queue up between the
// ingest endpoint and the session drain loop.
const chunkBuffer = 64

var (
	// ErrNoActiveCapture is returned when a chunk arrives while no
	// capture session holds the microphone.
	ErrNoActiveCapture = errors.New("no active capture")

	// ErrCaptureBufferFull is returned when chunks arrive faster than
	// the session drains them.
	ErrCaptureBufferFull = errors.New("capture buffer full")
)

// PushMicrophone adapts network-pushed audio to the Microphone
// interface. Terminals deliver encoded chunks over HTTP and the hub
// feeds them into whichever capture session currently holds the
// device.
type PushMicrophone struct {
	mu     sync.Mutex
	stream *pushStream
}

// NewPushMicrophone creates a microphone fed by pushed chunks.
func NewPushMicrophone() *PushMicrophone {
	return &PushMicrophone{}
}

// Acquire hands out the single capture stream. Constraints are
// accepted for interface compatibility; the pushing terminal applies
// them on its end.
func (m *PushMicrophone) Acquire(_ context.Context, _ Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil, errors.New("capture already in progress")
	}

	s := &pushStream{mic: m, ch: make(chan []byte, chunkBuffer)}
	m.stream = s
	return s, nil
}

// Push delivers one encoded audio chunk to the active capture stream.
// The chunk is copied, so the caller may reuse its buffer.
func (m *PushMicrophone) Push(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return ErrNoActiveCapture
	}
	if len(data) == 0 {
		return nil
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)

	select {
	case m.stream.ch <- chunk:
		return nil
	default:
		return ErrCaptureBufferFull
	}
}

// Active reports whether a capture session currently holds the
// microphone.
func (m *PushMicrophone) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

type pushStream struct {
	mic    *PushMicrophone
	ch     chan []byte
	closed bool
}

func (s *pushStream) Chunks() <-chan []byte {
	return s.ch
}

func (s *pushStream) Close() error {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	if s.mic.stream == s {
		s.mic.stream = nil
	}
	return nil
}
