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
	"time"
)

// Constraints describes the capture properties requested from a microphone device
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	ChunkInterval    time.Duration
}

// DefaultConstraints returns the feature-rich constraint set tried first
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		ChunkInterval:    250 * time.Millisecond,
	}
}

// MinimalConstraints returns the fallback constraint set used when the
// device rejects the default request
func MinimalConstraints() Constraints {
	return Constraints{
		SampleRate:    16000,
		Channels:      1,
		ChunkInterval: 250 * time.Millisecond,
	}
}

// Stream delivers buffered audio chunks from an acquired microphone.
// The chunk channel is closed when the stream ends; Close must be
// idempotent and must release the underlying device tracks.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Microphone acquires an audio stream from a capture device
type Microphone interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}

// Clip is the finalized audio of one completed capture session
type Clip struct {
	Data     []byte
	MimeType string
	Duration time.Duration
}

// Empty reports whether the clip contains no audio data
func (c *Clip) Empty() bool {
	return c == nil || len(c.Data) == 0
}
