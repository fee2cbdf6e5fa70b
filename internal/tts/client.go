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

// Package tts synthesizes spoken feedback through an OpenAI-compatible
// text-to-speech service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/config"
	"github.com/hausvox/hausvox-hub/internal/logging"
)

// Options override per-request synthesis parameters
type Options struct {
	Voice          string
	Speed          float32
	ResponseFormat string
}

// Result carries the synthesized audio stream; the caller owns closing
// Audio
type Result struct {
	Audio       io.ReadCloser
	ContentType string
	Length      int64
}

// Synthesizer converts text into audible speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, options *Options) (*Result, error)
}

type speechRequest struct {
	Model  string  `json:"model"`
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Format string  `json:"response_format"`
	Speed  float32 `json:"speed,omitempty"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}

// Client implements Synthesizer against an OpenAI-compatible speech
// endpoint
type Client struct {
	baseURL   string
	client    *http.Client
	config    config.TTSConfig
	semaphore chan struct{}

	mu              sync.RWMutex
	cachedVoices    []string
	voicesCacheTime time.Time
}

// NewClient creates a TTS client and verifies the service is reachable
func NewClient(cfg config.TTSConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TTS URL cannot be empty")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}

	if err := c.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("TTS client initialized",
			"url", cfg.URL,
			"voice", cfg.Voice,
			"max_concurrent", cfg.MaxConcurrent,
		)
	}

	return c, nil
}

// Synthesize converts text to speech. Concurrency is bounded by a
// semaphore; a full queue fails the request after five seconds rather
// than piling up.
func (c *Client) Synthesize(ctx context.Context, text string, options *Options) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("TTS synthesis queue full, request timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()

	voice := c.config.Voice
	speed := c.config.Speed
	format := c.config.ResponseFormat
	if options != nil {
		if options.Voice != "" {
			voice = options.Voice
		}
		if options.Speed > 0 {
			speed = options.Speed
		}
		if options.ResponseFormat != "" {
			format = options.ResponseFormat
		}
	}

	requestBody, err := json.Marshal(speechRequest{
		Model:  "kokoro",
		Input:  text,
		Voice:  voice,
		Format: format,
		Speed:  speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
		zap.String("format", format),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := c.client.Do(req)
	if err != nil {
		logging.LogError(err, "TTS HTTP request failed",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)))
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		logging.LogWarn("TTS request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(body)))
		return nil, fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(body))
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
	)

	return &Result{
		Audio:       resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// AvailableVoices returns the voices the service offers, cached for an
// hour
func (c *Client) AvailableVoices(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if len(c.cachedVoices) > 0 && time.Since(c.voicesCacheTime) < time.Hour {
		voices := make([]string, len(c.cachedVoices))
		copy(voices, c.cachedVoices)
		c.mu.RUnlock()
		return voices, nil
	}
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/audio/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voices: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices request failed with status %d", resp.StatusCode)
	}

	var voices voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	c.mu.Lock()
	c.cachedVoices = make([]string, len(voices.Voices))
	copy(c.cachedVoices, voices.Voices)
	c.voicesCacheTime = time.Now()
	c.mu.Unlock()

	return voices.Voices, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/audio/voices", nil)
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}
	return nil
}
