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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Hausvox hub
type Config struct {
	Server     ServerConfig
	Capture    CaptureConfig
	STT        STTConfig
	Classifier ClassifierConfig
	TTS        TTSConfig
	Pipeline   PipelineConfig
	Logging    LoggingConfig
	NATS       NATSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	DBPath       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CaptureConfig holds audio capture configuration
type CaptureConfig struct {
	MaxDuration   time.Duration // Absolute recording deadline
	ChunkInterval time.Duration // Buffering interval for audio chunks
	MimeType      string        // Container format produced by the capture device
}

// STTConfig holds Speech-to-Text service configuration
type STTConfig struct {
	URL      string // REST API URL for the transcription service
	Language string // BCP-47 language hint sent with every request
	Timeout  time.Duration
}

// ClassifierConfig holds the remote LLM classifier configuration
type ClassifierConfig struct {
	URL     string // Ollama-compatible generate endpoint
	Model   string
	Timeout time.Duration // Hung classifier calls degrade instead of stalling the cycle
}

// TTSConfig holds Text-to-Speech service configuration
type TTSConfig struct {
	URL            string        // REST API URL for the OpenAI-compatible TTS service
	Voice          string        // Default voice to use
	Speed          float32       // Speech speed (1.0 = normal)
	ResponseFormat string        // Audio format (mp3, wav, opus, flac)
	Normalize      bool          // Enable text normalization
	MaxConcurrent  int           // Maximum concurrent TTS requests
	Timeout        time.Duration // Request timeout
	Enabled        bool          // Spoken feedback for clarification prompts
}

// PipelineConfig holds orchestrator behavior configuration
type PipelineConfig struct {
	ClarificationDelay      time.Duration // Pause before re-recording after a clarification prompt
	MaxClarificationRetries int           // Clarification attempts before giving up on the utterance
	TerminalID              string        // Identifier reported to the STT service and telemetry
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("HAUSVOX_HOST", "0.0.0.0"),
			Port:         getEnvInt("HAUSVOX_PORT", 8080),
			DBPath:       getEnvString("HAUSVOX_DB_PATH", "./data/hausvox-hub.db"),
			ReadTimeout:  getEnvDuration("HAUSVOX_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HAUSVOX_WRITE_TIMEOUT", 30*time.Second),
		},
		Capture: CaptureConfig{
			MaxDuration:   getEnvDuration("CAPTURE_MAX_DURATION", 30*time.Second),
			ChunkInterval: getEnvDuration("CAPTURE_CHUNK_INTERVAL", 250*time.Millisecond),
			MimeType:      getEnvString("CAPTURE_MIME_TYPE", "audio/webm"),
		},
		STT: STTConfig{
			URL:      getEnvString("STT_URL", "http://stt:8000"),
			Language: getEnvString("STT_LANGUAGE", "de"),
			Timeout:  getEnvDuration("STT_TIMEOUT", 30*time.Second),
		},
		Classifier: ClassifierConfig{
			URL:     getEnvString("CLASSIFIER_URL", "http://localhost:11434"),
			Model:   getEnvString("CLASSIFIER_MODEL", "llama3.2:3b"),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		},
		TTS: TTSConfig{
			URL:            getEnvString("TTS_URL", "http://localhost:8880/v1"),
			Voice:          getEnvString("TTS_VOICE", "af_bella"),
			Speed:          getEnvFloat32("TTS_SPEED", 1.0),
			ResponseFormat: getEnvString("TTS_FORMAT", "mp3"),
			Normalize:      getEnvBool("TTS_NORMALIZE", true),
			MaxConcurrent:  getEnvInt("TTS_MAX_CONCURRENT", 10),
			Timeout:        getEnvDuration("TTS_TIMEOUT", 10*time.Second),
			Enabled:        getEnvBool("TTS_ENABLED", true),
		},
		Pipeline: PipelineConfig{
			ClarificationDelay:      getEnvDuration("PIPELINE_CLARIFICATION_DELAY", time.Second),
			MaxClarificationRetries: getEnvInt("PIPELINE_MAX_CLARIFICATION_RETRIES", 3),
			TerminalID:              getEnvString("PIPELINE_TERMINAL_ID", "hausvox-terminal"),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject:       getEnvString("NATS_SUBJECT", "hausvox.intents.classified"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Capture.MaxDuration <= 0 {
		return fmt.Errorf("capture max duration must be positive: %v", c.Capture.MaxDuration)
	}

	if c.Capture.ChunkInterval <= 0 {
		return fmt.Errorf("capture chunk interval must be positive: %v", c.Capture.ChunkInterval)
	}

	if c.STT.URL == "" {
		return fmt.Errorf("STT URL must be provided")
	}

	if c.Classifier.URL == "" {
		return fmt.Errorf("classifier URL must be provided")
	}

	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive: %v", c.Classifier.Timeout)
	}

	if c.TTS.URL == "" {
		return fmt.Errorf("TTS URL must be provided")
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	if c.TTS.Speed <= 0 {
		return fmt.Errorf("TTS speed must be positive: %f", c.TTS.Speed)
	}

	if c.Pipeline.MaxClarificationRetries < 0 {
		return fmt.Errorf("clarification retries must not be negative: %d", c.Pipeline.MaxClarificationRetries)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
