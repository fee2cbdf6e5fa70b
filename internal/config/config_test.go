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
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Server defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.DBPath != "./data/hausvox-hub.db" {
		t.Errorf("Server.DBPath = %q, want %q", cfg.Server.DBPath, "./data/hausvox-hub.db")
	}

	// Capture defaults
	if cfg.Capture.MaxDuration != 30*time.Second {
		t.Errorf("Capture.MaxDuration = %v, want %v", cfg.Capture.MaxDuration, 30*time.Second)
	}
	if cfg.Capture.ChunkInterval != 250*time.Millisecond {
		t.Errorf("Capture.ChunkInterval = %v, want %v", cfg.Capture.ChunkInterval, 250*time.Millisecond)
	}
	if cfg.Capture.MimeType != "audio/webm" {
		t.Errorf("Capture.MimeType = %q, want %q", cfg.Capture.MimeType, "audio/webm")
	}

	// STT defaults
	if cfg.STT.URL != "http://stt:8000" {
		t.Errorf("STT.URL = %q, want %q", cfg.STT.URL, "http://stt:8000")
	}
	if cfg.STT.Language != "de" {
		t.Errorf("STT.Language = %q, want %q", cfg.STT.Language, "de")
	}

	// Classifier defaults
	if cfg.Classifier.URL != "http://localhost:11434" {
		t.Errorf("Classifier.URL = %q, want %q", cfg.Classifier.URL, "http://localhost:11434")
	}
	if cfg.Classifier.Timeout != 10*time.Second {
		t.Errorf("Classifier.Timeout = %v, want %v", cfg.Classifier.Timeout, 10*time.Second)
	}

	// Pipeline defaults
	if cfg.Pipeline.ClarificationDelay != time.Second {
		t.Errorf("Pipeline.ClarificationDelay = %v, want %v", cfg.Pipeline.ClarificationDelay, time.Second)
	}
	if cfg.Pipeline.MaxClarificationRetries != 3 {
		t.Errorf("Pipeline.MaxClarificationRetries = %d, want %d", cfg.Pipeline.MaxClarificationRetries, 3)
	}

	// TTS defaults
	if cfg.TTS.URL != "http://localhost:8880/v1" {
		t.Errorf("TTS.URL = %q, want %q", cfg.TTS.URL, "http://localhost:8880/v1")
	}
	if cfg.TTS.Speed != 1.0 {
		t.Errorf("TTS.Speed = %f, want %f", cfg.TTS.Speed, 1.0)
	}
	if !cfg.TTS.Enabled {
		t.Error("TTS.Enabled should default to true")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "STT configuration",
			envVars: map[string]string{
				"STT_LANGUAGE": "en",
				"STT_URL":      "http://custom-stt:9000",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.STT.Language != "en" {
					t.Errorf("STT.Language = %q, want %q", cfg.STT.Language, "en")
				}
				if cfg.STT.URL != "http://custom-stt:9000" {
					t.Errorf("STT.URL = %q, want %q", cfg.STT.URL, "http://custom-stt:9000")
				}
			},
		},
		{
			name: "Server configuration",
			envVars: map[string]string{
				"HAUSVOX_HOST":    "127.0.0.1",
				"HAUSVOX_PORT":    "3000",
				"HAUSVOX_DB_PATH": "/custom/path/db.sqlite",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Host != "127.0.0.1" {
					t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
				}
				if cfg.Server.Port != 3000 {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
				}
				if cfg.Server.DBPath != "/custom/path/db.sqlite" {
					t.Errorf("Server.DBPath = %q, want %q", cfg.Server.DBPath, "/custom/path/db.sqlite")
				}
			},
		},
		{
			name: "Capture configuration",
			envVars: map[string]string{
				"CAPTURE_MAX_DURATION":   "45s",
				"CAPTURE_CHUNK_INTERVAL": "100ms",
				"CAPTURE_MIME_TYPE":      "audio/ogg",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Capture.MaxDuration != 45*time.Second {
					t.Errorf("Capture.MaxDuration = %v, want %v", cfg.Capture.MaxDuration, 45*time.Second)
				}
				if cfg.Capture.ChunkInterval != 100*time.Millisecond {
					t.Errorf("Capture.ChunkInterval = %v, want %v", cfg.Capture.ChunkInterval, 100*time.Millisecond)
				}
				if cfg.Capture.MimeType != "audio/ogg" {
					t.Errorf("Capture.MimeType = %q, want %q", cfg.Capture.MimeType, "audio/ogg")
				}
			},
		},
		{
			name: "Classifier configuration",
			envVars: map[string]string{
				"CLASSIFIER_URL":     "http://custom-llm:11434",
				"CLASSIFIER_MODEL":   "mistral:7b",
				"CLASSIFIER_TIMEOUT": "5s",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Classifier.URL != "http://custom-llm:11434" {
					t.Errorf("Classifier.URL = %q, want %q", cfg.Classifier.URL, "http://custom-llm:11434")
				}
				if cfg.Classifier.Model != "mistral:7b" {
					t.Errorf("Classifier.Model = %q, want %q", cfg.Classifier.Model, "mistral:7b")
				}
				if cfg.Classifier.Timeout != 5*time.Second {
					t.Errorf("Classifier.Timeout = %v, want %v", cfg.Classifier.Timeout, 5*time.Second)
				}
			},
		},
		{
			name: "Pipeline configuration",
			envVars: map[string]string{
				"PIPELINE_CLARIFICATION_DELAY":       "2s",
				"PIPELINE_MAX_CLARIFICATION_RETRIES": "5",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Pipeline.ClarificationDelay != 2*time.Second {
					t.Errorf("Pipeline.ClarificationDelay = %v, want %v", cfg.Pipeline.ClarificationDelay, 2*time.Second)
				}
				if cfg.Pipeline.MaxClarificationRetries != 5 {
					t.Errorf("Pipeline.MaxClarificationRetries = %d, want %d", cfg.Pipeline.MaxClarificationRetries, 5)
				}
			},
		},
		{
			name: "TTS configuration",
			envVars: map[string]string{
				"TTS_URL":            "http://custom-tts:8881/v1",
				"TTS_VOICE":          "de_thorsten",
				"TTS_SPEED":          "1.5",
				"TTS_FORMAT":         "wav",
				"TTS_MAX_CONCURRENT": "15",
				"TTS_NORMALIZE":      "false",
				"TTS_TIMEOUT":        "15s",
				"TTS_ENABLED":        "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.TTS.URL != "http://custom-tts:8881/v1" {
					t.Errorf("TTS.URL = %q, want %q", cfg.TTS.URL, "http://custom-tts:8881/v1")
				}
				if cfg.TTS.Voice != "de_thorsten" {
					t.Errorf("TTS.Voice = %q, want %q", cfg.TTS.Voice, "de_thorsten")
				}
				if cfg.TTS.Speed != 1.5 {
					t.Errorf("TTS.Speed = %f, want %f", cfg.TTS.Speed, 1.5)
				}
				if cfg.TTS.ResponseFormat != "wav" {
					t.Errorf("TTS.ResponseFormat = %q, want %q", cfg.TTS.ResponseFormat, "wav")
				}
				if cfg.TTS.MaxConcurrent != 15 {
					t.Errorf("TTS.MaxConcurrent = %d, want %d", cfg.TTS.MaxConcurrent, 15)
				}
				if cfg.TTS.Normalize {
					t.Error("TTS.Normalize should be false")
				}
				if cfg.TTS.Timeout != 15*time.Second {
					t.Errorf("TTS.Timeout = %v, want %v", cfg.TTS.Timeout, 15*time.Second)
				}
				if cfg.TTS.Enabled {
					t.Error("TTS.Enabled should be false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			for key, value := range tt.envVars {
				_ = os.Setenv(key, value)
			}
			defer clearEnvVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		envVars       map[string]string
		expectError   bool
		errorContains string
	}{
		{
			name: "Invalid server port",
			envVars: map[string]string{
				"HAUSVOX_PORT": "0",
			},
			expectError:   true,
			errorContains: "invalid server port",
		},
		{
			name: "Port out of range",
			envVars: map[string]string{
				"HAUSVOX_PORT": "99999",
			},
			expectError:   true,
			errorContains: "invalid server port",
		},
		{
			name: "Negative capture duration",
			envVars: map[string]string{
				"CAPTURE_MAX_DURATION": "-5s",
			},
			expectError:   true,
			errorContains: "capture max duration",
		},
		{
			name: "Negative clarification retries",
			envVars: map[string]string{
				"PIPELINE_MAX_CLARIFICATION_RETRIES": "-1",
			},
			expectError:   true,
			errorContains: "clarification retries",
		},
		{
			name: "Valid configuration",
			envVars: map[string]string{
				"STT_LANGUAGE": "de",
				"HAUSVOX_PORT": "3000",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			for key, value := range tt.envVars {
				_ = os.Setenv(key, value)
			}
			defer clearEnvVars()

			_, err := Load()

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				} else if tt.errorContains != "" && !contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got: %v", tt.errorContains, err)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		})
	}
}

// Helper function to clear environment variables used in tests
func clearEnvVars() {
	envVars := []string{
		"HAUSVOX_HOST", "HAUSVOX_PORT", "HAUSVOX_DB_PATH",
		"HAUSVOX_READ_TIMEOUT", "HAUSVOX_WRITE_TIMEOUT",
		"CAPTURE_MAX_DURATION", "CAPTURE_CHUNK_INTERVAL", "CAPTURE_MIME_TYPE",
		"STT_URL", "STT_LANGUAGE", "STT_TIMEOUT",
		"CLASSIFIER_URL", "CLASSIFIER_MODEL", "CLASSIFIER_TIMEOUT",
		"TTS_URL", "TTS_VOICE", "TTS_SPEED", "TTS_FORMAT", "TTS_NORMALIZE",
		"TTS_MAX_CONCURRENT", "TTS_TIMEOUT", "TTS_ENABLED",
		"PIPELINE_CLARIFICATION_DELAY", "PIPELINE_MAX_CLARIFICATION_RETRIES",
		"PIPELINE_TERMINAL_ID",
		"LOG_LEVEL", "LOG_FORMAT",
		"NATS_URL", "NATS_SUBJECT", "NATS_MAX_RECONNECT", "NATS_RECONNECT_WAIT",
	}

	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (len(substr) == 0 || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
