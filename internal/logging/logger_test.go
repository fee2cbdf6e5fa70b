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

package logging

import (
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	// Save original environment
	originalLevel := os.Getenv("LOG_LEVEL")
	originalFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		_ = os.Setenv("LOG_LEVEL", originalLevel)
		_ = os.Setenv("LOG_FORMAT", originalFormat)
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
		wantErr   bool
	}{
		{
			name:      "Default values",
			logLevel:  "",
			logFormat: "",
			wantErr:   false,
		},
		{
			name:      "Info level console format",
			logLevel:  "info",
			logFormat: "console",
			wantErr:   false,
		},
		{
			name:      "Debug level JSON format",
			logLevel:  "debug",
			logFormat: "json",
			wantErr:   false,
		},
		{
			name:      "Invalid format defaults to console",
			logLevel:  "info",
			logFormat: "invalid",
			wantErr:   false,
		},
		{
			name:      "Invalid level defaults to info",
			logLevel:  "invalid",
			logFormat: "console",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				_ = os.Setenv("LOG_LEVEL", tt.logLevel)
			} else {
				_ = os.Unsetenv("LOG_LEVEL")
			}
			if tt.logFormat != "" {
				_ = os.Setenv("LOG_FORMAT", tt.logFormat)
			} else {
				_ = os.Unsetenv("LOG_FORMAT")
			}

			err := Initialize()

			if tt.wantErr {
				if err == nil {
					t.Error("Initialize() expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
				return
			}

			if Logger == nil {
				t.Error("Logger should not be nil after initialization")
			}
			if Sugar == nil {
				t.Error("Sugar should not be nil after initialization")
			}

			Close()
		})
	}
}

func TestLoggingFunctions(t *testing.T) {
	// Set up test logger with observer
	core, recorded := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)
	Sugar = Logger.Sugar()

	defer func() {
		Close()
		Logger = nil
		Sugar = nil
	}()

	t.Run("LogUtteranceEvent", func(t *testing.T) {
		mockEvent := &mockUtteranceEvent{uuid: "test-uuid-123"}
		LogUtteranceEvent(mockEvent, "Test utterance event", zap.String("extra", "field"))

		logs := recorded.All()
		if len(logs) == 0 {
			t.Error("Expected log entry but got none")
			return
		}

		log := logs[len(logs)-1]
		if log.Message != "Test utterance event" {
			t.Errorf("Expected message 'Test utterance event', got %q", log.Message)
		}

		hasComponent := false
		hasEventUUID := false
		hasExtra := false
		for _, field := range log.Context {
			switch field.Key {
			case "component":
				if field.String != "speech_pipeline" {
					t.Errorf("Expected component 'speech_pipeline', got %q", field.String)
				}
				hasComponent = true
			case "event_uuid":
				if field.String != "test-uuid-123" {
					t.Errorf("Expected event_uuid 'test-uuid-123', got %q", field.String)
				}
				hasEventUUID = true
			case "extra":
				hasExtra = true
			}
		}

		if !hasComponent {
			t.Error("Missing component field")
		}
		if !hasEventUUID {
			t.Error("Missing event_uuid field")
		}
		if !hasExtra {
			t.Error("Missing extra field")
		}
	})

	t.Run("LogCaptureStage", func(t *testing.T) {
		LogCaptureStage("session-123", "finalize", zap.Int("duration_ms", 500))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Message != "Audio capture" {
			t.Errorf("Expected message 'Audio capture', got %q", log.Message)
		}

		fields := make(map[string]interface{})
		for _, field := range log.Context {
			switch field.Type {
			case zapcore.StringType:
				fields[field.Key] = field.String
			case zapcore.Int64Type:
				fields[field.Key] = field.Integer
			}
		}

		if fields["component"] != "audio_capture" {
			t.Errorf("Expected component 'audio_capture', got %v", fields["component"])
		}
		if fields["session_id"] != "session-123" {
			t.Errorf("Expected session_id 'session-123', got %v", fields["session_id"])
		}
		if fields["stage"] != "finalize" {
			t.Errorf("Expected stage 'finalize', got %v", fields["stage"])
		}
		if fields["duration_ms"] != int64(500) {
			t.Errorf("Expected duration_ms 500, got %v", fields["duration_ms"])
		}
	})

	t.Run("LogDispatch", func(t *testing.T) {
		LogDispatch("hausvox.intents.classified", "command", zap.String("event_uuid", "msg-456"))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Message != "Intent dispatch" {
			t.Errorf("Expected message 'Intent dispatch', got %q", log.Message)
		}

		hasComponent := false
		hasSubject := false
		hasKind := false
		for _, field := range log.Context {
			switch field.Key {
			case "component":
				if field.String != "dispatch" {
					t.Errorf("Expected component 'dispatch', got %q", field.String)
				}
				hasComponent = true
			case "subject":
				if field.String != "hausvox.intents.classified" {
					t.Errorf("Expected subject 'hausvox.intents.classified', got %q", field.String)
				}
				hasSubject = true
			case "intent_kind":
				if field.String != "command" {
					t.Errorf("Expected intent_kind 'command', got %q", field.String)
				}
				hasKind = true
			}
		}

		if !hasComponent || !hasSubject || !hasKind {
			t.Error("Missing required dispatch fields")
		}
	})

	t.Run("LogValidation", func(t *testing.T) {
		LogValidation("heuristic_bypass", zap.Float64("confidence", 0.95))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Message != "Validation" {
			t.Errorf("Expected message 'Validation', got %q", log.Message)
		}

		hasPath := false
		for _, field := range log.Context {
			if field.Key == "path" && field.String == "heuristic_bypass" {
				hasPath = true
			}
		}
		if !hasPath {
			t.Error("Missing path field")
		}
	})

	t.Run("LogDatabaseOperation", func(t *testing.T) {
		LogDatabaseOperation("INSERT", "utterance_events", zap.Int("affected_rows", 1))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Message != "Database operation" {
			t.Errorf("Expected message 'Database operation', got %q", log.Message)
		}

		fields := make(map[string]interface{})
		for _, field := range log.Context {
			if field.Type == zapcore.StringType {
				fields[field.Key] = field.String
			}
		}

		if fields["component"] != "database" {
			t.Errorf("Expected component 'database', got %v", fields["component"])
		}
		if fields["operation"] != "INSERT" {
			t.Errorf("Expected operation 'INSERT', got %v", fields["operation"])
		}
		if fields["table"] != "utterance_events" {
			t.Errorf("Expected table 'utterance_events', got %v", fields["table"])
		}
	})

	t.Run("LogError", func(t *testing.T) {
		testErr := errors.New("test error")
		LogError(testErr, "Something went wrong", zap.String("context", "test"))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Level != zapcore.ErrorLevel {
			t.Errorf("Expected error level, got %v", log.Level)
		}
		if log.Message != "Something went wrong" {
			t.Errorf("Expected message 'Something went wrong', got %q", log.Message)
		}
	})

	t.Run("LogWarn", func(t *testing.T) {
		LogWarn("Warning message", zap.String("warning_type", "deprecation"))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Level != zapcore.WarnLevel {
			t.Errorf("Expected warn level, got %v", log.Level)
		}
	})

	t.Run("LogTTSOperation", func(t *testing.T) {
		LogTTSOperation("synthesize", zap.String("voice", "af_bella"), zap.Int("text_length", 50))

		logs := recorded.All()
		log := logs[len(logs)-1]
		if log.Message != "TTS operation" {
			t.Errorf("Expected message 'TTS operation', got %q", log.Message)
		}
	})
}

func TestLoggingFunctions_NilLogger(t *testing.T) {
	originalLogger := Logger
	originalSugar := Sugar
	defer func() {
		Logger = originalLogger
		Sugar = originalSugar
	}()

	Logger = nil
	Sugar = nil

	// These should not panic when Logger is nil
	t.Run("Functions with nil logger", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Function panicked with nil logger: %v", r)
			}
		}()

		LogUtteranceEvent(nil, "test")
		LogCaptureStage("session", "stage")
		LogValidation("path")
		LogDispatch("subject", "kind")
		LogDatabaseOperation("op", "table")
		LogError(errors.New("test"), "message")
		LogWarn("warning")
		LogTTSOperation("operation")
		Sync()
	})
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "Environment variable set",
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			envValue:     "env_value",
			expected:     "env_value",
		},
		{
			name:         "Environment variable not set",
			key:          "TEST_ENV_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				_ = os.Setenv(tt.key, tt.envValue)
				defer func() { _ = os.Unsetenv(tt.key) }()
			} else {
				_ = os.Unsetenv(tt.key)
			}

			result := getEnvOrDefault(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvOrDefault(%q, %q) = %q, want %q", tt.key, tt.defaultValue, result, tt.expected)
			}
		})
	}
}

// Mock utterance event for testing
type mockUtteranceEvent struct {
	uuid string
}

func (m *mockUtteranceEvent) GetUUID() string {
	return m.uuid
}
