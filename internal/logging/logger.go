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
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// Initialize sets up the global logger based on environment variables
func Initialize() error {
	config := LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}

	return InitializeWithConfig(config)
}

// InitializeWithConfig sets up the global logger with provided configuration
func InitializeWithConfig(config LogConfig) error {
	var zapConfig zap.Config

	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		// Default to info level if parsing fails
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1), // Skip the wrapper functions
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Logger = logger
	Sugar = logger.Sugar()

	Sugar.Infof("🚀 Structured logging initialized (level: %s, format: %s)",
		config.Level, config.Format)

	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		if err := Logger.Sync(); err != nil {
			// Sync can fail on some systems, especially in tests; not critical
			_ = err
		}
	}
}

// Close cleans up the logger
func Close() {
	Sync()
}

// Domain helpers. Each one stamps a component field so log queries can
// slice by pipeline stage. All are safe to call before Initialize.

// emit writes an info entry with base fields followed by caller fields.
func emit(message string, base []zap.Field, fields []zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Info(message, append(base, fields...)...)
}

// LogUtteranceEvent logs one utterance cycle event with structured fields
func LogUtteranceEvent(event interface{}, message string, fields ...zap.Field) {
	base := []zap.Field{zap.String("component", "speech_pipeline")}
	if v, ok := event.(interface{ GetUUID() string }); ok {
		if uuid := v.GetUUID(); uuid != "" {
			base = append(base, zap.String("event_uuid", uuid))
		}
	}
	emit(message, base, fields)
}

// LogCaptureStage logs audio capture lifecycle transitions
func LogCaptureStage(sessionID, stage string, fields ...zap.Field) {
	emit("Audio capture", []zap.Field{
		zap.String("component", "audio_capture"),
		zap.String("session_id", sessionID),
		zap.String("stage", stage),
	}, fields)
}

// LogValidation logs which decision path the validation engine took
func LogValidation(path string, fields ...zap.Field) {
	emit("Validation", []zap.Field{
		zap.String("component", "validation"),
		zap.String("path", path),
	}, fields)
}

// LogDispatch logs intent publication to the event bus
func LogDispatch(subject, kind string, fields ...zap.Field) {
	emit("Intent dispatch", []zap.Field{
		zap.String("component", "dispatch"),
		zap.String("subject", subject),
		zap.String("intent_kind", kind),
	}, fields)
}

// LogDatabaseOperation logs telemetry store operations
func LogDatabaseOperation(operation, table string, fields ...zap.Field) {
	emit("Database operation", []zap.Field{
		zap.String("component", "database"),
		zap.String("operation", operation),
		zap.String("table", table),
	}, fields)
}

// LogTTSOperation logs speech synthesis operations
func LogTTSOperation(operation string, fields ...zap.Field) {
	emit("TTS operation", []zap.Field{
		zap.String("component", "tts"),
		zap.String("operation", operation),
	}, fields)
}

// LogError logs an error with context fields
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Error(message, append([]zap.Field{zap.Error(err)}, fields...)...)
}

// LogWarn logs a warning with context fields
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Warn(message, fields...)
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
