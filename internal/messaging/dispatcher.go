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

// Package messaging publishes classified intents to the home-automation
// bus over NATS.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hausvox/hausvox-hub/internal/intent"
	"github.com/hausvox/hausvox-hub/internal/logging"
)

// NATS subjects
const (
	SubjectIntentsClassified = "hausvox.intents.classified"
	SubjectSystemEvents      = "hausvox.system.events"
)

// IntentMessage is the wire format consumed by downstream automation
// services
type IntentMessage struct {
	Kind         string            `json:"kind"`
	Confidence   float64           `json:"confidence"`
	OriginalText string            `json:"original_text"`
	Summary      string            `json:"summary,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	Slots        map[string]string `json:"slots,omitempty"`
	TerminalID   string            `json:"terminal_id"`
	SessionID    string            `json:"session_id"`
	EventUUID    string            `json:"event_uuid,omitempty"`
	Timestamp    int64             `json:"timestamp"`
}

// IntentDispatcher hands accepted intents to the rest of the system
type IntentDispatcher interface {
	Dispatch(record *intent.Record, terminalID, sessionID string) error
}

// NATSDispatcher publishes intents over a NATS connection
type NATSDispatcher struct {
	conn    *nats.Conn
	url     string
	subject string
}

// NewNATSDispatcher creates a dispatcher for the given NATS URL. The
// connection is not opened until Connect.
func NewNATSDispatcher(url, subject string) *NATSDispatcher {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = SubjectIntentsClassified
	}
	return &NATSDispatcher{url: url, subject: subject}
}

// Connect establishes the NATS connection with indefinite reconnects
func (d *NATSDispatcher) Connect() error {
	opts := []nats.Option{
		nats.Name("hausvox-hub"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Sugar.Infow("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logging.Sugar.Infow("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(d.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	d.conn = conn
	logging.Sugar.Infow("Connected to NATS server", "url", conn.ConnectedUrl())
	return nil
}

// Dispatch publishes one classified intent
func (d *NATSDispatcher) Dispatch(record *intent.Record, terminalID, sessionID string) error {
	if d.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	if record == nil {
		return fmt.Errorf("intent record cannot be nil")
	}

	msg := IntentMessage{
		Kind:         string(record.Kind),
		Confidence:   record.Confidence,
		OriginalText: record.OriginalText,
		Summary:      record.Summary,
		Keywords:     record.Keywords,
		Slots:        record.Slots,
		TerminalID:   terminalID,
		SessionID:    sessionID,
		Timestamp:    time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal intent message: %w", err)
	}

	if err := d.conn.Publish(d.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", d.subject, err)
	}

	logging.LogDispatch(d.subject, msg.Kind,
		zap.String("terminal_id", terminalID),
		zap.Float64("confidence", record.Confidence))
	return nil
}

// Subscribe registers a handler for classified intents. Used by
// in-process consumers and tests.
func (d *NATSDispatcher) Subscribe(handler func(*IntentMessage)) (*nats.Subscription, error) {
	if d.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return d.conn.Subscribe(d.subject, func(msg *nats.Msg) {
		var intentMsg IntentMessage
		if err := json.Unmarshal(msg.Data, &intentMsg); err != nil {
			logging.LogError(err, "Failed to unmarshal intent message",
				zap.String("subject", msg.Subject))
			return
		}
		handler(&intentMsg)
	})
}

// Close drains and closes the connection
func (d *NATSDispatcher) Close() {
	if d.conn != nil {
		if err := d.conn.Drain(); err != nil {
			logging.LogError(err, "Failed to drain NATS connection")
		}
		d.conn = nil
	}
}

// Connected reports whether the dispatcher currently holds a live
// connection
func (d *NATSDispatcher) Connected() bool {
	return d.conn != nil && d.conn.IsConnected()
}
