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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hausvox/hausvox-hub/internal/audio"
	"github.com/hausvox/hausvox-hub/internal/config"
	"github.com/hausvox/hausvox-hub/internal/feedback"
	"github.com/hausvox/hausvox-hub/internal/logging"
	"github.com/hausvox/hausvox-hub/internal/messaging"
	"github.com/hausvox/hausvox-hub/internal/orchestrator"
	"github.com/hausvox/hausvox-hub/internal/server"
	"github.com/hausvox/hausvox-hub/internal/storage"
	"github.com/hausvox/hausvox-hub/internal/stt"
	"github.com/hausvox/hausvox-hub/internal/tts"
	"github.com/hausvox/hausvox-hub/internal/validate"
)

func main() {
	// .env is optional, real deployments use environment variables
	_ = godotenv.Load()

	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Server.DBPath})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.LogError(err, "Failed to close database")
		}
	}()
	store := storage.NewUtteranceEventsStore(db)

	transcriber := stt.NewClient(cfg.STT.URL, cfg.STT.Language)
	transcriber.SetTimeout(cfg.STT.Timeout)

	classifier := validate.NewOllamaClassifier(cfg.Classifier.URL, cfg.Classifier.Model, cfg.Classifier.Timeout)
	engine := validate.NewEngine(classifier, store)

	// Spoken feedback degrades to silent status text when the TTS
	// service is unreachable at startup.
	var synthesizer tts.Synthesizer
	if cfg.TTS.Enabled {
		ttsClient, err := tts.NewClient(cfg.TTS)
		if err != nil {
			logging.LogError(err, "TTS unavailable, continuing without spoken feedback")
		} else {
			synthesizer = ttsClient
			defer ttsClient.Close()
		}
	}
	coordinator := feedback.NewCoordinator(synthesizer, cfg.TTS.Enabled)

	dispatcher := messaging.NewNATSDispatcher(cfg.NATS.URL, cfg.NATS.Subject)
	if err := dispatcher.Connect(); err != nil {
		logging.LogError(err, "NATS unavailable, intents will not be dispatched")
	}
	defer dispatcher.Close()

	microphone := audio.NewPushMicrophone()
	orch := orchestrator.New(orchestrator.Options{
		Microphone:  microphone,
		Transcriber: transcriber,
		Validator:   engine,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Pipeline:    cfg.Pipeline,
		Capture:     cfg.Capture,
		Language:    cfg.STT.Language,
	})

	srv := server.New(server.Options{
		Config:       cfg,
		Orchestrator: orch,
		Validator:    engine,
		Coordinator:  coordinator,
		Store:        store,
		Database:     db,
		Microphone:   microphone,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			logging.LogError(err, "Graceful shutdown failed")
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Server exited with error")
			log.Fatalf("Server failed: %v", err)
		}
	}
}
