// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package events is the discovery engine's internal event bus: run
// reports (discovery run completed, extraction run completed, sync
// executed) are published as events over Watermill/NATS JetStream, and
// an optional webhook subscriber forwards sync-execute completions to
// an operator-configured URL. Generalized from
// internal/eventprocessor's MediaEvent/Publisher shape and
// internal/sync/event_publisher.go's optional-publisher pattern.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event topic names, one per run-report kind this engine emits.
const (
	TopicDiscoveryCompleted  = "discovery.completed"
	TopicExtractionCompleted = "extraction.completed"
	TopicSyncExecuted        = "sync.executed"
)

// Event is the canonical envelope published to the internal bus. The
// run-report payload is kept as JSON rather than a package-specific
// struct so events doesn't import internal/discovery, internal/extraction,
// or internal/syncengine and invite an import cycle back into them.
type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New marshals payload and wraps it in an Event envelope for topic.
func New(topic string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal payload for %s: %w", topic, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}
