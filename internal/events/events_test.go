// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/plantedfoods/discovery-engine/internal/config"
)

func TestNewEventMarshalsPayload(t *testing.T) {
	event, err := New(TopicSyncExecuted, map[string]int{"added": 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if event.Topic != TopicSyncExecuted {
		t.Errorf("topic = %s, want %s", event.Topic, TopicSyncExecuted)
	}
	var decoded map[string]int
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded["added"] != 3 {
		t.Errorf("payload.added = %d, want 3", decoded["added"])
	}
}

func TestNoopPublisherDiscardsEvents(t *testing.T) {
	var pub Publisher = NoopPublisher{}
	event, err := New(TopicDiscoveryCompleted, struct{}{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Errorf("publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestWebhookNotifierNilURLIsNoop(t *testing.T) {
	notifier := NewWebhookNotifier("")
	if notifier != nil {
		t.Fatalf("expected nil notifier for empty url")
	}
	event, err := New(TopicSyncExecuted, struct{}{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	notifier.Notify(context.Background(), event) // must not panic on nil receiver
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		if r.Header.Get("X-Event-Topic") != TopicSyncExecuted {
			t.Errorf("missing topic header")
		}
		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL)
	event, err := New(TopicSyncExecuted, map[string]int{"added": 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	notifier.Notify(context.Background(), event)

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want 1", received)
	}
}

func TestWebhookNotifierRecordsFailureOnNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL)
	event, err := New(TopicSyncExecuted, struct{}{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	notifier.Notify(context.Background(), event) // must not panic or return an error on failure
}

func TestBusEmitUsesNoopPublisherWhenDisabled(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{Enabled: false}, "")
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer bus.Close()

	if err := bus.Emit(context.Background(), TopicDiscoveryCompleted, map[string]int{"queries": 5}); err != nil {
		t.Errorf("emit: %v", err)
	}
}

func TestBusEmitNotifiesWebhookOnSyncExecuted(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus, err := NewBus(config.EventsConfig{Enabled: false}, srv.URL)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer bus.Close()

	if err := bus.Emit(context.Background(), TopicSyncExecuted, map[string]int{"added": 2}); err != nil {
		t.Errorf("emit: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("webhook received = %d, want 1", received)
	}
}

func TestBusEmitDoesNotNotifyWebhookForOtherTopics(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus, err := NewBus(config.EventsConfig{Enabled: false}, srv.URL)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer bus.Close()

	if err := bus.Emit(context.Background(), TopicExtractionCompleted, struct{}{}); err != nil {
		t.Errorf("emit: %v", err)
	}
	if atomic.LoadInt32(&received) != 0 {
		t.Errorf("webhook received = %d, want 0 for non-sync topic", received)
	}
}
