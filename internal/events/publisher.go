// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
)

// Publisher publishes run-report events to the internal bus. A nil
// *Publisher is never constructed directly; NoopPublisher satisfies the
// interface when events.Config.Enabled is false, matching the teacher's
// optional-publisher pattern (internal/sync/event_publisher.go) rather
// than forcing every caller to branch on a feature flag.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NATSPublisher wraps a Watermill NATS JetStream publisher with the
// teacher's circuit-breaker protection (internal/eventprocessor/publisher.go).
type NATSPublisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	mu        sync.RWMutex
	closed    bool
}

// NewNATSPublisher dials cfg.NATSURL and returns a publisher bound to
// cfg.StreamName. JetStream message-id tracking is enabled so a
// redelivered event is deduplicated by NATS rather than the subscriber.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	logger := watermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("events: NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("events: NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("events: create publisher: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "events-publisher",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &NATSPublisher{
		publisher: pub,
		breaker:   gobreaker.NewCircuitBreaker[interface{}](settings),
	}, nil
}

// Publish sends event on its topic, recording metrics.EventsPublished
// on success.
func (p *NATSPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("events: publisher is closed")
	}
	p.mu.RUnlock()

	msg := message.NewMessage(event.ID, event.Payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.ID)
	msg.Metadata.Set("topic", event.Topic)

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(event.Topic, msg)
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Topic, err)
	}
	metrics.RecordEventPublished(event.Topic)
	return nil
}

// Close shuts the underlying Watermill publisher down.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

func watermillLogger() watermill.LoggerAdapter {
	return watermill.NewStdLogger(false, false)
}

// NoopPublisher discards every event. Used when events.Config.Enabled
// is false so callers never need to nil-check a Publisher.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *Event) error { return nil }
func (NoopPublisher) Close() error                          { return nil }
