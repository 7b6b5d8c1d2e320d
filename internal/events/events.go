// Package events fans order events out to the realtime websocket hub and,
// when configured, to a Kafka topic for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bakehouse/api/internal/ws"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is one change to an order (or a batch of orders, for dispatch runs).
type Event struct {
	Type string `json:"type"`
	// Key orders the event on the Kafka partition; usually the order ID.
	Key uuid.UUID `json:"key"`
	// DistributorID routes the event to the distributor's room as well as
	// the dashboard. uuid.Nil means dashboard only.
	DistributorID uuid.UUID `json:"-"`
	Payload       any       `json:"payload"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Publisher delivers every event to all sinks. A failing sink is logged and
// never fails the caller: the database write already happened.
type Publisher struct {
	sinks []Sink
}

func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

func (p *Publisher) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range p.sinks {
		if err := s.Send(ctx, e); err != nil {
			log.Error().Err(err).
				Str("sink", s.Name()).
				Str("type", e.Type).
				Str("key", e.Key.String()).
				Msg("publish event")
		}
	}
}

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(room string, event ws.Event)
}

// HubSink pushes events to websocket subscribers.
type HubSink struct {
	hub Broadcaster
}

func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Send(_ context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	msg := ws.Event{Type: e.Type, Payload: payload}
	s.hub.Broadcast(ws.DashboardRoom, msg)
	if e.DistributorID != uuid.Nil {
		s.hub.Broadcast(ws.DistributorRoom(e.DistributorID), msg)
	}
	return nil
}
