package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/ws"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	room  string
	event ws.Event
}

type recordingHub struct {
	sent []broadcast
}

func (h *recordingHub) Broadcast(room string, event ws.Event) {
	h.sent = append(h.sent, broadcast{room: room, event: event})
}

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	ctxErr error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.ctxErr = ctx.Err()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// stalledWriter never answers, like a broker that accepts the connection
// and then goes quiet.
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

type failingSink struct{ calls int }

func (s *failingSink) Name() string { return "failing" }
func (s *failingSink) Send(context.Context, Event) error {
	s.calls++
	return errors.New("boom")
}

func TestHubSink_DashboardOnly(t *testing.T) {
	hub := &recordingHub{}
	sink := NewHubSink(hub)

	err := sink.Send(context.Background(), Event{
		Type:    enum.EventOrderCreated,
		Key:     uuid.New(),
		Payload: map[string]string{"order_number": "ORD-20260302-001"},
	})
	require.NoError(t, err)
	require.Len(t, hub.sent, 1)
	assert.Equal(t, ws.DashboardRoom, hub.sent[0].room)
	assert.Equal(t, enum.EventOrderCreated, hub.sent[0].event.Type)
	assert.JSONEq(t, `{"order_number":"ORD-20260302-001"}`, string(hub.sent[0].event.Payload))
}

func TestHubSink_AlsoRoutesToDistributor(t *testing.T) {
	hub := &recordingHub{}
	distributorID := uuid.New()

	err := NewHubSink(hub).Send(context.Background(), Event{
		Type:          enum.EventOrderStatusChanged,
		Key:           uuid.New(),
		DistributorID: distributorID,
		Payload:       map[string]string{"status": "confirmed"},
	})
	require.NoError(t, err)
	require.Len(t, hub.sent, 2)
	assert.Equal(t, ws.DashboardRoom, hub.sent[0].room)
	assert.Equal(t, ws.DistributorRoom(distributorID), hub.sent[1].room)
}

func TestHubSink_UnmarshalablePayload(t *testing.T) {
	hub := &recordingHub{}
	err := NewHubSink(hub).Send(context.Background(), Event{Payload: make(chan int)})
	require.Error(t, err)
	assert.Empty(t, hub.sent)
}

func TestKafkaSink_KeyedJSONMessage(t *testing.T) {
	w := &recordingWriter{}
	sink := NewKafkaSink(w)
	orderID := uuid.New()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	err := sink.Send(context.Background(), Event{
		Type:          enum.EventOrderDeleted,
		Key:           orderID,
		DistributorID: uuid.New(),
		Payload:       map[string]string{"id": orderID.String()},
		OccurredAt:    at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, orderID.String(), string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, enum.EventOrderDeleted, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, enum.EventOrderDeleted, decoded["type"])
	assert.Equal(t, orderID.String(), decoded["key"])
	assert.NotContains(t, decoded, "DistributorID")

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_SurvivesCancelledRequest(t *testing.T) {
	w := &recordingWriter{}
	sink := NewKafkaSink(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sink.Send(ctx, Event{Type: enum.EventOrderCreated, Key: uuid.New()}))
	require.Len(t, w.msgs, 1)
	assert.NoError(t, w.ctxErr)
}

func TestKafkaSink_StalledBrokerTimesOut(t *testing.T) {
	sink := NewKafkaSink(stalledWriter{})
	sink.timeout = 20 * time.Millisecond

	start := time.Now()
	err := sink.Send(context.Background(), Event{Type: enum.EventOrderCreated, Key: uuid.New()})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := NewKafkaSink(&recordingWriter{err: errors.New("broker down")})
	err := sink.Send(context.Background(), Event{Type: enum.EventOrderCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_FailingSinkDoesNotStopOthers(t *testing.T) {
	failing := &failingSink{}
	hub := &recordingHub{}
	w := &recordingWriter{}
	p := NewPublisher(failing, NewHubSink(hub), NewKafkaSink(w))

	p.Publish(context.Background(), Event{Type: enum.EventOrderUpdated, Key: uuid.New()})

	assert.Equal(t, 1, failing.calls)
	assert.Len(t, hub.sent, 1)
	require.Len(t, w.msgs, 1)
	assert.False(t, w.msgs[0].Time.IsZero(), "occurred_at is stamped when missing")
}

func TestPublisher_NoSinks(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPublisher().Publish(context.Background(), Event{Type: enum.EventOrderCreated})
	})
}
