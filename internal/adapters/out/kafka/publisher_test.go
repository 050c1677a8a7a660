package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"freight/internal/adapters/out/kafka"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"

	skafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeWriter records messages written.
type fakeWriter struct {
	msgs   []skafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func createdEvent(t *testing.T) order.DomainEvent {
	t.Helper()
	pickup, _ := kernel.NewGeoPoint(41.88, -87.63)
	delivery, _ := kernel.NewGeoPoint(39.1, -84.51)
	route, err := kernel.NewRoute(pickup, delivery, "Chicago DC", "Cincinnati DC")
	require.NoError(t, err)
	cargo, err := order.NewCargo("pallets", false, false)
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mo, err := order.NewMasterOrder(kernel.NewUUID(), order.MasterOrderParams{
		ShipperID:   kernel.NewUUID(),
		Cargo:       cargo,
		TotalWeight: 500,
		TotalVolume: 30,
		Route:       route,
		Deadline:    at.Add(72 * time.Hour),
	}, at)
	require.NoError(t, err)

	events := mo.PullEvents()
	require.Len(t, events, 1)
	return events[0]
}

func TestEventPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := kafka.NewEventPublisherWithWriter(fw, zap.NewNop())
	event := createdEvent(t)

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, event.MasterOrderID().String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, order.EventMasterOrderCreated, string(msg.Headers[0].Value))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.Equal(t, order.EventMasterOrderCreated, envelope["type"])
	assert.Equal(t, event.MasterOrderID().String(), envelope["masterOrderId"])
	payload, ok := envelope["payload"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 500, payload["totalWeight"], 1e-9)

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestEventPublisher_NoEventsSkipsWrite(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	p := kafka.NewEventPublisherWithWriter(fw, zap.NewNop())

	assert.NoError(t, p.Publish(context.Background()))
}

func TestEventPublisher_WriteErrorIsReturned(t *testing.T) {
	broken := errors.New("broker down")
	p := kafka.NewEventPublisherWithWriter(&fakeWriter{err: broken}, zap.NewNop())

	assert.ErrorIs(t, p.Publish(context.Background(), createdEvent(t)), broken)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := kafka.NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), createdEvent(t)))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, order.EventMasterOrderCreated, logs.All()[0].ContextMap()["type"])
}
