package mykafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(nil, "user_events")
	require.Error(t, err)

	_, err = NewProducer([]string{"kafka:9092"}, "")
	require.Error(t, err)

	p, err := NewProducer([]string{"kafka:9092"}, "user_events")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{
		Type:     EventUserLoggedIn,
		UserID:   "user-1",
		Username: "alice01",
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("user-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventUserLoggedIn), msg.Headers[0].Value)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, EventUserLoggedIn, got.Type)
	assert.Equal(t, "alice01", got.Username)
	assert.True(t, at.Equal(got.At))
}

func TestProducer_PublishStampsTime(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventUserLoggedOut}))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.WithinDuration(t, time.Now(), got.At, time.Minute)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w}

	err := p.Publish(context.Background(), Event{Type: EventUserRegistered, UserID: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
