package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiurbis/portal/internal/identity"
)

func TestEventHubPublishAndUnsubscribe(t *testing.T) {
	hub := NewEventHub()
	var got []Event
	cancel := hub.Subscribe(func(_ context.Context, e Event) { got = append(got, e) })

	subject := uuid.New()
	evt := hub.Publish(context.Background(), EventSignedIn, subject, identity.KindAdmin)
	require.Len(t, got, 1)
	assert.Equal(t, evt, got[0])
	_, err := ulid.Parse(evt.ID)
	assert.NoError(t, err)

	cancel()
	hub.Publish(context.Background(), EventSignedOut, subject, identity.KindAdmin)
	assert.Len(t, got, 1)
}

func TestNilHubDoesNotPanic(t *testing.T) {
	var hub *EventHub
	evt := hub.Publish(context.Background(), EventSignedOut, uuid.New(), "")
	assert.Equal(t, EventSignedOut, evt.Type)
}
