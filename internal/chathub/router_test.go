package chathub_test

import (
	"context"
	"testing"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_PrefersLiveClient(t *testing.T) {
	ctx := context.Background()
	fallback := newRecordingTransport()
	router := chathub.NewRouter(fallback, zap.NewNop())
	client := newFakeClient(-5, 4)
	router.Register(client)

	require.NoError(t, router.Deliver(ctx, -5, models.TextPayload("hi")))
	require.NoError(t, router.Notify(ctx, -5, "searching"))
	require.NoError(t, router.Notify(ctx, 42, "to telegram"))

	frame := <-client.send
	assert.Equal(t, chathub.FrameMessage, frame.Type)
	require.NotNil(t, frame.Payload)
	assert.Equal(t, "hi", frame.Payload.Text)
	frame = <-client.send
	assert.Equal(t, chathub.Frame{Type: chathub.FrameNotice, Text: "searching"}, frame)

	assert.Equal(t, []string{"to telegram"}, fallback.noticesFor(42))
	assert.Empty(t, fallback.noticesFor(-5))
}

func TestRouter_FullBufferIsDeliveryFailure(t *testing.T) {
	router := chathub.NewRouter(nil, zap.NewNop())
	router.Register(newFakeClient(-1, 1))
	require.NoError(t, router.Notify(context.Background(), -1, "one"))

	err := router.Notify(context.Background(), -1, "two")

	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
}

func TestRouter_NoRoute(t *testing.T) {
	router := chathub.NewRouter(nil, zap.NewNop())

	err := router.Deliver(context.Background(), 3, models.TextPayload("x"))

	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
}

func TestRouter_RegisterReplacesAndUnregister(t *testing.T) {
	router := chathub.NewRouter(nil, zap.NewNop())
	first, second := newFakeClient(-1, 1), newFakeClient(-1, 1)

	router.Register(first)
	router.Register(second)

	assert.True(t, first.isClosed())
	assert.Equal(t, 1, router.Connected())
	assert.False(t, router.Unregister(first), "a replaced client must not detach its successor")
	assert.True(t, router.Unregister(second))
	assert.True(t, second.isClosed())
	assert.Equal(t, 0, router.Connected())
}
