package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-be/internal/dto"
	"subtrack-be/internal/testutil"
)

func registerTestClient(t *testing.T, hub *Hub, buffer int) *Client {
	t.Helper()

	client := &Client{Hub: hub, UserID: uuid.New(), Send: make(chan []byte, buffer)}
	hub.register <- client

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[client.UserID]) == 1
	}, 2*time.Second, 5*time.Millisecond)

	return client
}

func TestHubDropsSlowClientWithoutPanic(t *testing.T) {
	hub := NewHub(nil, testutil.NopLogger{})
	go hub.Run()

	client := registerTestClient(t, hub, 1)

	// Fill the send buffer so every following push takes the drop path.
	client.Send <- []byte("backlog")

	hub.Broadcast(dto.FeedEvent{Type: "activity"})
	hub.Broadcast(dto.FeedEvent{Type: "activity"})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[client.UserID]
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	// Send is closed exactly once, by the unregister handler.
	assert.Equal(t, []byte("backlog"), <-client.Send)
	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubSendReachesOnlyTargetUser(t *testing.T) {
	hub := NewHub(nil, testutil.NopLogger{})
	go hub.Run()

	target := registerTestClient(t, hub, 4)
	other := registerTestClient(t, hub, 4)

	hub.Send(target.UserID, dto.FeedEvent{Type: "PAYMENT_SUCCEEDED"})

	select {
	case data := <-target.Send:
		var frame struct {
			Type string        `json:"type"`
			Data dto.FeedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, "activity", frame.Type)
		assert.Equal(t, "PAYMENT_SUCCEEDED", frame.Data.Type)
	case <-time.After(time.Second):
		t.Fatal("expected the targeted client to receive the event")
	}

	assert.Empty(t, other.Send)
}

func TestDeliverRelaySkipsOwnPublishes(t *testing.T) {
	hub := NewHub(nil, testutil.NopLogger{})
	go hub.Run()

	client := registerTestClient(t, hub, 4)

	// An echo of our own publish: already delivered directly, must not be
	// pushed again.
	hub.deliverRelay(relayEnvelope{
		OriginInstanceId: hub.instanceId,
		TargetUserId:     "*",
		Message:          []byte(`{"type":"activity"}`),
	})
	assert.Empty(t, client.Send)

	// The same envelope from another replica is fanned out.
	hub.deliverRelay(relayEnvelope{
		OriginInstanceId: uuid.NewString(),
		TargetUserId:     "*",
		Message:          []byte(`{"type":"activity"}`),
	})
	require.Len(t, client.Send, 1)

	// Targeted relay from another replica.
	hub.deliverRelay(relayEnvelope{
		OriginInstanceId: uuid.NewString(),
		TargetUserId:     client.UserID.String(),
		Message:          []byte(`{"type":"activity"}`),
	})
	require.Len(t, client.Send, 2)
}
