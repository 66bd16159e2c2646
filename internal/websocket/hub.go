package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"subtrack-be/internal/dto"
	"subtrack-be/internal/pkg/logger"
)

// feedChannel is the Redis pub/sub channel used to relay feed events between
// instances so a client connected to any replica sees the same feed.
const feedChannel = "feed_events"

type Hub struct {
	// Registered clients map: UserID -> list of clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil in single-instance mode
	rdb *redis.Client

	// instanceId marks this replica's own relay publishes so they are not
	// re-delivered to clients that already received them directly.
	instanceId string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

// relayEnvelope is the wire shape on the Redis feed channel.
type relayEnvelope struct {
	OriginInstanceId string          `json:"origin_instance_id"`
	TargetUserId     string          `json:"target_user_id"`
	Message          json.RawMessage `json:"message"`
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.relayFromRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a feed event to every connected client on every instance.
func (h *Hub) Broadcast(event dto.FeedEvent) {
	data := encodeFeedEvent(event)

	h.mu.RLock()
	for _, clients := range h.clients {
		for _, client := range clients {
			h.push(client, data)
		}
	}
	h.mu.RUnlock()

	h.relayToRedis("*", data)
}

// Send delivers a feed event to one user's connections, across instances.
func (h *Hub) Send(userID uuid.UUID, event dto.FeedEvent) {
	data := encodeFeedEvent(event)

	h.mu.RLock()
	clients := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range clients {
		h.push(client, data)
	}

	h.relayToRedis(userID.String(), data)
}

// push writes without blocking; a client that cannot keep up is dropped.
// Only the unregister handler closes Send, so a client dropped by several
// concurrent pushes is still closed exactly once. The handoff runs in its own
// goroutine because push is called under the read lock the unregister handler
// needs.
func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"user_id": client.UserID,
		})
		go func() { h.unregister <- client }()
	}
}

func (h *Hub) relayToRedis(target string, data []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(relayEnvelope{
		OriginInstanceId: h.instanceId,
		TargetUserId:     target,
		Message:          data,
	})
	if err := h.rdb.Publish(context.Background(), feedChannel, payload).Err(); err != nil {
		h.logger.Warn("hub", "Failed to relay feed event to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// relayFromRedis delivers events published by other instances to any clients
// held locally. Every instance subscribes to the same channel and filters by
// origin and target on arrival.
func (h *Hub) relayFromRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, feedChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env relayEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Warn("hub", "Malformed relay payload", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.deliverRelay(env)
	}
}

// deliverRelay fans a relayed envelope out to local clients. Our own
// publishes come back on the channel too; those clients were already served
// directly, so they are skipped here.
func (h *Hub) deliverRelay(env relayEnvelope) {
	if env.OriginInstanceId == h.instanceId {
		return
	}

	if env.TargetUserId == "*" {
		h.mu.RLock()
		for _, clients := range h.clients {
			for _, client := range clients {
				h.push(client, env.Message)
			}
		}
		h.mu.RUnlock()
		return
	}

	uid, err := uuid.Parse(env.TargetUserId)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := h.clients[uid]
	h.mu.RUnlock()

	for _, client := range clients {
		h.push(client, env.Message)
	}
}

func encodeFeedEvent(event dto.FeedEvent) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "activity",
		"data": event,
	})
	return data
}
