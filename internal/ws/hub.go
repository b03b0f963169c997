package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

const redisChannel = "dinebuddies:events"

// Hub manages all WebSocket connections and event delivery. Events travel
// through Redis Pub/Sub so any instance can deliver to its local clients.
type Hub struct {
	// userID -> set of connections (one user can have multiple devices)
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client

	// Callback when a user's first connection opens or last one closes
	onStatusChange func(userID uuid.UUID, online bool)
}

func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, true)
		}
		h.publishToRedis(TargetedEvent{
			Event: model.WSEvent{
				Type:    model.WSEventOnline,
				Payload: model.OnlineEvent{UserID: client.UserID, IsOnline: true},
			},
		})
	}
	h.clients[client.UserID][client] = true
	log.Printf("✅ Client connected: %s (connections: %d)", client.UserID, len(h.clients[client.UserID]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	// The send path may have already dropped a slow consumer; only close
	// the channel once, but always finish the empty-set cleanup below.
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.send)
	}

	if len(clients) == 0 {
		delete(h.clients, client.UserID)
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
		h.publishToRedis(TargetedEvent{
			Event: model.WSEvent{
				Type:    model.WSEventOffline,
				Payload: model.OnlineEvent{UserID: client.UserID, IsOnline: false},
			},
		})
	}
	log.Printf("❌ Client disconnected: %s", client.UserID)
}

// SendToUser delivers an event to all of a user's connections, on any
// instance
func (h *Hub) SendToUser(userID uuid.UUID, event model.WSEvent) {
	h.publishToRedis(TargetedEvent{TargetUserID: userID, Event: event})
}

// SendToUsers delivers an event to multiple users
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event model.WSEvent) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

func (h *Hub) sendToLocalUser(userID uuid.UUID, event model.WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop the connection
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) broadcastToLocal(event model.WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling broadcast event: %v", err)
		return
	}
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(clients, client)
			}
		}
	}
}

// IsUserOnline checks if a user has any active connections on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// GetOnlineUserIDs returns all connected user IDs on this instance
func (h *Hub) GetOnlineUserIDs() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIDs = append(userIDs, userID)
	}
	return userIDs
}

// TargetedEvent wraps an event with an optional target user for Redis
// Pub/Sub. A zero target means broadcast.
type TargetedEvent struct {
	TargetUserID uuid.UUID     `json:"target_user_id,omitempty"`
	Event        model.WSEvent `json:"event"`
}

func (h *Hub) publishToRedis(data TargetedEvent) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling for Redis: %v", err)
		return
	}
	if err := h.rdb.Publish(context.Background(), redisChannel, jsonData).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var targeted TargetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &targeted); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			if targeted.TargetUserID != uuid.Nil {
				h.sendToLocalUser(targeted.TargetUserID, targeted.Event)
			} else {
				h.broadcastToLocal(targeted.Event)
			}
		}
	}
}
