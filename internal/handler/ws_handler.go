package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/service"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
	syncpkg "github.com/yaso2000/dinebuddies-sub000/internal/sync"
	"github.com/yaso2000/dinebuddies-sub000/internal/ws"
	"github.com/yaso2000/dinebuddies-sub000/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub         *ws.Hub
	chatService *service.ChatService
	store       store.Store
	jwtManager  *auth.JWTManager
}

func NewWSHandler(hub *ws.Hub, chatService *service.ChatService, st store.Store, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{
		hub:         hub,
		chatService: chatService,
		store:       st,
		jwtManager:  jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Clients connect with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// WebSocket clients can't set the Authorization header
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Name)
	h.hub.Register(client)

	log.Printf("✅ WS Connected: UserID=%s Name=%s", claims.UserID, claims.Name)

	// Each connection carries its own sync session: the inbox registry keeps
	// a live snapshot of the user's conversations and replays every change to
	// this client as a conversation_updated event.
	session, err := syncpkg.NewSession(context.Background(), h.store, claims.UserID, func(snapshot []model.Conversation) {
		client.Send(model.WSEvent{
			Type:    model.WSEventConversationUpdated,
			Payload: snapshot,
		})
	})
	if err != nil {
		log.Printf("⚠️  sync session failed for %s: %v", claims.UserID, err)
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleWSMessage)
		if session != nil {
			session.Close()
		}
	}()
}

func (h *WSHandler) handleWSMessage(client *ws.Client, event model.WSEvent) {
	switch event.Type {
	case model.WSEventNewMessage:
		h.handleNewMessage(client, event)

	case model.WSEventTyping, model.WSEventStopTyping:
		h.handleTyping(client, event)

	case model.WSEventMessageRead:
		h.handleMessageRead(client, event)

	default:
		log.Printf("Unknown WebSocket event type: %s", event.Type)
	}
}

// handleNewMessage persists a chat message sent over the socket and fans it
// out to every member
func (h *WSHandler) handleNewMessage(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID         `json:"conversation_id"`
		Content        string            `json:"content"`
		Type           model.MessageType `json:"type"`
		MediaURL       string            `json:"media_url"`
		FileName       string            `json:"file_name"`
		FileSize       int64             `json:"file_size"`
		Duration       float64           `json:"duration"`
		ReplyToID      *uuid.UUID        `json:"reply_to_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		log.Printf("Error parsing new_message payload: %v", err)
		return
	}

	msg, err := h.chatService.SendMessage(context.Background(), client.UserID, payload.ConversationID, model.SendMessageRequest{
		Type:      payload.Type,
		Content:   payload.Content,
		MediaURL:  payload.MediaURL,
		FileName:  payload.FileName,
		FileSize:  payload.FileSize,
		Duration:  payload.Duration,
		ReplyToID: payload.ReplyToID,
	})
	if err != nil {
		log.Printf("Error saving message: %v", err)
		return
	}

	memberIDs, err := h.chatService.GetConversationMemberIDs(payload.ConversationID)
	if err != nil {
		log.Printf("Error getting member IDs: %v", err)
		return
	}

	h.hub.SendToUsers(memberIDs, model.WSEvent{
		Type:    model.WSEventNewMessage,
		Payload: msg,
	})
}

// handleTyping relays typing indicators to the other members. Nothing is
// persisted.
func (h *WSHandler) handleTyping(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	memberIDs, _ := h.chatService.GetConversationMemberIDs(payload.ConversationID)

	relayed := model.WSEvent{
		Type: event.Type,
		Payload: model.TypingEvent{
			ConversationID: payload.ConversationID,
			UserID:         client.UserID,
			Name:           client.Name,
		},
	}

	for _, memberID := range memberIDs {
		if memberID != client.UserID {
			h.hub.SendToUser(memberID, relayed)
		}
	}
}

// handleMessageRead applies the read policy and notifies the other members
func (h *WSHandler) handleMessageRead(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	if err := h.chatService.MarkRead(context.Background(), client.UserID, payload.ConversationID); err != nil {
		log.Printf("Error marking read: %v", err)
		return
	}

	memberIDs, _ := h.chatService.GetConversationMemberIDs(payload.ConversationID)

	readEvent := model.WSEvent{
		Type: model.WSEventMessageRead,
		Payload: model.MessageReadEvent{
			ConversationID: payload.ConversationID,
			UserID:         client.UserID,
			ReadAt:         time.Now(),
		},
	}

	for _, memberID := range memberIDs {
		if memberID != client.UserID {
			h.hub.SendToUser(memberID, readEvent)
		}
	}
}
