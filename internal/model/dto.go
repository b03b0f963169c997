package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Auth DTOs ==========

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdatePreferencesRequest struct {
	PushEnabled *bool     `json:"push_enabled"`
	PushTypes   PushTypes `json:"push_types"`
	DNDEnabled  *bool     `json:"dnd_enabled"`
	DNDStart    string    `json:"dnd_start" binding:"omitempty,len=5"`
	DNDEnd      string    `json:"dnd_end" binding:"omitempty,len=5"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

// ========== Conversation DTOs ==========

type CreateGroupRequest struct {
	Name         string      `json:"name" binding:"required,max=100"`
	Avatar       string      `json:"avatar" binding:"max=500"`
	MemberIDs    []uuid.UUID `json:"member_ids" binding:"required,min=1"`
	EventStartAt time.Time   `json:"event_start_at" binding:"required"`
}

type CreateCommunityRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Avatar string `json:"avatar" binding:"max=500"`
}

type DirectMessageRequest struct {
	ReceiverID uuid.UUID          `json:"receiver_id" binding:"required"`
	Message    SendMessageRequest `json:"message" binding:"required"`
}

type ConversationResponse struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}

type DirectConversationResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Message      *Message             `json:"message,omitempty"`
	IsNew        bool                 `json:"is_new"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	MediaURL  string      `json:"media_url,omitempty"`
	FileName  string      `json:"file_name,omitempty"`
	FileSize  int64       `json:"file_size,omitempty"`
	Duration  float64     `json:"duration,omitempty"`
	ReplyToID *uuid.UUID  `json:"reply_to_id,omitempty"`
}

type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

type MessageListRequest struct {
	Before string `form:"before"` // cursor for pagination (message ID)
	Limit  int    `form:"limit,default=50"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventNewMessage          = "new_message"
	WSEventMessageReaction     = "message_reaction"
	WSEventConversationUpdated = "conversation_updated"
	WSEventConversationExpired = "conversation_expired"
	WSEventMessageRead         = "message_read"
	WSEventTyping              = "typing"
	WSEventStopTyping          = "stop_typing"
	WSEventOnline              = "online"
	WSEventOffline             = "offline"
)

type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type MessageReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type ReactionEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	UserID         uuid.UUID `json:"user_id"`
	Emoji          string    `json:"emoji"` // empty when the reaction was removed
}

type ConversationExpiredEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// ========== Notification DTOs ==========

// Notification type keys checked against PushTypes
const (
	NotificationTypeMessage     = "message"
	NotificationTypeGroupInvite = "group_invite"
	NotificationTypeReaction    = "reaction"
)

// NotificationIntent is what the dispatcher hands to the push service after
// suppression rules pass
type NotificationIntent struct {
	UserID         uuid.UUID         `json:"user_id"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	FromUserID     uuid.UUID         `json:"from_user_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ========== Upload DTOs ==========

type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
