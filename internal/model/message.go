package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message represents a chat message.
//
// Ordering within a conversation is CreatedAt ascending; Seq is assigned by
// the store in arrival order and breaks ties when two messages land on the
// same timestamp.
type Message struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Seq            int64     `json:"seq" gorm:"not null;uniqueIndex:idx_messages_conv_seq"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;index;not null;uniqueIndex:idx_messages_conv_seq"`

	// Sender identity is denormalized so rendering never needs a join; Nil
	// sender means a system message.
	SenderID     uuid.UUID `json:"sender_id" gorm:"type:uuid;index"`
	SenderName   string    `json:"sender_name" gorm:"size:100"`
	SenderAvatar string    `json:"sender_avatar,omitempty" gorm:"size:500"`

	Type    MessageType `json:"type" gorm:"type:varchar(20);default:'text'"`
	Content string      `json:"content" gorm:"type:text"`

	// Media payload (image/voice/file)
	MediaURL string  `json:"media_url,omitempty" gorm:"size:1000"`
	FileName string  `json:"file_name,omitempty" gorm:"size:255"`
	FileSize int64   `json:"file_size,omitempty"`
	Duration float64 `json:"duration,omitempty"` // voice messages, seconds

	// Read is the direct-chat per-message flag. Group chats rely on the member
	// counter and communities on the watermark instead.
	Read bool `json:"read" gorm:"default:false"`

	// Reply back-reference: lookup only, never ownership. The preview is
	// captured at send time so the reply renders even if the original scrolls
	// out of the loaded window.
	ReplyToID        *uuid.UUID  `json:"reply_to_id,omitempty" gorm:"type:uuid"`
	ReplyPreview     string      `json:"reply_preview,omitempty" gorm:"size:300"`
	ReplyPreviewType MessageType `json:"reply_preview_type,omitempty" gorm:"type:varchar(20)"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Reactions []MessageReaction `json:"reactions,omitempty" gorm:"foreignKey:MessageID"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsSystem reports whether the message was injected by the server
func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

// Summary returns the short preview text used for conversation lists and
// push notifications
func (m *Message) Summary() string {
	switch m.Type {
	case MessageTypeText, MessageTypeSystem:
		// Truncate on a rune boundary so the preview stays valid UTF-8
		if runes := []rune(m.Content); len(runes) > 120 {
			return string(runes[:120])
		}
		return m.Content
	case MessageTypeImage:
		return "Sent a photo"
	case MessageTypeVoice:
		return "Sent a voice message"
	case MessageTypeFile:
		if m.FileName != "" {
			return "Sent a file: " + m.FileName
		}
		return "Sent a file"
	default:
		return "Sent a message"
	}
}

// Validate checks the payload against the message type. Every variant is
// matched explicitly; an unknown type is rejected before any store call.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if m.Content == "" {
			return NewValidationError("text message requires content")
		}
	case MessageTypeImage:
		if m.MediaURL == "" {
			return NewValidationError("image message requires a media URL")
		}
	case MessageTypeVoice:
		if m.MediaURL == "" {
			return NewValidationError("voice message requires a media URL")
		}
		if m.Duration <= 0 {
			return NewValidationError("voice message requires a positive duration")
		}
	case MessageTypeFile:
		if m.MediaURL == "" {
			return NewValidationError("file message requires a media URL")
		}
		if m.FileName == "" {
			return NewValidationError("file message requires a file name")
		}
	case MessageTypeSystem:
		if m.Content == "" {
			return NewValidationError("system message requires content")
		}
	default:
		return NewValidationError("unknown message type: " + string(m.Type))
	}
	return nil
}

// MessageReaction is a user's single reaction slot on a message.
// The unique index enforces at most one reaction per user per message;
// reacting again with the same emoji removes it, a different emoji replaces it.
type MessageReaction struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;uniqueIndex:idx_msg_user_reaction;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_msg_user_reaction;not null"`
	Emoji     string    `json:"emoji" gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Message Message `json:"-" gorm:"foreignKey:MessageID"`
}

func (r *MessageReaction) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
