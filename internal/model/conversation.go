package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationKind defines the shape of a conversation
type ConversationKind string

const (
	ConversationKindDirect    ConversationKind = "direct"
	ConversationKindGroup     ConversationKind = "group"
	ConversationKindCommunity ConversationKind = "community"
)

// ConversationStatus tracks the lifecycle of a group conversation.
// The transition active -> expired is one-way; there is no way back.
type ConversationStatus string

const (
	ConversationStatusActive  ConversationStatus = "active"
	ConversationStatusExpired ConversationStatus = "expired"
)

// GroupLifetime is how long a group conversation stays open after its event starts
const GroupLifetime = 24 * time.Hour

// Conversation represents a chat thread (direct, group, or community)
type Conversation struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Kind      ConversationKind `json:"kind" gorm:"type:varchar(20);default:'direct';index"`
	Name      string           `json:"name" gorm:"size:100"` // group/community name, empty for direct
	Avatar    string           `json:"avatar,omitempty" gorm:"size:500"`
	CreatorID *uuid.UUID       `json:"creator_id,omitempty" gorm:"type:uuid"`

	// DirectKey is the sorted pair of participant IDs for direct conversations.
	// The unique index makes lazy first-send creation idempotent even when two
	// first-contact sends race.
	DirectKey *string `json:"-" gorm:"size:80;uniqueIndex"`

	// Group lifecycle
	Status       ConversationStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	EventStartAt *time.Time         `json:"event_start_at,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`

	// Denormalized preview of the latest message. Treated as a cache: the
	// message list remains the source of truth and the preview self-heals on
	// the next send if an update is lost.
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`
	LastMessageSummary  string     `json:"last_message_summary,omitempty" gorm:"size:300"`
	LastMessageSenderID *uuid.UUID `json:"last_message_sender_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Members []ConversationMember `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the conversation no longer accepts new messages
func (c *Conversation) IsExpired() bool {
	return c.Kind == ConversationKindGroup && c.Status == ConversationStatusExpired
}

// DirectKeyFor returns the deterministic lookup key for a two-party
// conversation: the two user IDs joined in lexical order
func DirectKeyFor(a, b uuid.UUID) string {
	if a.String() < b.String() {
		return fmt.Sprintf("%s:%s", a, b)
	}
	return fmt.Sprintf("%s:%s", b, a)
}

// MemberRole defines the role of a member in a conversation
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// ConversationMember is a user's membership in a conversation. It carries both
// unread policies: UnreadCount is the stored counter used by direct and group
// conversations; LastReadAt is the watermark community conversations compare
// message timestamps against, avoiding per-message writes at community scale.
type ConversationMember struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	Role           MemberRole     `json:"role" gorm:"type:varchar(20);default:'member'"`
	JoinedAt       time.Time      `json:"joined_at"`
	UnreadCount    int            `json:"unread_count" gorm:"default:0"`
	LastReadAt     *time.Time     `json:"last_read_at,omitempty"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User         User         `json:"user" gorm:"foreignKey:UserID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

func (m *ConversationMember) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
