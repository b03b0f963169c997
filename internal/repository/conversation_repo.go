package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"gorm.io/gorm"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// DB exposes the underlying connection for callers that compose their own
// partial updates (the store adapter's merge writes)
func (r *ConversationRepository) DB() *gorm.DB {
	return r.db
}

// Create creates a new conversation with members
func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID with members
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Members.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByDirectKey finds the direct conversation for a participant pair. The
// key is deterministic, so lookup replaces the old query-then-insert dance.
func (r *ConversationRepository) FindByDirectKey(key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Members.User").
		Where("direct_key = ?", key).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations returns all conversations for a user, ordered by
// latest message first; conversations with no messages sort by creation time
func (r *ConversationRepository) GetUserConversations(userID uuid.UUID) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ? AND conversation_members.deleted_at IS NULL", userID).
		Preload("Members.User").
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC").
		Find(&conversations).Error
	return conversations, err
}

// AddMember adds a user to a conversation
func (r *ConversationRepository) AddMember(member *model.ConversationMember) error {
	return r.db.Create(member).Error
}

// RemoveMember soft-deletes a member from a conversation
func (r *ConversationRepository) RemoveMember(conversationID, userID uuid.UUID) error {
	return r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&model.ConversationMember{}).Error
}

// IsMember checks if a user is a member of a conversation
func (r *ConversationRepository) IsMember(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetMember returns a single membership row
func (r *ConversationRepository) GetMember(conversationID, userID uuid.UUID) (*model.ConversationMember, error) {
	var member model.ConversationMember
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetMemberIDs returns all member user IDs for a conversation
func (r *ConversationRepository) GetMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var memberIDs []uuid.UUID
	err := r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &memberIDs).Error
	return memberIDs, err
}

// SetLastMessage updates the denormalized last-message preview fields
func (r *ConversationRepository) SetLastMessage(conversationID uuid.UUID, at time.Time, summary string, senderID uuid.UUID) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_at":        at,
			"last_message_summary":   summary,
			"last_message_sender_id": senderID,
		}).Error
}

// IncrementUnread bumps the unread counter for every member except the
// sender. The increment runs in SQL so concurrent sends from multiple
// participants never lose updates to a stale read-modify-write.
func (r *ConversationRepository) IncrementUnread(conversationID, senderID uuid.UUID) error {
	return r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id != ?", conversationID, senderID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

// ResetUnread zeroes the unread counter and advances the read watermark for
// one member. Calling it again with no new messages changes nothing.
func (r *ConversationRepository) ResetUnread(conversationID, userID uuid.UUID, readAt time.Time) error {
	return r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": readAt,
		}).Error
}

// SetWatermark advances only the read watermark. Community conversations use
// this instead of counters and per-message flags.
func (r *ConversationRepository) SetWatermark(conversationID, userID uuid.UUID, readAt time.Time) error {
	return r.db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", readAt).Error
}

// FindExpirableGroups returns active group conversations whose expiry time
// has passed
func (r *ConversationRepository) FindExpirableGroups(now time.Time) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.
		Where("kind = ? AND status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			model.ConversationKindGroup, model.ConversationStatusActive, now).
		Find(&conversations).Error
	return conversations, err
}

// MarkExpired transitions a group conversation to expired. The status guard in
// the WHERE clause keeps the transition one-way and makes concurrent sweeps
// idempotent; it reports whether this call performed the transition.
func (r *ConversationRepository) MarkExpired(conversationID uuid.UUID) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND status = ?", conversationID, model.ConversationStatusActive).
		Update("status", model.ConversationStatusExpired)
	return res.RowsAffected > 0, res.Error
}
