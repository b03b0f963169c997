package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message, assigning the conversation's next sequence
// number.
// Seq is the arrival-order tiebreak for messages sharing a timestamp; the
// unique index catches the rare collision between concurrent sends, in which
// case the insert is retried with a fresh sequence.
func (r *MessageRepository) Create(msg *model.Message) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.db.Transaction(func(tx *gorm.DB) error {
			var next int64
			if err := tx.Model(&model.Message{}).
				Where("conversation_id = ?", msg.ConversationID).
				Select("COALESCE(MAX(seq), 0) + 1").
				Scan(&next).Error; err != nil {
				return err
			}
			msg.Seq = next
			return tx.Create(msg).Error
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isDuplicateKey(err) {
			return err
		}
		msg.ID = uuid.Nil
	}
	return lastErr
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// FindByID finds a message by ID with reactions
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Reactions").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListAscending returns the full ordered message list for a conversation,
// oldest first. This is the snapshot query behind message subscriptions:
// created_at ascending with seq as the stable tiebreak.
func (r *MessageRepository) ListAscending(conversationID uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("Reactions").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages).Error
	return messages, err
}

// GetConversationMessages returns paginated messages, newest first
// (cursor-based, for history scrollback)
func (r *MessageRepository) GetConversationMessages(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("Reactions").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, seq DESC").
		Limit(limit)

	if before != nil {
		var beforeMsg model.Message
		if err := r.db.Select("created_at", "seq").Where("id = ?", before).First(&beforeMsg).Error; err != nil {
			return nil, err
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND seq < ?)",
			beforeMsg.CreatedAt, beforeMsg.CreatedAt, beforeMsg.Seq,
		)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// GetLastMessage returns the most recent message in a conversation
func (r *MessageRepository) GetLastMessage(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, seq DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkReadFlags flips the read flag on all of a conversation's messages not
// sent by the given user. Direct-chat policy only; communities never touch
// per-message state.
func (r *MessageRepository) MarkReadFlags(conversationID, userID uuid.UUID) error {
	return r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND read = ?", conversationID, userID, false).
		Update("read", true).Error
}

// CountUnreadSince counts messages newer than the given watermark that the
// user did not send. Community unread is computed from this, never stored.
func (r *MessageRepository) CountUnreadSince(conversationID, userID uuid.UUID, watermark *gorm.DB) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationID, userID).
		Where("created_at > (?)", watermark).
		Count(&count).Error
	return count, err
}

// WatermarkSubquery returns the member's last-read timestamp as a subquery
// usable with CountUnreadSince
func (r *MessageRepository) WatermarkSubquery(conversationID, userID uuid.UUID) *gorm.DB {
	return r.db.Table("conversation_members").
		Select("COALESCE(last_read_at, '0001-01-01')").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID)
}

// GetReaction returns the user's current reaction on a message, if any
func (r *MessageRepository) GetReaction(messageID, userID uuid.UUID) (*model.MessageReaction, error) {
	var reaction model.MessageReaction
	err := r.db.
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// SetReaction inserts or replaces the user's single reaction slot
func (r *MessageRepository) SetReaction(messageID, userID uuid.UUID, emoji string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("message_id = ? AND user_id = ?", messageID, userID).
			Delete(&model.MessageReaction{}).Error; err != nil {
			return err
		}
		return tx.Create(&model.MessageReaction{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
		}).Error
	})
}

// RemoveReaction clears the user's reaction slot on a message
func (r *MessageRepository) RemoveReaction(messageID, userID uuid.UUID) error {
	return r.db.
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&model.MessageReaction{}).Error
}
