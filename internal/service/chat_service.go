package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
	"gorm.io/gorm"
)

// InvitationMailer delivers group invitation emails. Best-effort; a failed
// email never blocks group creation.
type InvitationMailer interface {
	SendGroupInvitation(toEmail, toName, inviterName, groupName string, eventStart time.Time) error
}

// ChatService handles conversation and message business logic
type ChatService struct {
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	userRepo   *repository.UserRepository
	store      store.Store
	dispatcher *NotificationDispatcher
	mailer     InvitationMailer
}

func NewChatService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	st store.Store,
	dispatcher *NotificationDispatcher,
	mailer InvitationMailer,
) *ChatService {
	return &ChatService{
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
		store:      st,
		dispatcher: dispatcher,
		mailer:     mailer,
	}
}

// ResolveDirect looks up the direct conversation with another user. It never
// creates one: direct conversations come into existence on the first send.
func (s *ChatService) ResolveDirect(myID, otherID uuid.UUID) (*model.ConversationResponse, error) {
	key := model.DirectKeyFor(myID, otherID)
	conv, err := s.convRepo.FindByDirectKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("direct conversation with", otherID)
		}
		return nil, model.NewStoreUnavailableError(err)
	}

	unread, err := s.unreadFor(conv, myID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	s.fillDirectIdentity(conv, myID)
	return &model.ConversationResponse{Conversation: *conv, UnreadCount: unread}, nil
}

// SendDirect sends the first (or any) message to another user, creating the
// conversation lazily on first contact. The deterministic direct key makes
// the creation idempotent: two racing first sends converge on one record.
func (s *ChatService) SendDirect(ctx context.Context, senderID uuid.UUID, req model.DirectMessageRequest) (*model.DirectConversationResponse, error) {
	if req.ReceiverID == senderID {
		return nil, model.NewValidationError("cannot start a conversation with yourself")
	}
	if _, err := s.userRepo.FindByID(req.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("user", req.ReceiverID)
		}
		return nil, model.NewStoreUnavailableError(err)
	}

	key := model.DirectKeyFor(senderID, req.ReceiverID)
	conv, err := s.convRepo.FindByDirectKey(key)
	isNew := false
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewStoreUnavailableError(err)
		}
		conv, err = s.createDirect(senderID, req.ReceiverID, key)
		if err != nil {
			return nil, err
		}
		isNew = true
	}

	msg, err := s.SendMessage(ctx, senderID, conv.ID, req.Message)
	if err != nil {
		return nil, err
	}

	fresh, err := s.convRepo.FindByID(conv.ID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	s.fillDirectIdentity(fresh, senderID)
	return &model.DirectConversationResponse{
		Conversation: model.ConversationResponse{Conversation: *fresh, UnreadCount: 0},
		Message:      msg,
		IsNew:        isNew,
	}, nil
}

func (s *ChatService) createDirect(a, b uuid.UUID, key string) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		Kind:      model.ConversationKindDirect,
		DirectKey: &key,
		CreatorID: &a,
		Status:    model.ConversationStatusActive,
		Members: []model.ConversationMember{
			{UserID: a, Role: model.MemberRoleMember, JoinedAt: now},
			{UserID: b, Role: model.MemberRoleMember, JoinedAt: now},
		},
	}
	if err := s.convRepo.Create(conv); err != nil {
		// A concurrent first send may have won the unique-key race; the
		// existing conversation is the right answer either way.
		existing, findErr := s.convRepo.FindByDirectKey(key)
		if findErr == nil {
			return existing, nil
		}
		return nil, model.NewStoreUnavailableError(err)
	}
	return conv, nil
}

// CreateGroup eagerly creates a group conversation tied to a dining event:
// expiry is fixed at creation, every member starts with zero unread, and a
// system message announces the group.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID uuid.UUID, req model.CreateGroupRequest) (*model.Conversation, error) {
	creator, err := s.userRepo.FindByID(creatorID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	now := time.Now()
	expiresAt := req.EventStartAt.Add(model.GroupLifetime)
	conv := &model.Conversation{
		Kind:         model.ConversationKindGroup,
		Name:         req.Name,
		Avatar:       req.Avatar,
		CreatorID:    &creatorID,
		Status:       model.ConversationStatusActive,
		EventStartAt: &req.EventStartAt,
		ExpiresAt:    &expiresAt,
	}

	members := []model.ConversationMember{
		{UserID: creatorID, Role: model.MemberRoleAdmin, JoinedAt: now},
	}
	for _, memberID := range req.MemberIDs {
		if memberID == creatorID {
			continue
		}
		members = append(members, model.ConversationMember{
			UserID: memberID, Role: model.MemberRoleMember, JoinedAt: now,
		})
	}
	if len(members) < 2 {
		return nil, model.NewValidationError("group requires at least one other member")
	}
	conv.Members = members

	if err := s.convRepo.Create(conv); err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	if _, err := s.appendSystemMessage(ctx, conv.ID, creator.Name+" created the group"); err != nil {
		log.Printf("⚠️  failed to append group creation message: %v", err)
	}

	s.sendInvitations(conv, creator)

	return s.reload(conv.ID)
}

// sendInvitations emails every invited member. Failures are logged per
// recipient and never propagate.
func (s *ChatService) sendInvitations(conv *model.Conversation, creator *model.User) {
	if s.mailer == nil || conv.EventStartAt == nil {
		return
	}
	for _, member := range conv.Members {
		if member.UserID == creator.ID {
			continue
		}
		invitee, err := s.userRepo.FindByID(member.UserID)
		if err != nil {
			log.Printf("⚠️  invitation skipped, user %s: %v", member.UserID, err)
			continue
		}
		if err := s.mailer.SendGroupInvitation(invitee.Email, invitee.Name, creator.Name, conv.Name, *conv.EventStartAt); err != nil {
			log.Printf("⚠️  invitation email to %s failed: %v", invitee.Email, err)
		}
	}
}

// CreateCommunity creates a community conversation. Membership is managed by
// the community feature itself; JoinCommunity is its hook into the chat.
func (s *ChatService) CreateCommunity(creatorID uuid.UUID, name, avatar string) (*model.Conversation, error) {
	if name == "" {
		return nil, model.NewValidationError("community requires a name")
	}
	now := time.Now()
	conv := &model.Conversation{
		Kind:      model.ConversationKindCommunity,
		Name:      name,
		Avatar:    avatar,
		CreatorID: &creatorID,
		Status:    model.ConversationStatusActive,
		Members: []model.ConversationMember{
			{UserID: creatorID, Role: model.MemberRoleAdmin, JoinedAt: now},
		},
	}
	if err := s.convRepo.Create(conv); err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return s.reload(conv.ID)
}

// JoinCommunity adds a user to a community conversation with a fresh
// watermark so their unread count starts at zero
func (s *ChatService) JoinCommunity(conversationID, userID uuid.UUID) error {
	conv, err := s.getConversation(conversationID)
	if err != nil {
		return err
	}
	if conv.Kind != model.ConversationKindCommunity {
		return model.NewValidationError("not a community conversation")
	}
	if isMember, err := s.convRepo.IsMember(conversationID, userID); err != nil {
		return model.NewStoreUnavailableError(err)
	} else if isMember {
		return nil
	}
	now := time.Now()
	return s.convRepo.AddMember(&model.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           model.MemberRoleMember,
		JoinedAt:       now,
		LastReadAt:     &now,
	})
}

// GetConversations returns all conversations for a user with unread counts.
// Direct/group counts come from the stored member counter; community counts
// are computed against the read watermark.
func (s *ChatService) GetConversations(userID uuid.UUID) ([]model.ConversationResponse, error) {
	conversations, err := s.convRepo.GetUserConversations(userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	result := []model.ConversationResponse{}
	for i := range conversations {
		conv := conversations[i]
		unread, err := s.unreadFor(&conv, userID)
		if err != nil {
			return nil, model.NewStoreUnavailableError(err)
		}
		s.fillDirectIdentity(&conv, userID)
		result = append(result, model.ConversationResponse{
			Conversation: conv,
			UnreadCount:  unread,
		})
	}
	return result, nil
}

// GetConversation returns a specific conversation the user belongs to
func (s *ChatService) GetConversation(convID, userID uuid.UUID) (*model.Conversation, error) {
	if err := s.requireMember(convID, userID); err != nil {
		return nil, err
	}
	conv, err := s.getConversation(convID)
	if err != nil {
		return nil, err
	}
	s.fillDirectIdentity(conv, userID)
	return conv, nil
}

// SendMessage validates, persists, and fans out a message. On success the
// conversation preview cache is refreshed, every other member's unread
// counter is bumped, the sender's is zeroed, and subscribers are signalled.
func (s *ChatService) SendMessage(ctx context.Context, senderID, convID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	conv, err := s.getConversation(convID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(convID, senderID); err != nil {
		return nil, err
	}
	if conv.IsExpired() {
		return nil, model.NewConversationExpiredError(convID)
	}

	sender, err := s.userRepo.FindByID(senderID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if msgType == model.MessageTypeSystem {
		return nil, model.NewValidationError("system messages cannot be sent by users")
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		SenderName:     sender.Name,
		SenderAvatar:   sender.Avatar,
		Type:           msgType,
		Content:        req.Content,
		MediaURL:       req.MediaURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		Duration:       req.Duration,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if req.ReplyToID != nil {
		original, err := s.msgRepo.FindByID(*req.ReplyToID)
		if err != nil || original.ConversationID != convID {
			return nil, model.NewNotFoundError("reply target", *req.ReplyToID)
		}
		msg.ReplyToID = req.ReplyToID
		msg.ReplyPreview = original.Summary()
		msg.ReplyPreviewType = original.Type
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.afterAppend(ctx, conv, msg)
	s.dispatchPush(ctx, conv, msg)

	return msg, nil
}

// afterAppend refreshes the derived conversation state after a message lands.
// These writes are independent of the append: a failure leaves a stale cache
// that self-heals on the next send, so it is logged, not propagated.
func (s *ChatService) afterAppend(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	if err := s.convRepo.SetLastMessage(conv.ID, msg.CreatedAt, msg.Summary(), msg.SenderID); err != nil {
		log.Printf("⚠️  last-message cache update failed for %s: %v", conv.ID, err)
	}

	// Communities track reads purely by watermark; counters are only
	// maintained for direct and group conversations.
	if conv.Kind != model.ConversationKindCommunity && !msg.IsSystem() {
		if err := s.convRepo.IncrementUnread(conv.ID, msg.SenderID); err != nil {
			log.Printf("⚠️  unread increment failed for %s: %v", conv.ID, err)
		}
		if err := s.convRepo.ResetUnread(conv.ID, msg.SenderID, msg.CreatedAt); err != nil {
			log.Printf("⚠️  sender unread reset failed for %s: %v", conv.ID, err)
		}
	}

	memberIDs, err := s.convRepo.GetMemberIDs(conv.ID)
	if err != nil {
		log.Printf("⚠️  member lookup failed for %s: %v", conv.ID, err)
		return
	}
	s.store.NotifyConversationChanged(ctx, conv.ID, memberIDs)
}

// dispatchPush hands notification intents to the dispatcher for everyone but
// the sender. Push is best-effort and never blocks or fails the send.
func (s *ChatService) dispatchPush(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	if s.dispatcher == nil || msg.IsSystem() {
		return
	}
	memberIDs, err := s.convRepo.GetMemberIDs(conv.ID)
	if err != nil {
		log.Printf("⚠️  push skipped, member lookup failed for %s: %v", conv.ID, err)
		return
	}
	for _, memberID := range memberIDs {
		if memberID == msg.SenderID {
			continue
		}
		intent := model.NotificationIntent{
			UserID:         memberID,
			Type:           model.NotificationTypeMessage,
			Title:          msg.SenderName,
			Body:           msg.Summary(),
			ConversationID: conv.ID,
			FromUserID:     msg.SenderID,
		}
		if err := s.dispatcher.Dispatch(ctx, intent); err != nil {
			log.Printf("⚠️  push to %s failed: %v", memberID, err)
		}
	}
}

// React toggles the caller's reaction slot on a message: same emoji removes
// it, a different emoji replaces it. Returns true when a reaction remains.
func (s *ChatService) React(ctx context.Context, userID, convID, messageID uuid.UUID, emoji string) (bool, error) {
	if emoji == "" {
		return false, model.NewValidationError("emoji is required")
	}
	if err := s.requireMember(convID, userID); err != nil {
		return false, err
	}

	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, model.NewNotFoundError("message", messageID)
		}
		return false, model.NewStoreUnavailableError(err)
	}
	if msg.ConversationID != convID {
		return false, model.NewNotFoundError("message", messageID)
	}

	existing, err := s.msgRepo.GetReaction(messageID, userID)
	switch {
	case err == nil && existing.Emoji == emoji:
		if err := s.msgRepo.RemoveReaction(messageID, userID); err != nil {
			return false, model.NewStoreUnavailableError(err)
		}
		s.notifyMembers(ctx, convID)
		return false, nil
	case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.msgRepo.SetReaction(messageID, userID, emoji); err != nil {
			return false, model.NewStoreUnavailableError(err)
		}
		s.notifyMembers(ctx, convID)
		return true, nil
	default:
		return false, model.NewStoreUnavailableError(err)
	}
}

// MarkRead applies the read policy for the conversation kind. Direct and
// group conversations zero the member counter and flip unaddressed read
// flags; communities only advance the watermark. Repeating the call with no
// new messages is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, userID, convID uuid.UUID) error {
	conv, err := s.getConversation(convID)
	if err != nil {
		return err
	}
	if err := s.requireMember(convID, userID); err != nil {
		return err
	}

	now := time.Now()
	if conv.Kind == model.ConversationKindCommunity {
		if err := s.convRepo.SetWatermark(convID, userID, now); err != nil {
			return model.NewStoreUnavailableError(err)
		}
	} else {
		if err := s.convRepo.ResetUnread(convID, userID, now); err != nil {
			return model.NewStoreUnavailableError(err)
		}
		if err := s.msgRepo.MarkReadFlags(convID, userID); err != nil {
			return model.NewStoreUnavailableError(err)
		}
	}

	s.notifyMembers(ctx, convID)
	return nil
}

// GetMessages returns paginated messages for a conversation, newest first
func (s *ChatService) GetMessages(convID, userID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	if err := s.requireMember(convID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	messages, err := s.msgRepo.GetConversationMessages(convID, before, limit)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return messages, nil
}

// GetConversationMemberIDs returns all member IDs for a conversation
func (s *ChatService) GetConversationMemberIDs(convID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.GetMemberIDs(convID)
}

// ========== helpers ==========

func (s *ChatService) getConversation(convID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFoundError("conversation", convID)
		}
		return nil, model.NewStoreUnavailableError(err)
	}
	return conv, nil
}

func (s *ChatService) reload(convID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(convID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return conv, nil
}

func (s *ChatService) requireMember(convID, userID uuid.UUID) error {
	isMember, err := s.convRepo.IsMember(convID, userID)
	if err != nil {
		return model.NewStoreUnavailableError(err)
	}
	if !isMember {
		return model.NewPermissionDeniedError("you are not a member of this conversation")
	}
	return nil
}

func (s *ChatService) unreadFor(conv *model.Conversation, userID uuid.UUID) (int, error) {
	if conv.Kind == model.ConversationKindCommunity {
		count, err := s.msgRepo.CountUnreadSince(conv.ID, userID, s.msgRepo.WatermarkSubquery(conv.ID, userID))
		return int(count), err
	}
	member, err := s.convRepo.GetMember(conv.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return member.UnreadCount, nil
}

// notifyMembers signals every member's subscriptions that the conversation
// changed. Best-effort.
func (s *ChatService) notifyMembers(ctx context.Context, convID uuid.UUID) {
	memberIDs, err := s.convRepo.GetMemberIDs(convID)
	if err != nil {
		log.Printf("⚠️  member lookup failed for %s: %v", convID, err)
		return
	}
	s.store.NotifyConversationChanged(ctx, convID, memberIDs)
}

// fillDirectIdentity gives a direct conversation the other party's name and
// avatar for display
func (s *ChatService) fillDirectIdentity(conv *model.Conversation, viewerID uuid.UUID) {
	if conv.Kind != model.ConversationKindDirect {
		return
	}
	for _, m := range conv.Members {
		if m.UserID != viewerID {
			conv.Name = m.User.Name
			conv.Avatar = m.User.Avatar
			break
		}
	}
}

// appendSystemMessage injects a server-authored message into a conversation
func (s *ChatService) appendSystemMessage(ctx context.Context, convID uuid.UUID, content string) (*model.Message, error) {
	msg := &model.Message{
		ConversationID: convID,
		SenderID:       uuid.Nil,
		SenderName:     "DineBuddies",
		Type:           model.MessageTypeSystem,
		Content:        content,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.convRepo.SetLastMessage(convID, msg.CreatedAt, msg.Summary(), msg.SenderID); err != nil {
		log.Printf("⚠️  last-message cache update failed for %s: %v", convID, err)
	}
	return msg, nil
}
