package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/service"
	"github.com/yaso2000/dinebuddies-sub000/internal/ws"
)

// ChatHandler handles conversation and message HTTP endpoints
type ChatHandler struct {
	chatService *service.ChatService
	hub         *ws.Hub
}

func NewChatHandler(chatService *service.ChatService, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{chatService: chatService, hub: hub}
}

// GetConversations godoc
// @Summary Get all conversations for the current user
// @Description Returns conversations newest-activity first with per-kind unread counts
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConversationResponse
// @Router /conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversations, err := h.chatService.GetConversations(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetConversation godoc
// @Summary Get a specific conversation
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Conversation
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.chatService.GetConversation(convID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// ResolveDirect godoc
// @Summary Look up the direct conversation with another user
// @Description Returns 404 when no conversation exists yet; direct chats are created by the first message
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Other user ID"
// @Success 200 {object} model.ConversationResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/direct/{userId} [get]
func (h *ChatHandler) ResolveDirect(c *gin.Context) {
	otherID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	resp, err := h.chatService.ResolveDirect(userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SendDirect godoc
// @Summary Send a direct message, creating the conversation on first contact
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DirectMessageRequest true "Receiver and message"
// @Success 201 {object} model.DirectConversationResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/direct [post]
func (h *ChatHandler) SendDirect(c *gin.Context) {
	var req model.DirectMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	resp, err := h.chatService.SendDirect(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastMessage(resp.Conversation.ID, userID, resp.Message)

	c.JSON(http.StatusCreated, resp)
}

// CreateGroup godoc
// @Summary Create a group conversation for a dining event
// @Description The group expires 24 hours after the event starts
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateGroupRequest true "Group details"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/group [post]
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req model.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.chatService.CreateGroup(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.GetConversationMemberIDs(conv.ID)
		if err != nil {
			return
		}
		h.hub.SendToUsers(memberIDs, model.WSEvent{
			Type:    model.WSEventConversationUpdated,
			Payload: conv,
		})
	}()

	c.JSON(http.StatusCreated, conv)
}

// CreateCommunity godoc
// @Summary Create a community conversation
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateCommunityRequest true "Community details"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/community [post]
func (h *ChatHandler) CreateCommunity(c *gin.Context) {
	var req model.CreateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.chatService.CreateCommunity(userID, req.Name, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// JoinCommunity godoc
// @Summary Join a community conversation
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id}/join [post]
func (h *ChatHandler) JoinCommunity(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.chatService.JoinCommunity(convID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Joined community"})
}

// SendMessage godoc
// @Summary Send a message to a conversation
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Failure 410 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.chatService.SendMessage(c.Request.Context(), userID, convID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastMessage(convID, userID, msg)

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary Get messages for a conversation, newest first
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param before query string false "Cursor: message ID to get messages before"
// @Param limit query int false "Number of messages to return (default: 50)"
// @Success 200 {array} model.Message
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	var before *uuid.UUID
	if req.Before != "" {
		parsed, err := uuid.Parse(req.Before)
		if err == nil {
			before = &parsed
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	messages, err := h.chatService.GetMessages(convID, userID, before, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// React godoc
// @Summary Toggle a reaction on a message
// @Description Same emoji removes the reaction, a different one replaces it
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param messageId path string true "Message ID"
// @Param body body model.ReactRequest true "Emoji"
// @Success 200 {object} model.ReactionEvent
// @Router /conversations/{id}/messages/{messageId}/react [post]
func (h *ChatHandler) React(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	kept, err := h.chatService.React(c.Request.Context(), userID, convID, messageID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	event := model.ReactionEvent{
		ConversationID: convID,
		MessageID:      messageID,
		UserID:         userID,
	}
	if kept {
		event.Emoji = req.Emoji
	}

	go func() {
		memberIDs, err := h.chatService.GetConversationMemberIDs(convID)
		if err != nil {
			return
		}
		h.hub.SendToUsers(memberIDs, model.WSEvent{
			Type:    model.WSEventMessageReaction,
			Payload: event,
		})
	}()

	c.JSON(http.StatusOK, event)
}

// MarkAsRead godoc
// @Summary Mark a conversation as read
// @Description Zeroes the unread counter for direct/group chats, advances the watermark for communities
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.chatService.MarkRead(c.Request.Context(), userID, convID); err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.GetConversationMemberIDs(convID)
		if err != nil {
			return
		}
		h.hub.SendToUsers(memberIDs, model.WSEvent{
			Type: model.WSEventMessageRead,
			Payload: model.MessageReadEvent{
				ConversationID: convID,
				UserID:         userID,
				ReadAt:         time.Now(),
			},
		})
	}()

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Conversation marked as read"})
}

// broadcastMessage fans a new message out to the other members over
// WebSocket
func (h *ChatHandler) broadcastMessage(convID, senderID uuid.UUID, msg *model.Message) {
	go func() {
		memberIDs, err := h.chatService.GetConversationMemberIDs(convID)
		if err != nil {
			return
		}
		var recipientIDs []uuid.UUID
		for _, id := range memberIDs {
			if id != senderID {
				recipientIDs = append(recipientIDs, id)
			}
		}
		if len(recipientIDs) > 0 {
			h.hub.SendToUsers(recipientIDs, model.WSEvent{
				Type:    model.WSEventNewMessage,
				Payload: msg,
			})
		}
	}()
}
