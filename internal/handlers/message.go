package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// MessageHandler manages the message endpoints.
type MessageHandler struct {
	messages      MessageService
	conversations ConversationService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages MessageService, conversations ConversationService) *MessageHandler {
	return &MessageHandler{messages: messages, conversations: conversations}
}

// List returns a page of history, oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	views, err := h.messages.List(c.Request.Context(), id, callerID(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Post sends a message through the pipeline.
func (h *MessageHandler) Post(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	var req models.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("invalid message payload"))
		return
	}

	view, err := h.messages.Send(c.Request.Context(), id, callerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// MarkRead zeroes the caller's unread counter for the conversation.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), id, callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TotalUnread returns the caller's unread total across conversations.
func (h *MessageHandler) TotalUnread(c *gin.Context) {
	total, err := h.conversations.TotalUnread(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_unread": total})
}
