package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
)

// ConversationHandler manages the conversation endpoints.
type ConversationHandler struct {
	conversations ConversationService
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// CreatePrivate gets or creates the private conversation with the target.
func (h *ConversationHandler) CreatePrivate(c *gin.Context) {
	var req struct {
		TargetUserID int `json:"target_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("target_user_id is required"))
		return
	}

	detail, err := h.conversations.GetOrCreatePrivate(c.Request.Context(), callerID(c), req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateGroup creates a group conversation.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("name and member_ids are required"))
		return
	}

	detail, err := h.conversations.CreateGroup(c.Request.Context(), callerID(c), req.Name, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// List returns the caller's conversations, pinned first then most recent.
func (h *ConversationHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	summaries, err := h.conversations.List(c.Request.Context(), callerID(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Delete removes the caller from the conversation.
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.conversations.Leave(c.Request.Context(), id, callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TogglePin flips the caller's pin flag.
func (h *ConversationHandler) TogglePin(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	value, err := h.conversations.TogglePin(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_pinned": value})
}

// ToggleMute flips the caller's mute flag.
func (h *ConversationHandler) ToggleMute(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	value, err := h.conversations.ToggleMute(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_muted": value})
}
