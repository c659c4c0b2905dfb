package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
)

// ConversationService is the conversation surface the REST handlers need.
type ConversationService interface {
	GetOrCreatePrivate(ctx context.Context, userID, targetID int) (models.ConversationDetail, error)
	CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ConversationDetail, error)
	List(ctx context.Context, userID, page, pageSize int) ([]models.ConversationSummary, error)
	TogglePin(ctx context.Context, conversationID, userID int) (bool, error)
	ToggleMute(ctx context.Context, conversationID, userID int) (bool, error)
	Leave(ctx context.Context, conversationID, userID int) error
	TotalUnread(ctx context.Context, userID int) (int, error)
}

// MessageService is the pipeline surface the REST handlers need.
type MessageService interface {
	Send(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.MessageView, error)
	List(ctx context.Context, conversationID, userID, page, pageSize int) ([]models.MessageView, error)
	MarkRead(ctx context.Context, conversationID, userID int) error
}

func callerID(c *gin.Context) int {
	return c.GetInt(middleware.UserIDKey)
}

func conversationID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, errorBody(apperrors.InvalidInput("invalid conversation id")))
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func errorBody(err error) gin.H {
	return gin.H{"error": gin.H{
		"code":    string(apperrors.KindOf(err)),
		"message": apperrors.MessageOf(err),
	}}
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorBody(err))
}
