package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations/:id/messages", handler.List)
	r.POST("/conversations/:id/messages", handler.Post)
	r.POST("/conversations/:id/read", handler.MarkRead)
	r.GET("/messages/unread-count", handler.TotalUnread)
	return r
}

func TestListMessagesSuccess(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	convSvc := new(mocks.ConversationServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, convSvc))

	msgSvc.On("List", mock.Anything, 5, 1, 1, 20).
		Return([]models.MessageView{{ID: 1, ConversationID: 5, SenderID: 2, Type: models.TypeText, Content: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.MessageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	require.Equal(t, "hi", resp["messages"][0].Content)
	msgSvc.AssertExpectations(t)
}

func TestListMessagesForbidden(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	msgSvc.On("List", mock.Anything, 5, 1, 1, 20).
		Return(([]models.MessageView)(nil), apperrors.Forbidden("not a member")).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	msgSvc.AssertExpectations(t)
}

func TestListMessagesInvalidID(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msgSvc.AssertNotCalled(t, "List")
}

func TestPostMessageSuccess(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	input := models.SendInput{Type: models.TypeText, Content: "hello"}
	msgSvc.On("Send", mock.Anything, 5, 1, input).
		Return(models.MessageView{ID: 9, ConversationID: 5, SenderID: 1, Type: models.TypeText, Content: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"type":"text","content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.MessageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 9, resp.ID)
	msgSvc.AssertExpectations(t)
}

func TestPostMessageValidationError(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	msgSvc.On("Send", mock.Anything, 5, 1, mock.Anything).
		Return(models.MessageView{}, apperrors.InvalidInput("text message requires content")).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"type":"text"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msgSvc.AssertExpectations(t)
}

func TestPostMessageConversationMissing(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	msgSvc.On("Send", mock.Anything, 404, 1, mock.Anything).
		Return(models.MessageView{}, apperrors.NotFound("conversation not found")).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/404/messages", bytes.NewBufferString(`{"type":"text","content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	msgSvc.AssertExpectations(t)
}

func TestMarkReadSuccess(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	msgSvc.On("MarkRead", mock.Anything, 5, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	msgSvc.AssertExpectations(t)
}

func TestMarkReadStoreTimeout(t *testing.T) {
	msgSvc := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(msgSvc, new(mocks.ConversationServiceMock)))

	msgSvc.On("MarkRead", mock.Anything, 5, 1).
		Return(apperrors.Unavailable("mark read timed out", assert.AnError)).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	msgSvc.AssertExpectations(t)
}

func TestTotalUnreadSuccess(t *testing.T) {
	convSvc := new(mocks.ConversationServiceMock)
	router := setupMessageRouter(NewMessageHandler(new(mocks.MessageServiceMock), convSvc))

	convSvc.On("TotalUnread", mock.Anything, 1).Return(12, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/unread-count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 12, resp["total_unread"])
	convSvc.AssertExpectations(t)
}
