package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
)

type ConversationServiceMock struct {
	mock.Mock
}

func (m *ConversationServiceMock) GetOrCreatePrivate(ctx context.Context, userID, targetID int) (models.ConversationDetail, error) {
	args := m.Called(ctx, userID, targetID)
	var detail models.ConversationDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ConversationDetail)
	}
	return detail, args.Error(1)
}

func (m *ConversationServiceMock) CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ConversationDetail, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var detail models.ConversationDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ConversationDetail)
	}
	return detail, args.Error(1)
}

func (m *ConversationServiceMock) List(ctx context.Context, userID, page, pageSize int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID, page, pageSize)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationServiceMock) TogglePin(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationServiceMock) ToggleMute(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationServiceMock) Leave(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationServiceMock) TotalUnread(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.MessageView, error) {
	args := m.Called(ctx, conversationID, senderID, input)
	var view models.MessageView
	if val := args.Get(0); val != nil {
		view = val.(models.MessageView)
	}
	return view, args.Error(1)
}

func (m *MessageServiceMock) List(ctx context.Context, conversationID, userID, page, pageSize int) ([]models.MessageView, error) {
	args := m.Called(ctx, conversationID, userID, page, pageSize)
	var views []models.MessageView
	if val := args.Get(0); val != nil {
		views = val.([]models.MessageView)
	}
	return views, args.Error(1)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}
