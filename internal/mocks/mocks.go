package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreatePrivate(ctx context.Context, userA, userB int) (models.Conversation, bool, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetMember(ctx context.Context, conversationID, userID int) (models.Member, error) {
	args := m.Called(ctx, conversationID, userID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *ConversationRepositoryMock) IsMember(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ConversationIDsForUser(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID, limit, offset)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) TogglePin(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ToggleMute(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) RemoveMember(ctx context.Context, conversationID, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *ConversationRepositoryMock) TotalUnread(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, input)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListNewestFirst(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) GetBrief(ctx context.Context, userID int) (models.UserBrief, error) {
	args := m.Called(ctx, userID)
	var brief models.UserBrief
	if val := args.Get(0); val != nil {
		brief = val.(models.UserBrief)
	}
	return brief, args.Error(1)
}

func (m *UserDirectoryMock) BulkBriefs(ctx context.Context, ids []int) ([]models.UserBrief, error) {
	args := m.Called(ctx, ids)
	var briefs []models.UserBrief
	if val := args.Get(0); val != nil {
		briefs = val.([]models.UserBrief)
	}
	return briefs, args.Error(1)
}

func (m *UserDirectoryMock) Contacts(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type TokenVerifierMock struct {
	mock.Mock
}

func (m *TokenVerifierMock) Verify(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) MessageCreated(msg models.MessageView) {
	m.Called(msg)
}

func (m *BroadcasterMock) ReadMarked(receipt models.ReadReceipt) {
	m.Called(receipt)
}
