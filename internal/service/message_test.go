package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func newMessageService(convRepo *mocks.ConversationRepositoryMock, msgRepo *mocks.MessageRepositoryMock, users *mocks.UserDirectoryMock) *MessageService {
	return NewMessageService(convRepo, msgRepo, users, nil, time.Second)
}

func TestSendConversationNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.UserDirectoryMock))

	convRepo.On("Get", mock.Anything, 404).
		Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	_, err := svc.Send(context.Background(), 404, 1, models.SendInput{Type: models.TypeText, Content: "hi"})

	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	convRepo.AssertExpectations(t)
}

func TestSendNotMember(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.UserDirectoryMock))

	convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("GetMember", mock.Anything, 5, 1).
		Return(models.Member{}, repositories.ErrNotMember).Once()

	_, err := svc.Send(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "hi"})

	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	convRepo.AssertExpectations(t)
}

func TestSendValidation(t *testing.T) {
	cases := []struct {
		name  string
		input models.SendInput
	}{
		{"unknown type", models.SendInput{Type: "sticker"}},
		{"text without content", models.SendInput{Type: models.TypeText, Content: "   "}},
		{"image without media url", models.SendInput{Type: models.TypeImage}},
		{"file without media url", models.SendInput{Type: models.TypeFile, Content: "report"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			convRepo := new(mocks.ConversationRepositoryMock)
			msgRepo := new(mocks.MessageRepositoryMock)
			svc := newMessageService(convRepo, msgRepo, new(mocks.UserDirectoryMock))

			convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
			convRepo.On("GetMember", mock.Anything, 5, 1).Return(models.Member{ConversationID: 5, UserID: 1}, nil).Once()

			_, err := svc.Send(context.Background(), 5, 1, tc.input)

			require.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
			msgRepo.AssertNotCalled(t, "Create")
		})
	}
}

func TestSendReplyTargetMissing(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(convRepo, msgRepo, new(mocks.UserDirectoryMock))

	convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("GetMember", mock.Anything, 5, 1).Return(models.Member{}, nil).Once()
	msgRepo.On("Get", mock.Anything, 77).Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	_, err := svc.Send(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "hi", ReplyTo: 77})

	require.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	msgRepo.AssertNotCalled(t, "Create")
}

func TestSendReplyTargetOtherConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(convRepo, msgRepo, new(mocks.UserDirectoryMock))

	convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("GetMember", mock.Anything, 5, 1).Return(models.Member{}, nil).Once()
	msgRepo.On("Get", mock.Anything, 77).Return(models.Message{ID: 77, ConversationID: 6}, nil).Once()

	_, err := svc.Send(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "hi", ReplyTo: 77})

	require.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	msgRepo.AssertNotCalled(t, "Create")
}

func TestSendSuccessBroadcasts(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserDirectoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	svc := newMessageService(convRepo, msgRepo, users)
	svc.SetBroadcaster(broadcaster)

	input := models.SendInput{Type: models.TypeText, Content: "hello"}
	now := time.Now()

	convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("GetMember", mock.Anything, 5, 1).Return(models.Member{ConversationID: 5, UserID: 1}, nil).Once()
	msgRepo.On("Create", mock.Anything, 5, 1, input).
		Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1, Type: models.TypeText, Content: "hello", CreatedAt: now}, nil).Once()
	users.On("GetBrief", mock.Anything, 1).Return(models.UserBrief{ID: 1, DisplayName: "alice"}, nil).Once()
	broadcaster.On("MessageCreated", mock.MatchedBy(func(v models.MessageView) bool {
		return v.ID == 9 && v.ConversationID == 5 && v.Sender != nil && v.Sender.DisplayName == "alice"
	})).Once()

	view, err := svc.Send(context.Background(), 5, 1, input)

	require.NoError(t, err)
	require.Equal(t, 9, view.ID)
	require.NotNil(t, view.Sender)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	users.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestSendSurvivesProfileLookupFailure(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserDirectoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	svc := newMessageService(convRepo, msgRepo, users)
	svc.SetBroadcaster(broadcaster)

	input := models.SendInput{Type: models.TypeImage, MediaURL: "https://cdn/img.png"}

	convRepo.On("Get", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("GetMember", mock.Anything, 5, 1).Return(models.Member{}, nil).Once()
	msgRepo.On("Create", mock.Anything, 5, 1, input).
		Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1, Type: models.TypeImage,
			MediaURL: sql.NullString{String: "https://cdn/img.png", Valid: true}}, nil).Once()
	users.On("GetBrief", mock.Anything, 1).Return(models.UserBrief{}, assert.AnError).Once()
	broadcaster.On("MessageCreated", mock.Anything).Once()

	view, err := svc.Send(context.Background(), 5, 1, input)

	require.NoError(t, err)
	require.Nil(t, view.Sender)
	require.Equal(t, "https://cdn/img.png", view.MediaURL)
	broadcaster.AssertExpectations(t)
}

func TestListMessagesNotMember(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.UserDirectoryMock))

	convRepo.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	_, err := svc.List(context.Background(), 5, 1, 1, 20)

	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	convRepo.AssertExpectations(t)
}

func TestListMessagesOldestFirst(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserDirectoryMock)
	svc := newMessageService(convRepo, msgRepo, users)

	convRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("ListNewestFirst", mock.Anything, 5, 20, 0).
		Return([]models.Message{
			{ID: 3, ConversationID: 5, SenderID: 2, Type: models.TypeText, Content: "third"},
			{ID: 2, ConversationID: 5, SenderID: 1, Type: models.TypeText, Content: "second"},
			{ID: 1, ConversationID: 5, SenderID: 2, Type: models.TypeText, Content: "first"},
		}, nil).Once()
	users.On("BulkBriefs", mock.Anything, []int{2, 1}).
		Return([]models.UserBrief{{ID: 1, DisplayName: "alice"}, {ID: 2, DisplayName: "bob"}}, nil).Once()

	views, err := svc.List(context.Background(), 5, 1, 1, 20)

	require.NoError(t, err)
	require.Len(t, views, 3)
	require.Equal(t, 1, views[0].ID)
	require.Equal(t, 3, views[2].ID)
	require.NotNil(t, views[0].Sender)
	require.Equal(t, "bob", views[0].Sender.DisplayName)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestMarkReadNotMember(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.UserDirectoryMock))

	msgRepo.On("MarkRead", mock.Anything, 5, 1).Return(repositories.ErrNotMember).Once()

	err := svc.MarkRead(context.Background(), 5, 1)

	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	msgRepo.AssertExpectations(t)
}

func TestMarkReadAnnouncesReceipt(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	broadcaster := new(mocks.BroadcasterMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.UserDirectoryMock))
	svc.SetBroadcaster(broadcaster)

	msgRepo.On("MarkRead", mock.Anything, 5, 1).Return(nil).Once()
	broadcaster.On("ReadMarked", models.ReadReceipt{ConversationID: 5, UserID: 1}).Once()

	require.NoError(t, svc.MarkRead(context.Background(), 5, 1))
	msgRepo.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}
