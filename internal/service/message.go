package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/logger"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// MessageService is the send pipeline shared by the REST surface and the
// realtime gateway: both paths persist through here so they observe
// identical committed state.
type MessageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         UserDirectory
	broadcaster   Broadcaster
	audit         *telemetry.AuditEmitter
	timeout       time.Duration
}

// NewMessageService constructs a MessageService.
func NewMessageService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, users UserDirectory, audit *telemetry.AuditEmitter, timeout time.Duration) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		audit:         audit,
		timeout:       timeout,
	}
}

// SetBroadcaster wires the realtime fan-out. Set once at startup; nil
// disables the hand-off (REST list remains the durable path either way).
func (s *MessageService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Send validates, persists and fans out one message. Persistence, the
// last-message pointer and the unread increments commit atomically; the
// broadcast hand-off happens after commit and is best-effort.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.MessageView, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.MessageView{}, apperrors.NotFound("conversation not found")
		}
		return models.MessageView{}, apperrors.FromStore("load conversation", err)
	}

	if _, err := s.conversations.GetMember(ctx, conversationID, senderID); err != nil {
		if errors.Is(err, repositories.ErrNotMember) {
			return models.MessageView{}, apperrors.Forbidden("not a member")
		}
		return models.MessageView{}, apperrors.FromStore("load membership", err)
	}

	if err := s.validateInput(ctx, conversationID, input); err != nil {
		return models.MessageView{}, err
	}

	msg, err := s.messages.Create(ctx, conversationID, senderID, input)
	if err != nil {
		s.audit.Emit(ctx, "error", "message send failed", senderID)
		return models.MessageView{}, apperrors.FromStore("store message", err)
	}

	// The message is committed; profile resolution failure must not undo that.
	if brief, err := s.users.GetBrief(ctx, senderID); err == nil {
		msg.Sender = &brief
	} else {
		logger.Warn().Err(err).Int("user_id", senderID).Msg("sender profile lookup failed")
	}

	view := msg.View()
	if s.broadcaster != nil {
		s.broadcaster.MessageCreated(view)
	}
	return view, nil
}

func (s *MessageService) validateInput(ctx context.Context, conversationID int, input models.SendInput) error {
	if !models.ValidType(input.Type) {
		return apperrors.InvalidInput("unknown message type")
	}
	switch input.Type {
	case models.TypeText:
		if strings.TrimSpace(input.Content) == "" {
			return apperrors.InvalidInput("text message requires content")
		}
	default:
		if input.MediaURL == "" {
			return apperrors.InvalidInput(input.Type + " message requires a media url")
		}
	}

	if input.ReplyTo != 0 {
		target, err := s.messages.Get(ctx, input.ReplyTo)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return apperrors.InvalidInput("reply target does not exist")
		}
		if err != nil {
			return apperrors.FromStore("load reply target", err)
		}
		if target.ConversationID != conversationID {
			return apperrors.InvalidInput("reply target belongs to another conversation")
		}
	}
	return nil
}

// List returns a page of history, oldest first, with sender briefs joined.
func (s *MessageService) List(ctx context.Context, conversationID, userID, page, pageSize int) ([]models.MessageView, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	member, err := s.conversations.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, apperrors.FromStore("membership check", err)
	}
	if !member {
		return nil, apperrors.Forbidden("not a member")
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	msgs, err := s.messages.ListNewestFirst(ctx, conversationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperrors.FromStore("list messages", err)
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	briefByID := map[int]models.UserBrief{}
	if len(senderIDs) > 0 {
		briefs, err := s.users.BulkBriefs(ctx, senderIDs)
		if err != nil {
			return nil, apperrors.Unavailable("user lookup failed", err)
		}
		for _, b := range briefs {
			briefByID[b.ID] = b
		}
	}

	// Store order is newest first; the caller renders oldest first.
	views := make([]models.MessageView, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if b, ok := briefByID[m.SenderID]; ok {
			brief := b
			m.Sender = &brief
		}
		views = append(views, m.View())
	}
	return views, nil
}

// MarkRead zeroes the caller's unread counter and stamps last_read_at,
// then announces the receipt to the room.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID int) error {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	err := s.messages.MarkRead(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrNotMember) {
		return apperrors.Forbidden("not a member")
	}
	if err != nil {
		return apperrors.FromStore("mark read", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ReadMarked(models.ReadReceipt{ConversationID: conversationID, UserID: userID})
	}
	return nil
}
