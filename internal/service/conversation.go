package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/grpc"
	"messaging-service/internal/logger"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ConversationService owns conversation and membership operations.
type ConversationService struct {
	repo    repositories.ConversationRepository
	users   UserDirectory
	audit   *telemetry.AuditEmitter
	timeout time.Duration
}

// NewConversationService constructs a ConversationService.
func NewConversationService(repo repositories.ConversationRepository, users UserDirectory, audit *telemetry.AuditEmitter, timeout time.Duration) *ConversationService {
	return &ConversationService{repo: repo, users: users, audit: audit, timeout: timeout}
}

func opCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GetOrCreatePrivate returns the single private conversation for the
// unordered pair, creating it on first contact.
func (s *ConversationService) GetOrCreatePrivate(ctx context.Context, userID, targetID int) (models.ConversationDetail, error) {
	if userID == targetID {
		return models.ConversationDetail{}, apperrors.InvalidInput("cannot start a conversation with yourself")
	}

	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	other, err := s.users.GetBrief(ctx, targetID)
	if err != nil {
		if errors.Is(err, grpc.ErrUserNotFound) {
			return models.ConversationDetail{}, apperrors.NotFound("target user not found")
		}
		return models.ConversationDetail{}, apperrors.Unavailable("user lookup failed", err)
	}

	conv, created, err := s.repo.GetOrCreatePrivate(ctx, userID, targetID)
	if err != nil {
		return models.ConversationDetail{}, apperrors.FromStore("create private conversation", err)
	}
	if created {
		logger.Info().Int("conversation_id", conv.ID).Int("user_id", userID).Int("target_id", targetID).
			Msg("private conversation created")
		s.audit.Emit(ctx, "info", fmt.Sprintf("private conversation %d created", conv.ID), userID)
	}

	return models.ConversationDetail{
		ID:        conv.ID,
		Kind:      conv.Kind,
		Other:     &other,
		CreatedAt: conv.CreatedAt,
	}, nil
}

// CreateGroup creates a group conversation. The owner is deduplicated into
// the member set and at least two other members are required.
func (s *ConversationService) CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ConversationDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ConversationDetail{}, apperrors.InvalidInput("group name is required")
	}

	seen := map[int]struct{}{ownerID: {}}
	members := []int{ownerID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 3 {
		return models.ConversationDetail{}, apperrors.InvalidInput("a group needs at least two members besides the owner")
	}

	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	briefs, err := s.users.BulkBriefs(ctx, members)
	if err != nil {
		return models.ConversationDetail{}, apperrors.Unavailable("user lookup failed", err)
	}
	known := make(map[int]models.UserBrief, len(briefs))
	for _, b := range briefs {
		known[b.ID] = b
	}
	for _, id := range members {
		if _, ok := known[id]; !ok {
			return models.ConversationDetail{}, apperrors.InvalidInput(fmt.Sprintf("unknown member %d", id))
		}
	}

	conv, err := s.repo.CreateGroup(ctx, ownerID, name, members)
	if err != nil {
		return models.ConversationDetail{}, apperrors.FromStore("create group", err)
	}
	logger.Info().Int("conversation_id", conv.ID).Int("owner_id", ownerID).Int("members", len(members)).
		Msg("group conversation created")
	s.audit.Emit(ctx, "info", fmt.Sprintf("group conversation %d created", conv.ID), ownerID)

	memberBriefs := make([]models.UserBrief, 0, len(members))
	for _, id := range members {
		memberBriefs = append(memberBriefs, known[id])
	}
	return models.ConversationDetail{
		ID:        conv.ID,
		Kind:      conv.Kind,
		Name:      name,
		CreatedBy: ownerID,
		Members:   memberBriefs,
		CreatedAt: conv.CreatedAt,
	}, nil
}

// List returns the caller's conversations, pinned first then most recent,
// with the other party resolved for private ones.
func (s *ConversationService) List(ctx context.Context, userID, page, pageSize int) ([]models.ConversationSummary, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	summaries, err := s.repo.ListForUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperrors.FromStore("list conversations", err)
	}

	otherIDs := make([]int, 0, len(summaries))
	for _, c := range summaries {
		if c.OtherUserID != 0 {
			otherIDs = append(otherIDs, c.OtherUserID)
		}
	}
	if len(otherIDs) > 0 {
		briefs, err := s.users.BulkBriefs(ctx, otherIDs)
		if err != nil {
			return nil, apperrors.Unavailable("user lookup failed", err)
		}
		byID := make(map[int]models.UserBrief, len(briefs))
		for _, b := range briefs {
			byID[b.ID] = b
		}
		for i := range summaries {
			if b, ok := byID[summaries[i].OtherUserID]; ok {
				brief := b
				summaries[i].Other = &brief
			}
		}
	}
	return summaries, nil
}

// TogglePin flips the caller's pin flag and returns the new value.
func (s *ConversationService) TogglePin(ctx context.Context, conversationID, userID int) (bool, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	value, err := s.repo.TogglePin(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrNotMember) {
		return false, apperrors.Forbidden("not a member")
	}
	if err != nil {
		return false, apperrors.FromStore("toggle pin", err)
	}
	return value, nil
}

// ToggleMute flips the caller's mute flag and returns the new value.
func (s *ConversationService) ToggleMute(ctx context.Context, conversationID, userID int) (bool, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	value, err := s.repo.ToggleMute(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrNotMember) {
		return false, apperrors.Forbidden("not a member")
	}
	if err != nil {
		return false, apperrors.FromStore("toggle mute", err)
	}
	return value, nil
}

// Leave removes the caller from the conversation. The conversation itself
// is deleted when the last member leaves.
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID int) error {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	remaining, err := s.repo.RemoveMember(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrNotMember) {
		return apperrors.Forbidden("not a member")
	}
	if err != nil {
		return apperrors.FromStore("leave conversation", err)
	}
	if remaining == 0 {
		logger.Info().Int("conversation_id", conversationID).Msg("conversation deleted with last member")
	}
	s.audit.Emit(ctx, "info", fmt.Sprintf("user left conversation %d", conversationID), userID)
	return nil
}

// IsMember exposes the membership check for route guards.
func (s *ConversationService) IsMember(ctx context.Context, conversationID, userID int) (bool, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return false, apperrors.FromStore("membership check", err)
	}
	return member, nil
}

// ConversationIDs lists ids of every conversation the user belongs to.
func (s *ConversationService) ConversationIDs(ctx context.Context, userID int) ([]int, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	ids, err := s.repo.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("list conversation ids", err)
	}
	return ids, nil
}

// TotalUnread sums the caller's unread counters across conversations.
func (s *ConversationService) TotalUnread(ctx context.Context, userID int) (int, error) {
	ctx, cancel := opCtx(ctx, s.timeout)
	defer cancel()

	total, err := s.repo.TotalUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.FromStore("total unread", err)
	}
	return total, nil
}
