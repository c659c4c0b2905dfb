package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("not a member")
)

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	GetOrCreatePrivate(ctx context.Context, userA, userB int) (models.Conversation, bool, error)
	CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	GetMember(ctx context.Context, conversationID, userID int) (models.Member, error)
	IsMember(ctx context.Context, conversationID, userID int) (bool, error)
	ConversationIDsForUser(ctx context.Context, userID int) ([]int, error)
	ListForUser(ctx context.Context, userID, limit, offset int) ([]models.ConversationSummary, error)
	TogglePin(ctx context.Context, conversationID, userID int) (bool, error)
	ToggleMute(ctx context.Context, conversationID, userID int) (bool, error)
	RemoveMember(ctx context.Context, conversationID, userID int) (int, error)
	TotalUnread(ctx context.Context, userID int) (int, error)
}

// ConversationRepo is the sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// PairKey canonicalizes an unordered user pair so the unique constraint
// enforces symmetric private-conversation dedup.
func PairKey(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// GetOrCreatePrivate returns the private conversation for the pair,
// creating it and both membership rows if absent. Concurrent calls from
// either direction of the pair converge on one row: the insert races are
// absorbed by ON CONFLICT, never surfaced.
func (r *ConversationRepo) GetOrCreatePrivate(ctx context.Context, userA, userB int) (models.Conversation, bool, error) {
	pairKey := PairKey(userA, userB)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, false, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	created := true
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, pair_key) VALUES ('private', $1)
         ON CONFLICT (pair_key) DO NOTHING
         RETURNING id, kind, name, avatar, created_by, pair_key, last_message_id, last_message_at, created_at`,
		pairKey).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		err = tx.GetContext(ctx, &conv,
			`SELECT id, kind, name, avatar, created_by, pair_key, last_message_id, last_message_at, created_at
             FROM conversations WHERE pair_key=$1`, pairKey)
	}
	if err != nil {
		return models.Conversation{}, false, err
	}

	for _, userID := range []int{userA, userB} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, false, err
	}
	return conv, created, nil
}

// CreateGroup creates the conversation and one membership row per member
// in one transaction. memberIDs must already include the owner.
func (r *ConversationRepo) CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, name, created_by) VALUES ('group', $1, $2)
         RETURNING id, kind, name, avatar, created_by, pair_key, last_message_id, last_message_at, created_at`,
		name, ownerID).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, kind, name, avatar, created_by, pair_key, last_message_id, last_message_at, created_at
         FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetMember fetches the caller's membership row.
func (r *ConversationRepo) GetMember(ctx context.Context, conversationID, userID int) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`SELECT conversation_id, user_id, unread_count, is_pinned, is_muted, last_read_at, joined_at
         FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrNotMember
	}
	return member, err
}

// IsMember checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsMember(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_members WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// ConversationIDsForUser lists ids of every conversation the user belongs to.
func (r *ConversationRepo) ConversationIDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT conversation_id FROM conversation_members WHERE user_id=$1`, userID)
	return ids, err
}

type conversationListRow struct {
	models.Conversation
	UnreadCount  int            `db:"unread_count"`
	IsPinned     bool           `db:"is_pinned"`
	IsMuted      bool           `db:"is_muted"`
	MsgID        sql.NullInt64  `db:"msg_id"`
	MsgSender    sql.NullInt64  `db:"msg_sender"`
	MsgType      sql.NullString `db:"msg_type"`
	MsgContent   sql.NullString `db:"msg_content"`
	MsgMedia     sql.NullString `db:"msg_media"`
	MsgCreatedAt sql.NullTime   `db:"msg_created_at"`
}

// ListForUser returns the user's conversations ordered by pin first, then
// most recent activity, with the last-message preview joined in.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.kind, c.name, c.avatar, c.created_by, c.pair_key,
            c.last_message_id, c.last_message_at, c.created_at,
            m.unread_count, m.is_pinned, m.is_muted,
            lm.id AS msg_id, lm.sender_id AS msg_sender, lm.type AS msg_type,
            lm.content AS msg_content, lm.media_url AS msg_media, lm.created_at AS msg_created_at
        FROM conversations c
        JOIN conversation_members m ON m.conversation_id = c.id AND m.user_id = $1
        LEFT JOIN messages lm ON lm.id = c.last_message_id
        ORDER BY m.is_pinned DESC, c.last_message_at DESC NULLS LAST, c.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var row conversationListRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		summary := models.ConversationSummary{
			ID:          row.ID,
			Kind:        row.Kind,
			Name:        row.Name.String,
			Avatar:      row.Avatar.String,
			UnreadCount: row.UnreadCount,
			IsPinned:    row.IsPinned,
			IsMuted:     row.IsMuted,
			CreatedAt:   row.CreatedAt,
		}
		if row.Kind == models.KindPrivate && row.PairKey.Valid {
			summary.OtherUserID = otherFromPairKey(row.PairKey.String, userID)
		}
		if row.LastMessageAt.Valid {
			at := row.LastMessageAt.Time
			summary.LastMessageAt = &at
		}
		if row.MsgID.Valid {
			summary.LastMessage = &models.Message{
				ID:             int(row.MsgID.Int64),
				ConversationID: row.ID,
				SenderID:       int(row.MsgSender.Int64),
				Type:           row.MsgType.String,
				Content:        row.MsgContent.String,
				MediaURL:       row.MsgMedia,
				CreatedAt:      row.MsgCreatedAt.Time,
			}
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

func otherFromPairKey(pairKey string, userID int) int {
	lo, hi := 0, 0
	if _, err := fmt.Sscanf(pairKey, "%d:%d", &lo, &hi); err != nil {
		return 0
	}
	if lo == userID {
		return hi
	}
	return lo
}

// TogglePin flips the caller's pin flag and returns the new value.
func (r *ConversationRepo) TogglePin(ctx context.Context, conversationID, userID int) (bool, error) {
	return r.toggleFlag(ctx, "is_pinned", conversationID, userID)
}

// ToggleMute flips the caller's mute flag and returns the new value.
func (r *ConversationRepo) ToggleMute(ctx context.Context, conversationID, userID int) (bool, error) {
	return r.toggleFlag(ctx, "is_muted", conversationID, userID)
}

func (r *ConversationRepo) toggleFlag(ctx context.Context, column string, conversationID, userID int) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE conversation_members SET %s = NOT %s WHERE conversation_id=$1 AND user_id=$2 RETURNING %s`,
		column, column, column)
	var value bool
	err := r.db.QueryRowxContext(ctx, query, conversationID, userID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotMember
	}
	return value, err
}

// RemoveMember deletes the caller's membership row and returns the number
// of members left. The last member out deletes the conversation; its
// messages go with it via cascade.
func (r *ConversationRepo) RemoveMember(ctx context.Context, conversationID, userID int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrNotMember
	}

	var remaining int
	if err := tx.GetContext(ctx, &remaining,
		`SELECT COUNT(*) FROM conversation_members WHERE conversation_id=$1`, conversationID); err != nil {
		return 0, err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// TotalUnread sums the user's unread counters across all conversations.
func (r *ConversationRepo) TotalUnread(ctx context.Context, userID int) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(unread_count), 0) FROM conversation_members WHERE user_id=$1`, userID)
	return total, err
}
