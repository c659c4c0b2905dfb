package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for messages and read state.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListNewestFirst(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, userID int) error
}

// MessageRepo is the sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create persists a message and its bookkeeping in one transaction:
// insert the row, point the conversation at it, and increment every other
// member's unread counter. Nothing is visible until commit.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, input models.SendInput) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	mediaURL := sql.NullString{String: input.MediaURL, Valid: input.MediaURL != ""}
	replyTo := sql.NullInt64{Int64: int64(input.ReplyTo), Valid: input.ReplyTo != 0}

	var msg models.Message
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, type, content, media_url, reply_to)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, conversation_id, sender_id, type, content, media_url, reply_to, created_at`,
		conversationID, senderID, input.Type, input.Content, mediaURL, replyTo).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	// Concurrent sends can commit out of timestamp order; the pointer
	// only ever moves forward.
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_id=$1, last_message_at=$2
         WHERE id=$3 AND (last_message_at IS NULL OR last_message_at <= $2)`,
		msg.ID, msg.CreatedAt, conversationID); err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_members SET unread_count = unread_count + 1
         WHERE conversation_id=$1 AND user_id <> $2`,
		conversationID, senderID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, conversation_id, sender_id, type, content, media_url, reply_to, created_at
         FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListNewestFirst returns a page of messages, most recent first.
func (r *MessageRepo) ListNewestFirst(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, conversation_id, sender_id, type, content, media_url, reply_to, created_at
         FROM messages WHERE conversation_id=$1
         ORDER BY id DESC LIMIT $2 OFFSET $3`,
		conversationID, limit, offset)
	return msgs, err
}

// MarkRead zeroes the caller's unread counter and stamps last_read_at.
// Other members' rows are untouched.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversation_members SET unread_count = 0, last_read_at = NOW()
         WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotMember
	}
	return nil
}
