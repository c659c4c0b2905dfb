package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func messageColumns() []string {
	return []string{"id", "conversation_id", "sender_id", "type", "content", "media_url", "reply_to", "created_at"}
}

func TestCreateMessageTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(5, 1, models.TypeText, "hi", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageColumns()).
			AddRow(9, 5, 1, models.TypeText, "hi", nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversations SET last_message_id=$1, last_message_at=$2")).
		WithArgs(9, now, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("unread_count = unread_count + 1")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg, err := repo.Create(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "hi"})

	require.NoError(t, err)
	require.Equal(t, 9, msg.ID)
	require.Equal(t, 5, msg.ConversationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessagePointerOnlyMovesForward(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(5, 1, models.TypeText, "late commit", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageColumns()).
			AddRow(9, 5, 1, models.TypeText, "late commit", nil, nil, now))
	// The pointer update carries the monotonic guard so a transaction
	// that started earlier but commits later cannot rewind it.
	mock.ExpectExec(regexp.QuoteMeta("last_message_at IS NULL OR last_message_at <= $2")).
		WithArgs(9, now, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("unread_count = unread_count + 1")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Create(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "late commit"})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageUnreadExcludesSender(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(5, 3, models.TypeText, "hi", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageColumns()).
			AddRow(9, 5, 3, models.TypeText, "hi", nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversations SET")).
		WithArgs(9, now, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("user_id <> $2")).
		WithArgs(5, 3).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	_, err := repo.Create(context.Background(), 5, 3, models.SendInput{Type: models.TypeText, Content: "hi"})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageRollsBackOnUnreadFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(5, 1, models.TypeText, "hi", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageColumns()).
			AddRow(9, 5, 1, models.TypeText, "hi", nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversations SET")).
		WithArgs(9, now, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("unread_count = unread_count + 1")).
		WithArgs(5, 1).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), 5, 1, models.SendInput{Type: models.TypeText, Content: "hi"})

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadScopedToCaller(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET unread_count = 0, last_read_at = NOW()")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRead(context.Background(), 5, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadUnknownMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET unread_count = 0")).
		WithArgs(5, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.MarkRead(context.Background(), 5, 9), ErrNotMember)
	require.NoError(t, mock.ExpectationsWereMet())
}
