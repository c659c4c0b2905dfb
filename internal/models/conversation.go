package models

import (
	"database/sql"
	"time"
)

// Conversation kinds.
const (
	KindPrivate = "private"
	KindGroup   = "group"
)

// Conversation is a private or group channel owning messages and members.
type Conversation struct {
	ID            int            `db:"id" json:"id"`
	Kind          string         `db:"kind" json:"kind"`
	Name          sql.NullString `db:"name" json:"-"`
	Avatar        sql.NullString `db:"avatar" json:"-"`
	CreatedBy     sql.NullInt64  `db:"created_by" json:"-"`
	PairKey       sql.NullString `db:"pair_key" json:"-"`
	LastMessageID sql.NullInt64  `db:"last_message_id" json:"-"`
	LastMessageAt sql.NullTime   `db:"last_message_at" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Member is the per-(conversation,user) state row.
type Member struct {
	ConversationID int          `db:"conversation_id" json:"conversation_id"`
	UserID         int          `db:"user_id" json:"user_id"`
	UnreadCount    int          `db:"unread_count" json:"unread_count"`
	IsPinned       bool         `db:"is_pinned" json:"is_pinned"`
	IsMuted        bool         `db:"is_muted" json:"is_muted"`
	LastReadAt     sql.NullTime `db:"last_read_at" json:"-"`
	JoinedAt       time.Time    `db:"joined_at" json:"joined_at"`
}

// ConversationSummary is the list-view entry for one caller.
type ConversationSummary struct {
	ID            int        `json:"id"`
	Kind          string     `json:"kind"`
	Name          string     `json:"name,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	IsPinned      bool       `json:"is_pinned"`
	IsMuted       bool       `json:"is_muted"`
	OtherUserID   int        `json:"-"`
	Other         *UserBrief `json:"other,omitempty"`
	LastMessage   *Message   `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ConversationDetail is returned by create/get-or-create operations.
type ConversationDetail struct {
	ID        int         `json:"id"`
	Kind      string      `json:"kind"`
	Name      string      `json:"name,omitempty"`
	Avatar    string      `json:"avatar,omitempty"`
	CreatedBy int         `json:"created_by,omitempty"`
	Members   []UserBrief `json:"members,omitempty"`
	Other     *UserBrief  `json:"other,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// UserBrief is the resolved profile summary from the user directory.
type UserBrief struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}
