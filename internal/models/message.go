package models

import (
	"database/sql"
	"time"
)

// Message types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeFile  = "file"
	TypeAudio = "audio"
)

// ValidType reports whether t is a known message type.
func ValidType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeFile, TypeAudio:
		return true
	}
	return false
}

// Message is one immutable message row.
type Message struct {
	ID             int            `db:"id" json:"id"`
	ConversationID int            `db:"conversation_id" json:"conversation_id"`
	SenderID       int            `db:"sender_id" json:"sender_id"`
	Type           string         `db:"type" json:"type"`
	Content        string         `db:"content" json:"content,omitempty"`
	MediaURL       sql.NullString `db:"media_url" json:"-"`
	ReplyTo        sql.NullInt64  `db:"reply_to" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`

	// Resolved by the service layer, never stored.
	Sender *UserBrief `db:"-" json:"sender,omitempty"`
}

func (m Message) MediaURLString() string {
	if m.MediaURL.Valid {
		return m.MediaURL.String
	}
	return ""
}

func (m Message) ReplyToID() int {
	if m.ReplyTo.Valid {
		return int(m.ReplyTo.Int64)
	}
	return 0
}

// MessageView is the JSON shape of a message on both the REST and
// websocket paths.
type MessageView struct {
	ID             int        `json:"id"`
	ConversationID int        `json:"conversation_id"`
	SenderID       int        `json:"sender_id"`
	Type           string     `json:"type"`
	Content        string     `json:"content,omitempty"`
	MediaURL       string     `json:"media_url,omitempty"`
	ReplyTo        int        `json:"reply_to,omitempty"`
	Sender         *UserBrief `json:"sender,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// View converts a row to its API shape.
func (m Message) View() MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Type:           m.Type,
		Content:        m.Content,
		MediaURL:       m.MediaURLString(),
		ReplyTo:        m.ReplyToID(),
		Sender:         m.Sender,
		CreatedAt:      m.CreatedAt,
	}
}

// SendInput is the payload handed to the send pipeline.
type SendInput struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	MediaURL string `json:"media_url"`
	ReplyTo  int    `json:"reply_to"`
}
