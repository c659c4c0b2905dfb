package models

// Websocket event names, client to server.
const (
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventMarkAsRead        = "mark-as-read"
	EventTyping            = "typing"
	EventStopTyping        = "stop-typing"
)

// Websocket event names, server to client.
const (
	EventNewMessage         = "new-message"
	EventMessageRead        = "message-read"
	EventUserTyping         = "user-typing"
	EventUserStopTyping     = "user-stop-typing"
	EventFriendStatusChange = "friend-status-change"
	EventError              = "error"
)

// ClientEvent is the inbound websocket frame.
type ClientEvent struct {
	Event          string `json:"event"`
	ConversationID int    `json:"conversation_id"`
	Type           string `json:"type,omitempty"`
	Content        string `json:"content,omitempty"`
	MediaURL       string `json:"media_url,omitempty"`
	ReplyTo        int    `json:"reply_to,omitempty"`
}

// ServerEvent is the outbound websocket frame.
type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ReadReceipt announces a member caught up in a conversation.
type ReadReceipt struct {
	ConversationID int `json:"conversation_id"`
	UserID         int `json:"user_id"`
}

// TypingNotice is the relay-only typing indicator payload.
type TypingNotice struct {
	ConversationID int `json:"conversation_id"`
	UserID         int `json:"user_id"`
}

// StatusChange announces a contact's presence transition.
type StatusChange struct {
	UserID   int  `json:"user_id"`
	IsOnline bool `json:"is_online"`
}

// ErrorPayload carries a structured failure to the emitting client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
