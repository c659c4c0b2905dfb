package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/logger"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/service"
)

// Routing key prefixes on the shared topic exchange.
const (
	conversationKeyPrefix = "conversation."
	presenceKeyPrefix     = "presence."
)

// BrokerPatterns are the bindings the gateway consumer needs.
var BrokerPatterns = []string{"conversation.*", "presence.*"}

// brokerFrame carries one server event across instances: either a room
// broadcast (ConversationID set) or a direct user delivery (TargetUserID).
type brokerFrame struct {
	ConversationID int             `json:"conversation_id,omitempty"`
	TargetUserID   int             `json:"target_user_id,omitempty"`
	ExcludeUserID  int             `json:"exclude_user_id,omitempty"`
	Event          string          `json:"event"`
	Frame          json.RawMessage `json:"frame"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway authenticates realtime connections, keeps the presence registry
// current, and routes events between clients and the message pipeline.
type Gateway struct {
	registry      *Registry
	verifier      service.TokenVerifier
	conversations *service.ConversationService
	messages      *service.MessageService
	presence      *presence.Store
	notifier      ContactNotifier
	publisher     rabbitmq.Publisher
}

// NewGateway constructs a Gateway.
func NewGateway(registry *Registry, verifier service.TokenVerifier, conversations *service.ConversationService, messages *service.MessageService, store *presence.Store, notifier ContactNotifier, publisher rabbitmq.Publisher) *Gateway {
	return &Gateway{
		registry:      registry,
		verifier:      verifier,
		conversations: conversations,
		messages:      messages,
		presence:      store,
		notifier:      notifier,
		publisher:     publisher,
	}
}

// Handle upgrades the connection and runs its read loop until disconnect.
// Authentication failures reject the handshake before any state exists.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := g.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConnection(userID, observability.IPFromRequest(c.Request), wsConn)
	conn.setupRead()
	conn.Start()

	wasOffline := g.registry.Add(conn)
	observability.IncWSActive()
	observability.IncWSEvent("connect")
	logger.Info().Int("user_id", userID).Str("conn_id", conn.ID).Str("ip", conn.IP).Msg("websocket connected")

	g.subscribeMemberRooms(ctx, conn)

	if wasOffline {
		if err := g.presence.MarkOnline(ctx, userID); err != nil {
			logger.Warn().Err(err).Int("user_id", userID).Msg("presence mark online failed")
		}
		g.notifier.NotifyStatusChange(ctx, userID, true)
	}

	g.readLoop(ctx, conn)

	nowOffline := g.registry.Remove(conn)
	conn.Close(websocket.CloseNormalClosure, "bye")
	observability.DecWSActive()
	observability.IncWSEvent("disconnect")
	logger.Info().Int("user_id", userID).Str("conn_id", conn.ID).Msg("websocket disconnected")

	if nowOffline {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := g.presence.MarkOffline(cleanupCtx, userID); err != nil {
			logger.Warn().Err(err).Int("user_id", userID).Msg("presence mark offline failed")
		}
		g.notifier.NotifyStatusChange(cleanupCtx, userID, false)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func (g *Gateway) subscribeMemberRooms(ctx context.Context, conn *Connection) {
	ids, err := g.conversations.ConversationIDs(ctx, conn.UserID)
	if err != nil {
		logger.Warn().Err(err).Int("user_id", conn.UserID).Msg("room subscription load failed")
		g.sendError(conn, err)
		return
	}
	for _, id := range ids {
		g.registry.Join(id, conn)
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *Connection) {
	for {
		event, err := conn.ReadEvent()
		if err != nil {
			if errors.Is(err, errDecode) {
				g.sendError(conn, apperrors.InvalidInput("malformed event"))
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("read_error")
			}
			return
		}
		g.dispatch(ctx, conn, event)
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *Connection, event models.ClientEvent) {
	observability.IncWSEvent(event.Event)

	switch event.Event {
	case models.EventJoinConversation:
		member, err := g.conversations.IsMember(ctx, event.ConversationID, conn.UserID)
		if err != nil {
			g.sendError(conn, err)
			return
		}
		if !member {
			g.sendError(conn, apperrors.Forbidden("not a member"))
			return
		}
		g.registry.Join(event.ConversationID, conn)

	case models.EventLeaveConversation:
		g.registry.Leave(event.ConversationID, conn)

	case models.EventSendMessage:
		input := models.SendInput{
			Type:     event.Type,
			Content:  event.Content,
			MediaURL: event.MediaURL,
			ReplyTo:  event.ReplyTo,
		}
		// Fan-out happens inside the pipeline's broadcast hand-off.
		if _, err := g.messages.Send(ctx, event.ConversationID, conn.UserID, input); err != nil {
			g.sendError(conn, err)
		}

	case models.EventMarkAsRead:
		if err := g.messages.MarkRead(ctx, event.ConversationID, conn.UserID); err != nil {
			g.sendError(conn, err)
		}

	case models.EventTyping:
		g.relayTyping(models.EventUserTyping, event.ConversationID, conn.UserID)

	case models.EventStopTyping:
		g.relayTyping(models.EventUserStopTyping, event.ConversationID, conn.UserID)

	default:
		g.sendError(conn, apperrors.InvalidInput("unknown event"))
	}
}

// MessageCreated implements service.Broadcaster: room fan-out of a freshly
// committed message, locally and across instances.
func (g *Gateway) MessageCreated(msg models.MessageView) {
	frame := encodeServerEvent(models.EventNewMessage, msg)
	g.deliver(brokerFrame{
		ConversationID: msg.ConversationID,
		Event:          models.EventNewMessage,
		Frame:          frame,
	})
}

// ReadMarked implements service.Broadcaster: read-receipt fan-out to the
// room, excluding the reader.
func (g *Gateway) ReadMarked(receipt models.ReadReceipt) {
	frame := encodeServerEvent(models.EventMessageRead, receipt)
	g.deliver(brokerFrame{
		ConversationID: receipt.ConversationID,
		ExcludeUserID:  receipt.UserID,
		Event:          models.EventMessageRead,
		Frame:          frame,
	})
}

func (g *Gateway) relayTyping(eventName string, conversationID, userID int) {
	frame := encodeServerEvent(eventName, models.TypingNotice{ConversationID: conversationID, UserID: userID})
	g.deliver(brokerFrame{
		ConversationID: conversationID,
		ExcludeUserID:  userID,
		Event:          eventName,
		Frame:          frame,
	})
}

// deliver fans a frame out to local connections and mirrors it onto the
// broker for the other instances.
func (g *Gateway) deliver(bf brokerFrame) {
	g.deliverLocal(bf)

	if g.publisher == nil {
		return
	}
	routingKey := conversationKeyPrefix + strconv.Itoa(bf.ConversationID)
	if bf.TargetUserID != 0 {
		routingKey = presenceKeyPrefix + strconv.Itoa(bf.TargetUserID)
	}
	if err := g.publisher.Publish(context.Background(), routingKey, bf); err != nil {
		logger.Warn().Err(err).Str("routing_key", routingKey).Msg("broker mirror failed")
	}
}

func (g *Gateway) deliverLocal(bf brokerFrame) {
	var delivered int
	if bf.TargetUserID != 0 {
		delivered = g.registry.SendToUser(bf.TargetUserID, bf.Frame)
	} else {
		delivered = g.registry.BroadcastRoom(bf.ConversationID, bf.Frame, bf.ExcludeUserID)
	}
	observability.AddBroadcastDelivered(bf.Event, delivered)
}

// HandleBroker is the consumer callback: events published by other
// instances get delivered to whatever connections live here.
func (g *Gateway) HandleBroker(routingKey string, body []byte) {
	var bf brokerFrame
	if err := json.Unmarshal(body, &bf); err != nil {
		logger.Warn().Err(err).Str("routing_key", routingKey).Msg("malformed broker frame")
		return
	}
	g.deliverLocal(bf)
}

func (g *Gateway) sendError(conn *Connection, err error) {
	payload := encodeServerEvent(models.EventError, models.ErrorPayload{
		Code:    string(apperrors.KindOf(err)),
		Message: apperrors.MessageOf(err),
	})
	_ = conn.Send(payload)
}

func encodeServerEvent(event string, data interface{}) []byte {
	payload, err := json.Marshal(models.ServerEvent{Event: event, Data: data})
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("event encode failed")
		return nil
	}
	return payload
}
