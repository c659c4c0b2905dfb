package ws

import (
	"context"
	"strconv"

	"messaging-service/internal/logger"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/service"
)

// ContactNotifier announces presence transitions to a user's accepted
// contacts. Pluggable so the per-contact loop can be swapped for a batched
// or broker-driven implementation without touching the gateway.
type ContactNotifier interface {
	NotifyStatusChange(ctx context.Context, userID int, online bool)
}

// DirectoryNotifier is the default notifier: it resolves the contact list
// from the user directory, writes to contacts connected here, and mirrors
// the event onto the broker for contacts connected elsewhere.
type DirectoryNotifier struct {
	registry  *Registry
	users     service.UserDirectory
	publisher rabbitmq.Publisher
}

// NewDirectoryNotifier constructs a DirectoryNotifier.
func NewDirectoryNotifier(registry *Registry, users service.UserDirectory, publisher rabbitmq.Publisher) *DirectoryNotifier {
	return &DirectoryNotifier{registry: registry, users: users, publisher: publisher}
}

// NotifyStatusChange fans the transition out to each contact. Contacts with
// no connection anywhere simply receive nothing: presence is advisory.
func (n *DirectoryNotifier) NotifyStatusChange(ctx context.Context, userID int, online bool) {
	contacts, err := n.users.Contacts(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Int("user_id", userID).Msg("contact lookup failed")
		return
	}

	frame := encodeServerEvent(models.EventFriendStatusChange, models.StatusChange{UserID: userID, IsOnline: online})
	for _, contactID := range contacts {
		if n.registry.IsOnline(contactID) {
			delivered := n.registry.SendToUser(contactID, frame)
			observability.AddBroadcastDelivered(models.EventFriendStatusChange, delivered)
		}
		if n.publisher != nil {
			bf := brokerFrame{
				TargetUserID: contactID,
				Event:        models.EventFriendStatusChange,
				Frame:        frame,
			}
			routingKey := presenceKeyPrefix + strconv.Itoa(contactID)
			if err := n.publisher.Publish(ctx, routingKey, bf); err != nil {
				logger.Warn().Err(err).Str("routing_key", routingKey).Msg("presence mirror failed")
			}
		}
	}
}
