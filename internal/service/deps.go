package service

import (
	"context"

	"messaging-service/internal/models"
)

// TokenVerifier is the auth-service contract consumed by the gateway.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int, error)
}

// UserDirectory is the user-service contract: profile briefs and the
// accepted-contacts graph.
type UserDirectory interface {
	GetBrief(ctx context.Context, userID int) (models.UserBrief, error)
	BulkBriefs(ctx context.Context, ids []int) ([]models.UserBrief, error)
	Contacts(ctx context.Context, userID int) ([]int, error)
}

// Broadcaster receives committed pipeline results for best-effort
// realtime fan-out. Implementations must not block the caller.
type Broadcaster interface {
	MessageCreated(msg models.MessageView)
	ReadMarked(receipt models.ReadReceipt)
}
