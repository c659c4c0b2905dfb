package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/telemetry"
)

// PublisherMock stands in for the broker publisher in gateway, notifier
// and audit tests. It satisfies both publisher contracts in the tree.
type PublisherMock struct {
	mock.Mock
}

var (
	_ rabbitmq.Publisher  = (*PublisherMock)(nil)
	_ telemetry.Publisher = (*PublisherMock)(nil)
)

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
