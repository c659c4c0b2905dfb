package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"messaging-service/internal/logger"
)

// Handler receives one broker event: routing key and raw JSON body.
type Handler func(routingKey string, body []byte)

// Consumer relays broker events published by other instances into this
// process. Each instance binds an exclusive queue to the shared topic
// exchange; deliveries carrying this instance's origin header are skipped
// because they were already delivered locally at publish time.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer connects, binds the given routing patterns and starts the
// delivery loop. Returns nil when AMQP is disabled.
func NewConsumer(amqpURL, exchange, origin string, patterns []string, handler Handler) (*Consumer, error) {
	if amqpURL == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	for _, pattern := range patterns {
		if err := ch.QueueBind(queue.Name, pattern, exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	consumer := &Consumer{conn: conn, ch: ch}
	go func() {
		for delivery := range deliveries {
			if from, _ := delivery.Headers[originHeader].(string); from == origin {
				continue
			}
			handler(delivery.RoutingKey, delivery.Body)
		}
		logger.Warn().Msg("rabbitmq consumer channel closed")
	}()

	logger.Info().Str("exchange", exchange).Str("queue", queue.Name).Msg("rabbitmq consumer started")
	return consumer, nil
}

func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
