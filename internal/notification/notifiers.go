package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"medium", message.Medium,
		"destination", message.Destination,
		"subject", message.Subject,
		"body", message.Body,
		"reference", message.Reference,
	)
	return nil
}

// Publisher is the subset of *amqp091.Channel used to publish alerts.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes alerts to a topic exchange for the email and SMS senders.
type AMQPNotifier struct {
	publisher Publisher
	exchange  string
}

// NewAMQPNotifier builds a notifier publishing to exchange.
func NewAMQPNotifier(publisher Publisher, exchange string) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher, exchange: exchange}
}

// RoutingKey returns the key alerts are published under, e.g. alert.email.credit.
func RoutingKey(message Message) string {
	return fmt.Sprintf("alert.%s.%s", message.Medium, strings.ToLower(string(message.Kind)))
}

// Send publishes the message as JSON.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	err = n.publisher.PublishWithContext(ctx, n.exchange, RoutingKey(message), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    message.Reference,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// StreamNotifier appends alerts to a Redis stream.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

// NewStreamNotifier builds a notifier writing to stream.
func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

// Send adds the message to the stream.
func (n *StreamNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"medium": string(message.Medium),
			"event":  payload,
		},
	}
	if _, err := n.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}
