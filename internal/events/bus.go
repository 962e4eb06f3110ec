package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const (
	TopicLogout         = "auth.logout"
	TopicSaleRegistered = "sales.registered"
)

// LogoutEvent is published when a user ends their session.
type LogoutEvent struct {
	Username  string    `json:"username"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// SaleEvent is published after a sale has been committed.
type SaleEvent struct {
	SaleID         int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	SaleDate       time.Time `json:"sale_date"`
	Total          string    `json:"total_venta"`
	RemainingStock int       `json:"remaining_stock"`
	SoldBy         string    `json:"sold_by,omitempty"`
}

// Publisher is the narrow interface handlers depend on.
type Publisher interface {
	PublishLogout(ctx context.Context, event LogoutEvent) error
	PublishSale(ctx context.Context, event SaleEvent) error
}

// Bus publishes and consumes domain events over a watermill pub/sub.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	// shared is set when publisher and subscriber are the same pub/sub.
	shared bool
}

// NewBus creates a Bus on top of existing watermill primitives.
func NewBus(publisher message.Publisher, subscriber message.Subscriber) *Bus {
	return &Bus{publisher: publisher, subscriber: subscriber}
}

// NewInProcessBus creates a Bus backed by a go channel pub/sub.
func NewInProcessBus(logger watermill.LoggerAdapter) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	bus := NewBus(pubSub, pubSub)
	bus.shared = true
	return bus
}

// NewRedisBus creates a Bus on Redis streams. consumerGroup names the group
// this service reads with.
func NewRedisBus(client redis.UniversalClient, consumerGroup string, logger watermill.LoggerAdapter) (*Bus, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: consumerGroup,
		},
		logger,
	)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create redis stream subscriber: %w", err)
	}

	return NewBus(publisher, subscriber), nil
}

// PublishLogout publishes a LogoutEvent on TopicLogout.
func (b *Bus) PublishLogout(ctx context.Context, event LogoutEvent) error {
	return b.publish(ctx, TopicLogout, event)
}

// PublishSale publishes a SaleEvent on TopicSaleRegistered.
func (b *Bus) PublishSale(ctx context.Context, event SaleEvent) error {
	return b.publish(ctx, TopicSaleRegistered, event)
}

func (b *Bus) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns the message stream of topic. Consumers must Ack or Nack
// every message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

// Close shuts down both ends of the bus.
func (b *Bus) Close() error {
	pubErr := b.publisher.Close()
	if b.shared {
		return pubErr
	}
	return errors.Join(pubErr, b.subscriber.Close())
}
