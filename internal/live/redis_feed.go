package live

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed publishes topics on a Redis pub/sub channel so instances that
// share Redis but not a Postgres LISTEN connection see each other's writes.
type RedisFeed struct {
	client  *redis.Client
	channel string
	local   *Broker
}

// NewRedisFeed builds a RedisFeed. local is signalled directly when a
// publish fails.
func NewRedisFeed(client *redis.Client, channel string, local *Broker) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{client: client, channel: channel, local: local}
}

func (f *RedisFeed) Publish(ctx context.Context, topics ...Topic) error {
	for i, topic := range topics {
		if err := f.client.Publish(ctx, f.channel, string(topic)).Err(); err != nil {
			if f.local != nil {
				f.local.Notify(topics[i:]...)
			}
			return fmt.Errorf("redis publish %s: %w", topic, err)
		}
	}
	return nil
}

// RedisListener forwards messages from the Redis channel to the broker.
// go-redis resubscribes on its own after a dropped connection; each
// (re)subscription confirmation triggers a full resync.
type RedisListener struct {
	client  *redis.Client
	channel string
	broker  *Broker
	logger  *zap.Logger
}

func NewRedisListener(client *redis.Client, channel string, broker *Broker, logger *zap.Logger) *RedisListener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisListener{client: client, channel: channel, broker: broker, logger: logger}
}

// Run blocks until ctx is cancelled.
func (l *RedisListener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	ch := sub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				l.logger.Info("redis listener subscribed", zap.String("channel", m.Channel))
				l.broker.NotifyAll()
			case *redis.Message:
				l.broker.Notify(Topic(m.Payload))
			}
		}
	}
}
