package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skill-exchange/internal/live"
	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
)

// Directory is the external user directory.
type Directory interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	QueryUsers(ctx context.Context, q models.UserQuery) ([]models.User, error)
}

// EventPublisher receives domain events after writes commit.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// ErrorFunc observes live view load failures. retrying is false when the
// view ends because of err.
type ErrorFunc func(err error, retrying bool)

// Options carries the collaborators shared by the ledger, registry and
// stream.
type Options struct {
	Broker *live.Broker
	// Feed defaults to a LocalFeed on Broker.
	Feed   live.Feed
	Events EventPublisher
	Logger *zap.Logger
	// NewID defaults to uuid.NewString.
	NewID func() string
	// RetryInterval and MaxRetryInterval bound live view backoff.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Broker == nil {
		o.Broker = live.NewBroker()
	}
	if o.Feed == nil {
		o.Feed = live.NewLocalFeed(o.Broker)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// notifier signals live views and publishes domain events. Neither
// failure undoes a committed write, so both are logged and dropped.
type notifier struct {
	opts Options
}

func (n notifier) changed(ctx context.Context, topics ...live.Topic) {
	if err := n.opts.Feed.Publish(ctx, topics...); err != nil {
		n.opts.Logger.Warn("live feed publish failed", zap.Error(err))
	}
}

func (n notifier) emit(ctx context.Context, name, actorID string, payload any) {
	if n.opts.Events == nil {
		return
	}
	event := models.DomainEvent{
		Name:       name,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:    actorID,
		Payload:    payload,
	}
	if err := n.opts.Events.Publish(ctx, name, event, observability.HeadersFromContext(ctx)); err != nil {
		n.opts.Logger.Warn("domain event publish failed", zap.String("event", name), zap.Error(err))
	}
}

func (n notifier) watchOptions(kind string, onError ErrorFunc) live.WatchOptions {
	logger := n.opts.Logger
	return live.WatchOptions{
		Kind:            kind,
		Retryable:       IsTransient,
		InitialInterval: n.opts.RetryInterval,
		MaxInterval:     n.opts.MaxRetryInterval,
		OnError: func(err error, retrying bool) {
			logger.Warn("live view load failed", zap.String("kind", kind), zap.Bool("retrying", retrying), zap.Error(err))
			if onError != nil {
				onError(err, retrying)
			}
		},
	}
}
