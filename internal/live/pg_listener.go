package live

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PGListener holds a dedicated pgx connection LISTENing on the change
// channel and forwards every notification to the broker. It reconnects
// with exponential backoff and resynchronises all subscribers after each
// reconnect, since notifications sent while disconnected are lost.
type PGListener struct {
	dsn     string
	channel string
	broker  *Broker
	logger  *zap.Logger
}

// NewPGListener builds a listener for channel.
func NewPGListener(dsn, channel string, broker *Broker, logger *zap.Logger) *PGListener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGListener{dsn: dsn, channel: channel, broker: broker, logger: logger}
}

// Run blocks until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, bo.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		l.logger.Warn("postgres listener disconnected, reconnecting",
			zap.String("channel", l.channel),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *PGListener) listen(ctx context.Context, onConnected func()) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	onConnected()
	l.logger.Info("postgres listener connected", zap.String("channel", l.channel))
	l.broker.NotifyAll()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.broker.Notify(Topic(n.Payload))
	}
}
