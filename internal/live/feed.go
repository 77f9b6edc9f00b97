package live

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultChannel is the Postgres NOTIFY channel carrying topic names.
const DefaultChannel = "skill_exchange_changes"

// Feed publishes change signals after a write commits.
type Feed interface {
	Publish(ctx context.Context, topics ...Topic) error
}

// LocalFeed signals the in-process broker directly. Suitable for a single
// instance.
type LocalFeed struct {
	broker *Broker
}

// NewLocalFeed builds a LocalFeed.
func NewLocalFeed(broker *Broker) *LocalFeed {
	return &LocalFeed{broker: broker}
}

func (f *LocalFeed) Publish(_ context.Context, topics ...Topic) error {
	f.broker.Notify(topics...)
	return nil
}

// PostgresFeed sends each topic through pg_notify so that every instance
// running a PGListener on the same channel sees it.
type PostgresFeed struct {
	db      *sqlx.DB
	channel string
	local   *Broker
}

// NewPostgresFeed builds a PostgresFeed. local receives the signal directly
// if the notify fails, so this instance's views still refresh.
func NewPostgresFeed(db *sqlx.DB, channel string, local *Broker) *PostgresFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PostgresFeed{db: db, channel: channel, local: local}
}

func (f *PostgresFeed) Publish(ctx context.Context, topics ...Topic) error {
	for i, topic := range topics {
		if _, err := f.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, f.channel, string(topic)); err != nil {
			if f.local != nil {
				f.local.Notify(topics[i:]...)
			}
			return fmt.Errorf("pg_notify %s: %w", topic, err)
		}
	}
	return nil
}
