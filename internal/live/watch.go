package live

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"skill-exchange/internal/observability"
)

// Cancel stops a live view. It is idempotent; once it returns no new
// delivery starts and the broker registration is released.
type Cancel func()

// Loader produces the full snapshot for a live view.
type Loader[T any] func(ctx context.Context) (T, error)

// WatchOptions tunes a live view.
type WatchOptions struct {
	// Kind labels metrics, e.g. "messages".
	Kind string
	// Retryable decides whether a failed load is retried. Nil retries
	// every error; a non-retryable error ends the view.
	Retryable func(err error) bool
	// OnError observes every failed load. retrying is false when the view
	// is about to end because of err.
	OnError func(err error, retrying bool)
	// InitialInterval and MaxInterval bound the retry backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Watch opens a live view on topic: it delivers load's result immediately
// and again after every signal, in order, from a single goroutine. Failed
// loads are retried with exponential backoff until they succeed or the
// view is cancelled.
func Watch[T any](ctx context.Context, broker *Broker, topic Topic, load Loader[T], onUpdate func(T), opts WatchOptions) Cancel {
	ctx, cancel := context.WithCancel(ctx)
	signals, unsubscribe := broker.Subscribe(topic)
	observability.IncLiveSubscriptions(opts.Kind)

	go func() {
		defer observability.DecLiveSubscriptions(opts.Kind)
		defer unsubscribe()
		for {
			if !deliver(ctx, load, onUpdate, opts) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-signals:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsubscribe()
		})
	}
}

func deliver[T any](ctx context.Context, load Loader[T], onUpdate func(T), opts WatchOptions) bool {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	if opts.InitialInterval > 0 {
		bo.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		bo.MaxInterval = opts.MaxInterval
	}
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		snapshot, err := load(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil {
			observability.IncLiveReloadFailure(opts.Kind)
			retrying := opts.Retryable == nil || opts.Retryable(err)
			if opts.OnError != nil {
				opts.OnError(err, retrying)
			}
			if !retrying {
				return backoff.Permanent(err)
			}
			return err
		}
		onUpdate(snapshot)
		return nil
	}, backoff.WithContext(bo, ctx))
	return err == nil
}
