package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
)

// AcceptedSource lists accepted requests that have no session yet.
type AcceptedSource interface {
	ListAcceptedWithoutSession(ctx context.Context, limit int) ([]models.SkillRequest, error)
}

// SessionCreator creates the session for an accepted request. It must be
// idempotent by request id.
type SessionCreator interface {
	CreateFromRequest(ctx context.Context, req models.SkillRequest) (models.SkillSession, error)
}

// Reconciler repairs accepted requests whose session was never written.
type Reconciler struct {
	requests AcceptedSource
	sessions SessionCreator
	interval time.Duration
	batch    int
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewReconciler(requests AcceptedSource, sessions SessionCreator, interval time.Duration, batch int, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		requests: requests,
		sessions: sessions,
		interval: interval,
		batch:    batch,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Run reconciles once immediately and then on every tick until ctx is
// done or Stop is called.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("starting session reconciler", zap.Duration("interval", r.interval))
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopChan:
			r.logger.Info("session reconciler stopped")
			return nil
		case <-ctx.Done():
			r.logger.Info("session reconciler cancelled")
			return nil
		}
	}
}

func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

// RunOnce performs a single pass and reports how many sessions it created.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	pending, err := r.requests.ListAcceptedWithoutSession(ctx, r.batch)
	if err != nil {
		r.logger.Error("list accepted requests without session", zap.Error(err))
		return 0
	}

	repaired := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			break
		}
		session, err := r.sessions.CreateFromRequest(ctx, req)
		if err != nil {
			r.logger.Warn("repair session failed", zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		repaired++
		observability.IncReconcileRepair()
		r.logger.Info("repaired missing session",
			zap.String("request_id", req.ID),
			zap.String("session_id", session.ID),
		)
	}
	return repaired
}
