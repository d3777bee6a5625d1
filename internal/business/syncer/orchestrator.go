package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type sourceSyncer interface {
	Sync(ctx context.Context) (model.SyncSummary, error)
}

// Locker guards a sync across processes.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

type Orchestrator struct {
	google  sourceSyncer
	ics     sourceSyncer
	locker  Locker
	logger  *zap.SugaredLogger
	running atomic.Bool
}

type OrchestratorOption func(*Orchestrator)

// WithLocker adds a cross-process lock on top of the in-process guard.
func WithLocker(l Locker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

func NewOrchestrator(google, ics sourceSyncer, logger *zap.SugaredLogger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		google: google,
		ics:    ics,
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncAll runs both sources concurrently. A call made while another one is
// running fails with model.ErrSyncInProgress.
func (o *Orchestrator) SyncAll(ctx context.Context) (*model.SyncResult, error) {
	if !o.running.CAS(false, true) {
		return nil, model.ErrSyncInProgress
	}
	defer o.running.Store(false)

	if o.locker != nil {
		unlock, ok, err := o.locker.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !ok {
			return nil, model.ErrSyncInProgress
		}
		defer unlock()
	}

	started := time.Now()
	res := &model.SyncResult{}

	var g errgroup.Group
	g.Go(func() error {
		sum, err := o.google.Sync(ctx)
		if err != nil {
			return fmt.Errorf("google: %w", err)
		}
		res.Google = sum
		return nil
	})
	g.Go(func() error {
		sum, err := o.ics.Sync(ctx)
		if err != nil {
			return fmt.Errorf("ics: %w", err)
		}
		res.ICS = sum
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.logger.Infow("Sync finished",
		"google_updated", res.Google.Updated,
		"ics_updated", res.ICS.Updated,
		"took", time.Since(started),
	)

	return res, nil
}

// Running reports whether a sync is in progress in this process.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}
