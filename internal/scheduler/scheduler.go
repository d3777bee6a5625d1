package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type syncer interface {
	SyncAll(ctx context.Context) (*model.SyncResult, error)
}

// Scheduler triggers a full sync on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	syncer  syncer
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func New(spec string, timeout time.Duration, s syncer, logger *zap.SugaredLogger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	sch := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		syncer:  s,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := sch.cron.AddFunc(spec, sch.run); err != nil {
		return nil, fmt.Errorf("sync schedule %q: %w", spec, err)
	}

	return sch, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running sync to finish or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.syncer.SyncAll(ctx)
	switch {
	case errors.Is(err, model.ErrSyncInProgress):
		s.logger.Infow("Scheduled sync skipped, another sync is running")
	case err != nil:
		s.logger.Errorw("Scheduled sync failed", "err", err)
	default:
		s.logger.Infow("Scheduled sync finished",
			"google_calendars", len(res.Google.Calendars),
			"google_updated", res.Google.Updated,
			"ics_calendars", len(res.ICS.Calendars),
			"ics_updated", res.ICS.Updated,
		)
	}
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "err", err)...)
}
