package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSyncer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSyncer) SyncAll(context.Context) (*model.SyncResult, error) {
	f.calls.Inc()
	if f.err != nil {
		return nil, f.err
	}
	return &model.SyncResult{ICS: model.SyncSummary{Updated: 3, Calendars: []string{"ics_1"}}}, nil
}

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every five minutes", time.Minute, &fakeSyncer{}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}

func TestRun_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "success", message: "Scheduled sync finished"},
		{name: "in progress", err: model.ErrSyncInProgress, message: "Scheduled sync skipped, another sync is running"},
		{name: "failure", err: errors.New("store down"), message: "Scheduled sync failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := observed()
			fs := &fakeSyncer{err: tt.err}

			s, err := New("@every 5m", time.Minute, fs, logger)
			require.NoError(t, err)

			s.run()
			assert.Equal(t, int32(1), fs.calls.Load())
			assert.Equal(t, 1, logs.FilterMessage(tt.message).Len())
		})
	}
}

func TestScheduler_Triggers(t *testing.T) {
	fs := &fakeSyncer{}
	s, err := New("@every 1s", time.Minute, fs, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	assert.Eventually(t, func() bool { return fs.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
