package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/models"
)

type fakeBatchRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	err     error
	lastReq models.ScrapeRequest
}

func (f *fakeBatchRunner) Run(ctx context.Context, req models.ScrapeRequest) (*models.BatchResult, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	items := []*models.ResultRecord{
		models.NewStructuredRecord("Acme", "", &models.Extraction{Tags: []string{"Oncology"}}),
		models.NewFailureRecord("Beta", "", models.ErrSearchInputNotFound, []string{}),
	}
	return &models.BatchResult{RunID: "run-1", Count: len(items), Items: items}, nil
}

func watchlist(schedule string) common.SchedulerConfig {
	return common.SchedulerConfig{Enabled: true, Schedule: schedule, Companies: []string{"Acme", "Beta"}}
}

func TestService_RunNowRecordsStatus(t *testing.T) {
	runner := &fakeBatchRunner{}
	svc := NewService(watchlist("0 0 6 * * *"), runner, arbor.NewLogger())

	require.NoError(t, svc.RunNow(context.Background()))

	status := svc.Status()
	assert.Equal(t, []string{"Acme", "Beta"}, runner.lastReq.Companies)
	assert.Equal(t, "run-1", status.LastRunID)
	assert.Equal(t, 2, status.LastCount)
	assert.Equal(t, 1, status.LastFailed)
	assert.NotNil(t, status.LastRun)
	assert.False(t, status.IsRunning)
	assert.Empty(t, status.LastError)
}

func TestService_RunNowRecordsError(t *testing.T) {
	runner := &fakeBatchRunner{err: errors.New("browser missing")}
	svc := NewService(watchlist("0 0 6 * * *"), runner, arbor.NewLogger())

	err := svc.RunNow(context.Background())

	require.Error(t, err)
	assert.Equal(t, "browser missing", svc.Status().LastError)
}

func TestService_RejectsOverlappingRuns(t *testing.T) {
	runner := &fakeBatchRunner{block: make(chan struct{})}
	svc := NewService(watchlist("0 0 6 * * *"), runner, arbor.NewLogger())

	done := make(chan error, 1)
	go func() { done <- svc.RunNow(context.Background()) }()

	require.Eventually(t, func() bool { return svc.Status().IsRunning }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, svc.RunNow(context.Background()), ErrAlreadyRunning)

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestService_StartDisabledIsNoop(t *testing.T) {
	cfg := watchlist("0 0 6 * * *")
	cfg.Enabled = false
	svc := NewService(cfg, &fakeBatchRunner{}, arbor.NewLogger())

	require.NoError(t, svc.Start())
	assert.Nil(t, svc.Status().NextRun)
	require.NoError(t, svc.Stop())
}

func TestService_StartInvalidSchedule(t *testing.T) {
	svc := NewService(watchlist("every morning"), &fakeBatchRunner{}, arbor.NewLogger())
	assert.Error(t, svc.Start())
}

func TestService_ScheduledRun(t *testing.T) {
	runner := &fakeBatchRunner{}
	svc := NewService(watchlist("* * * * * *"), runner, arbor.NewLogger())

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.NotNil(t, svc.Status().NextRun)
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Error(t, svc.Start())
}

func TestService_EmptyWatchlist(t *testing.T) {
	svc := NewService(common.SchedulerConfig{Enabled: true, Schedule: "* * * * * *"}, &fakeBatchRunner{}, arbor.NewLogger())

	require.NoError(t, svc.Start())
	assert.Error(t, svc.RunNow(context.Background()))
}
