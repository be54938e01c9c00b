// Package scheduler runs the periodic trending refresh.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/logger"
	"go.uber.org/zap"
)

// Refresher recomputes the trending warm set; *trending.Service implements it
type Refresher interface {
	RefreshAll(ctx context.Context) (time.Time, error)
}

// RefreshJob calls RefreshAll on startup and then on a fixed interval
type RefreshJob struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRefreshJob creates a refresh job. Each run is bounded by the interval.
func NewRefreshJob(refresher Refresher, interval time.Duration) *RefreshJob {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshJob{
		refresher: refresher,
		interval:  interval,
		timeout:   interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the periodic refresh
func (j *RefreshJob) Start() {
	j.once.Do(func() {
		logger.Log.Info("Starting trending refresh job", zap.Duration("interval", j.interval))
		j.wg.Add(1)
		go j.run()
	})
}

// Stop cancels any in-flight refresh and waits for the loop to exit
func (j *RefreshJob) Stop() {
	logger.Log.Info("Stopping trending refresh job")
	j.cancel()
	j.wg.Wait()
}

func (j *RefreshJob) run() {
	defer j.wg.Done()

	j.refresh()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.refresh()
		case <-j.ctx.Done():
			return
		}
	}
}

func (j *RefreshJob) refresh() {
	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	if _, err := j.refresher.RefreshAll(ctx); err != nil {
		if j.ctx.Err() != nil {
			return
		}
		logger.Log.Warn("Scheduled trending refresh failed", zap.Error(err))
	}
}
