// Package janitor periodically drops finished attempts from the live store.
package janitor

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Sweeper removes attempts that finished before the cutoff.
type Sweeper interface {
	SweepFinished(before time.Time) int
}

// Janitor runs the sweep on a gocron schedule.
type Janitor struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(sweeper Sweeper, retention time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Start schedules the sweep every interval without blocking.
func (j *Janitor) Start(interval time.Duration) error {
	if _, err := j.scheduler.Every(interval).SingletonMode().Do(j.Sweep); err != nil {
		return err
	}
	j.scheduler.StartAsync()
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// Sweep drops attempts that finished more than the retention period ago.
func (j *Janitor) Sweep() int {
	removed := j.sweeper.SweepFinished(j.now().Add(-j.retention))
	if removed > 0 {
		j.logger.Debug("swept finished attempts", zap.Int("removed", removed))
	}
	return removed
}
