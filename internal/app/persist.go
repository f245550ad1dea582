package app

import (
	"context"
	"fmt"
	"time"

	"dental-quest-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds write-back retries to the progress store.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig is used when the caller leaves RetryConfig zero.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = c.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

const progressNotSavedWarning = "Your result was scored but your progress could not be saved. Please try again later."

// writeBack records the result and the recomputed progression. The result row
// is keyed by attempt id, so retrying after a lost response never double counts.
func (s *AssessmentService) writeBack(ctx context.Context, record domain.ResultRecord) (domain.ProgressUpdate, error) {
	var update domain.ProgressUpdate
	op := func() error {
		total, err := s.progress.RecordResult(ctx, record)
		if err != nil {
			return err
		}
		prog := Evaluate(total, s.achievements)
		unlocked := UnlockedIDs(prog.Achievements)
		if err := s.progress.SaveProgression(ctx, record.UserID, prog.Level, unlocked); err != nil {
			return err
		}
		update = domain.ProgressUpdate{TotalScore: total, Level: prog.Level, Achievements: unlocked}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("progress write-back failed, retrying",
			zap.String("attemptId", record.AttemptID),
			zap.String("userId", record.UserID),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, s.retry.newBackOff(ctx), notify); err != nil {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: %w", domain.ErrTransientPersistence, err)
	}
	return update, nil
}

// buildOutcome turns a write-back result into what the user is shown. The
// locally computed result is kept whether or not the write succeeded.
func (s *AssessmentService) buildOutcome(result domain.AssessmentResult, update domain.ProgressUpdate, err error) domain.Outcome {
	if err != nil {
		s.recorder.PersistFailed()
		return domain.Outcome{Result: result, Saved: false, Warning: progressNotSavedWarning}
	}
	return domain.Outcome{Result: result, Progress: &update, Saved: true}
}
