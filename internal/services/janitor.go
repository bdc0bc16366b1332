package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Cleaner removes local entries under prefix last written before olderThan.
type Cleaner interface {
	Cleanup(prefix string, olderThan time.Time) (int, error)
}

// JanitorConfig controls how often local storage is swept and what it keeps.
type JanitorConfig struct {
	Schedule  string
	Retention time.Duration
}

// Janitor expires stale local storage entries on a cron schedule.
// Board snapshots are kept while the document store is offline since they are
// the only copy the board can fall back to.
type Janitor struct {
	store   Cleaner
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     JanitorConfig
	now     func() time.Time
}

func NewJanitor(store Cleaner, monitor ConnectionHealth, logger *zap.Logger, cfg JanitorConfig) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Janitor{
		store:   store,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(),
		now:     time.Now,
	}

	if _, err := j.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("local storage sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return j, nil
}

// Start launches the cron scheduler.
func (j *Janitor) Start() {
	if j == nil || j.cron == nil {
		return
	}
	j.cron.Start()
	j.logger.Info("local storage janitor started", zap.String("schedule", j.cfg.Schedule))
}

// Stop gracefully stops the scheduler.
func (j *Janitor) Stop(ctx context.Context) {
	if j == nil || j.cron == nil {
		return
	}
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	j.logger.Info("local storage janitor stopped")
}

// Sweep removes expired entries synchronously and returns how many were deleted.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j == nil || j.store == nil {
		return 0, nil
	}

	prefixes := []string{usecase.KeyUsernamePfx, usecase.KeyImagePfx}
	if j.monitor == nil || j.monitor.IsOnline() {
		prefixes = append(prefixes, usecase.KeyBoardSnapshot)
	} else {
		j.logger.Debug("keeping board snapshots (store offline)")
	}

	cutoff := j.now().Add(-j.cfg.Retention)
	total := 0
	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		removed, err := j.store.Cleanup(prefix, cutoff)
		if err != nil {
			return total, err
		}
		total += removed
	}
	if total > 0 {
		j.logger.Info("expired local storage entries removed", zap.Int("count", total))
	}
	return total, nil
}
