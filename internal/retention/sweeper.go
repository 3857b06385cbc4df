// Package retention deletes old queue items and stale admin tokens on a
// daily schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultSchedule  = "0 0 * * *"
	DefaultTimezone  = "Africa/Cairo"
	DefaultQueueTTL  = 7 * 24 * time.Hour
	DefaultTokenTTL  = 30 * 24 * time.Hour
	defaultRunBudget = 5 * time.Minute
)

type Config struct {
	Schedule string
	Timezone string
	QueueTTL time.Duration
	TokenTTL time.Duration
}

// Report counts what one sweep removed. A pass that failed has its Err set.
type Report struct {
	QueueDeleted int
	QueueErr     error
	TokenDeleted int
	TokenErr     error
}

// Sweeper runs two independent best-effort passes per tick.
type Sweeper struct {
	cron     *cron.Cron
	schedule string
	queue    dispatch.QueueStore
	tokens   dispatch.AdminTokenStore
	queueTTL time.Duration
	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock replaces time.Now when computing cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(cfg Config, queue dispatch.QueueStore, tokens dispatch.AdminTokenStore, logger *slog.Logger, opts ...Option) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = DefaultQueueTTL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep timezone %q: %w", cfg.Timezone, err)
	}

	s := &Sweeper{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: cfg.Schedule,
		queue:    queue,
		tokens:   tokens,
		queueTTL: cfg.QueueTTL,
		tokenTTL: cfg.TokenTTL,
		now:      time.Now,
		logger:   logger.With("component", "RetentionSweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Retention sweeper started", "schedule", s.schedule)
}

// Stop waits for a running sweep to finish, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Retention sweeper stop timed out")
	}
	s.logger.Info("Retention sweeper stopped")
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunBudget)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep runs both passes once. A failure in one pass never skips the other.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	now := s.now()
	var r Report

	r.QueueDeleted, r.QueueErr = s.queue.DeleteProcessedBefore(ctx, now.Add(-s.queueTTL))
	if r.QueueErr != nil {
		s.logger.Error("Queue retention pass failed", "err", r.QueueErr)
	} else {
		s.logger.Info("Deleted old notification queue items", "count", r.QueueDeleted)
	}

	r.TokenDeleted, r.TokenErr = s.tokens.DeleteUpdatedBefore(ctx, now.Add(-s.tokenTTL))
	if r.TokenErr != nil {
		s.logger.Error("Admin token retention pass failed", "err", r.TokenErr)
	} else {
		s.logger.Info("Deleted stale admin tokens", "count", r.TokenDeleted)
	}

	return r
}
