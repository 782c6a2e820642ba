package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

// ErrLockHeld is returned by RunOnce when another replica owns the cycle.
var ErrLockHeld = errors.New("cron lock held by another instance")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval under Lock. Jobs run
// sequentially; one failing job does not stop the rest of the cycle.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron service: logger required")
	case p.Lock == nil:
		return nil, errors.New("cron service: lock required")
	case p.Registry == nil || len(p.Registry.Jobs()) == 0:
		return nil, errors.New("cron service: at least one job required")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     p.Logger,
		jobs:     p.Registry.Jobs(),
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		switch err := s.cycle(ctx); {
		case errors.Is(err, ErrLockHeld):
			s.logg.Info(ctx, "cron cycle skipped, lock held elsewhere")
		case err != nil:
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one cycle and returns every job error combined.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx)
}

func (s *Service) cycle(ctx context.Context) (err error) {
	won, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !won {
		s.metrics.IncSkippedCycle()
		return ErrLockHeld
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Warn(ctx, "cron lock release failed: "+relErr.Error())
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := s.now()
	err := job.Run(ctx)
	took := s.now().Sub(started)
	s.metrics.ObserveRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(ctx, "cron job completed")
	return nil
}
