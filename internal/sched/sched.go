// Package sched registers the periodic alert poll and the daily digest on a
// cron runner. Jobs run concurrently and may overlap; both jobs are
// read-mostly against the registry and mark-alerted is idempotent, so no
// cross-job locking is needed.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"registrybot/pkg/logx"
)

type Job func(ctx context.Context)

type Service struct {
	c       *cron.Cron
	log     logx.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler. jobTimeout bounds each run; <=0 disables
// the per-run deadline.
func New(log logx.Logger, jobTimeout time.Duration) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		c:       cron.New(cron.WithParser(parser)),
		log:     log,
		timeout: jobTimeout,
	}
}

// AddEvery schedules job on a fixed interval.
func (s *Service) AddEvery(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("sched: %s: interval must be > 0", name)
	}
	return s.add(name, fmt.Sprintf("@every %s", every), job)
}

// AddDaily schedules job once a day at the given wall-clock time.
func (s *Service) AddDaily(name string, hour, minute int, job Job) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("sched: %s: invalid time %02d:%02d", name, hour, minute)
	}
	return s.add(name, DailySpec(hour, minute), job)
}

// DailySpec converts a wall-clock time to a 5-field cron spec.
func DailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func (s *Service) add(name, spec string, job Job) error {
	_, err := s.c.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("sched: add %s (%q): %w", name, spec, err)
	}
	s.log.Info("job registered", logx.String("name", name), logx.String("spec", spec))
	return nil
}

func (s *Service) run(name string, job Job) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked",
				logx.String("name", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	start := time.Now()
	s.log.Debug("job start", logx.String("name", name))
	job(ctx)
	s.log.Debug("job done", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

func (s *Service) Start(ctx context.Context) {
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.c.Entries())))
}

// Stop halts triggering and waits for in-flight jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
	s.log.Info("scheduler stopped")
}
