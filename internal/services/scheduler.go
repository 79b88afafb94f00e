package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
)

// DefaultSchedule fires at half past every hour.
const DefaultSchedule = "30 * * * *"

var ErrRunInProgress = errors.New("a run is already in progress")

type JobRunner interface {
	Run(ctx context.Context, mode Mode) (*models.RunRecord, error)
}

// Scheduler fires auto-mode runs on a cron schedule and guarantees at most
// one run at a time, whether scheduled or triggered over the API.
type Scheduler struct {
	Cron   *cron.Cron
	runner JobRunner
	log    *logrus.Entry

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func NewScheduler(schedule string, runner JobRunner, log *logrus.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		Cron:   cron.New(cron.WithLocation(time.UTC)),
		runner: runner,
		log:    logger.For(log, "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.Cron.AddFunc(schedule, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.Trigger(s.ctx, ModeAuto); errors.Is(err, ErrRunInProgress) {
		s.log.Warn("previous run still in progress, skipping scheduled run")
	}
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.WithField("entries", len(s.Cron.Entries())).Info("scheduler started")
}

// Stop halts the schedule, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.cancel()
	s.pending.Wait()
	s.log.Info("scheduler stopped")
}

// Trigger runs mode synchronously unless another run holds the lock.
func (s *Scheduler) Trigger(ctx context.Context, mode Mode) (*models.RunRecord, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.runner.Run(ctx, mode)
}

// RunAsync starts mode in the background. The run is bound to the scheduler
// lifetime rather than to the caller.
func (s *Scheduler) RunAsync(mode Mode) error {
	if !s.mu.TryLock() {
		return ErrRunInProgress
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.mu.Unlock()
		if _, err := s.runner.Run(s.ctx, mode); err != nil {
			s.log.WithError(err).WithField("mode", mode).Error("triggered run failed")
		}
	}()
	return nil
}
