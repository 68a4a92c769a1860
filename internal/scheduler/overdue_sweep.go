// Package scheduler wires cron schedules to the task queue.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okulov/libraria/internal/config"
	"github.com/okulov/libraria/internal/tasks"
)

// OverdueSweepScheduler enqueues a daily overdue scan and, on the same
// schedule, a retention cleanup of old returned loans.
type OverdueSweepScheduler struct {
	taskClient    *tasks.Client
	cfg           config.OverdueSweep
	retentionDays int

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewOverdueSweepScheduler creates a new scheduler instance.
func NewOverdueSweepScheduler(taskClient *tasks.Client, cfg config.OverdueSweep, retentionDays int) *OverdueSweepScheduler {
	return &OverdueSweepScheduler{
		taskClient:    taskClient,
		cfg:           cfg,
		retentionDays: retentionDays,
		cron:       cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if the sweep is enabled.
func (s *OverdueSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		log.Printf("Overdue sweep scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Overdue sweep scheduler: started with schedule '%s'", s.cfg.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to
// finish enqueueing.
func (s *OverdueSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Overdue sweep scheduler: stopped")
}

// RunNow triggers an immediate sweep.
func (s *OverdueSweepScheduler) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active.
func (s *OverdueSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next sweep will occur.
func (s *OverdueSweepScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSweep enqueues the overdue scan and the loan retention cleanup.
func (s *OverdueSweepScheduler) runSweep() {
	now := time.Now().UTC()

	_, err := s.taskClient.Add(tasks.OverdueScanTask{RequestedAt: now}).
		Ctx(context.Background()).
		Save()
	if err != nil {
		log.Printf("Overdue sweep: failed to enqueue overdue scan: %v", err)
	} else {
		log.Printf("Overdue sweep: overdue scan enqueued")
	}

	_, err = s.taskClient.Add(tasks.CleanupReturnedLoansTask{RetentionDays: s.retentionDays}).
		Ctx(context.Background()).
		Save()
	if err != nil {
		log.Printf("Overdue sweep: failed to enqueue loan cleanup: %v", err)
	}
}
