/*
scheduler.go - Monthly accrual scheduler

PURPOSE:
  Periodically brings every employee's pool up to the current month by
  calling leave.Service.RunAccrual. Approval also accrues lazily, so a
  missed tick only delays when the credit becomes visible; it never loses
  or doubles it (the per-employee marker makes accrual idempotent).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Each tick targets the month of Now() in UTC

USAGE:
  scheduler := NewAccrualScheduler(svc, logger)
  scheduler.CheckInterval = cfg.Ledger.AccrualInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/service.go: RunAccrual
  - handlers.go: RunAccrual endpoint (manual trigger)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// AccrualRunner is the slice of leave.Service the scheduler drives.
type AccrualRunner interface {
	RunAccrual(ctx context.Context, companyID string, month generic.YearMonth) (leave.AccrualReport, error)
}

// AccrualScheduler credits monthly accrual on a ticker.
type AccrualScheduler struct {
	Runner        AccrualRunner
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a scheduler that checks every hour.
func NewAccrualScheduler(runner AccrualRunner, logger *zap.Logger) *AccrualScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualScheduler{
		Runner:        runner,
		CheckInterval: time.Hour,
		Enabled:       true,
		Now:           time.Now,
		logger:        logger.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.logger.Info("started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.logger.Info("stopped")
	}
}

func (s *AccrualScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow runs one accrual pass for the current month.
func (s *AccrualScheduler) RunNow(ctx context.Context) (leave.AccrualReport, error) {
	month := generic.DateOf(s.Now().UTC()).YearMonth()

	rep, err := s.Runner.RunAccrual(ctx, "", month)
	if err != nil {
		s.logger.Error("accrual pass failed", zap.String("month", string(month)), zap.Error(err))
		return rep, err
	}
	if rep.Credited > 0 || rep.Failed > 0 {
		s.logger.Info("accrual pass complete",
			zap.String("month", string(month)),
			zap.Int("checked", rep.Checked),
			zap.Int("credited", rep.Credited),
			zap.Int("failed", rep.Failed),
		)
	}
	return rep, nil
}
