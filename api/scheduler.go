/*
scheduler.go - Automated withdrawal scheduler

PURPOSE:
  Periodically resolves the next withdrawal of every active mandate and
  records it once it falls within the scheduling horizon.

DESIGN:
  - Runs a background goroutine woken at each time of a cron expression
  - Skips mandates whose next withdrawal is already recorded
  - Skips withdrawals due later than the band's lead plus Horizon days.
    The lead (band.Lead) is the soonest a band ever resolves, so every
    withdrawal enters the window on some day whatever the band width.
  - Records every pass as a scheduler run for audit and UI display

CONFIGURATION:
  - Schedule: cron expression (default: "0 6 * * *", every day at 06:00)
  - Horizon:  days past the band's lead a withdrawal may be recorded (default: 10)
  - Enabled:  whether the scheduler is active (default: true)

USAGE:
  scheduler, err := NewWithdrawalScheduler(store, service, "0 6 * * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerScheduler endpoint (manual run)
  - mandate/service.go: Schedule
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/mandate"
	"github.com/warp/withdrawal-bands/store/sqlite"
)

const (
	DefaultSchedule = "0 6 * * *"
	DefaultHorizon  = 10
)

// Scheduler run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// WithdrawalScheduler records upcoming withdrawals on a cron schedule.
type WithdrawalScheduler struct {
	Store   *sqlite.Store
	Service *mandate.Service
	Horizon int
	Enabled bool

	schedule *cronexpr.Expression
	expr     string

	timer *time.Timer
	stop  chan struct{}
	wg    sync.WaitGroup
	mu    sync.Mutex
	runMu sync.Mutex
}

// NewWithdrawalScheduler creates a scheduler firing on the cron expression.
func NewWithdrawalScheduler(store *sqlite.Store, svc *mandate.Service, expr string) (*WithdrawalScheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return &WithdrawalScheduler{
		Store:    store,
		Service:  svc,
		Horizon:  DefaultHorizon,
		Enabled:  true,
		schedule: schedule,
		expr:     expr,
	}, nil
}

// Start begins the scheduler.
func (ws *WithdrawalScheduler) Start() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ws.stop != nil {
		return
	}

	ws.stop = make(chan struct{})
	ws.timer = time.NewTimer(time.Until(ws.NextRunTime()))
	ws.wg.Add(1)

	go ws.run(ws.timer, ws.stop)

	log.Printf("[Scheduler] Started with schedule %q, horizon %d days", ws.expr, ws.Horizon)
}

// Stop stops the scheduler and waits for a pass in progress.
func (ws *WithdrawalScheduler) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.stop == nil {
		return
	}
	ws.timer.Stop()
	close(ws.stop)
	ws.wg.Wait()
	ws.stop = nil
	log.Println("[Scheduler] Stopped")
}

func (ws *WithdrawalScheduler) run(timer *time.Timer, stop <-chan struct{}) {
	defer ws.wg.Done()

	for {
		select {
		case <-timer.C:
			ws.RunNow(context.Background())
			timer.Reset(time.Until(ws.NextRunTime()))
		case <-stop:
			return
		}
	}
}

// NextRunTime returns when the next scheduled pass will occur.
func (ws *WithdrawalScheduler) NextRunTime() time.Time {
	return ws.schedule.Next(time.Now())
}

// RunNow performs one pass immediately and returns its run record.
// Passes never overlap.
func (ws *WithdrawalScheduler) RunNow(ctx context.Context) sqlite.SchedulerRun {
	ws.runMu.Lock()
	defer ws.runMu.Unlock()

	today := ws.Service.Today()
	run := sqlite.SchedulerRun{
		ID:            uuid.NewString(),
		Status:        RunRunning,
		ReferenceDate: today,
		StartedAt:     time.Now().UTC(),
	}
	if err := ws.Store.SaveSchedulerRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Error saving run record: %v", err)
	}

	log.Printf("[Scheduler] Checking mandates as of %s", today)

	if err := ws.process(ctx, today, &run); err != nil {
		log.Printf("[Scheduler] Run %s failed: %v", run.ID, err)
		run.Status = RunFailed
		run.Error = err.Error()
	} else {
		run.Status = RunCompleted
	}

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if err := ws.Store.SaveSchedulerRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Error updating run record: %v", err)
	}

	if run.Scheduled > 0 || run.Failed > 0 {
		log.Printf("[Scheduler] Completed: %d scheduled, %d skipped, %d failed",
			run.Scheduled, run.Skipped, run.Failed)
	}
	return run
}

func (ws *WithdrawalScheduler) process(ctx context.Context, today band.Date, run *sqlite.SchedulerRun) error {
	mandates, err := ws.Store.ListMandates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mandates: %w", err)
	}

	leads := make(map[band.Config]int)
	for _, m := range mandates {
		if !m.Active {
			run.Skipped++
			continue
		}

		next, err := band.Resolve(m.Config, today)
		if err != nil {
			log.Printf("[Scheduler] Error resolving %s: %v", m.ID, err)
			run.Failed++
			continue
		}
		lead, ok := leads[m.Config]
		if !ok {
			if lead, err = band.Lead(m.Config); err != nil {
				log.Printf("[Scheduler] Error computing lead of %s: %v", m.ID, err)
				run.Failed++
				continue
			}
			leads[m.Config] = lead
		}
		if next.After(today.AddDays(lead + ws.Horizon)) {
			run.Skipped++
			continue
		}

		existing, err := ws.Store.FindWithdrawal(ctx, m.ID, next)
		if err != nil {
			log.Printf("[Scheduler] Error checking %s on %s: %v", m.ID, next, err)
			run.Failed++
			continue
		}
		if existing != nil {
			run.Skipped++
			continue
		}

		w, err := ws.Service.Schedule(ctx, m.ID, today)
		switch {
		case errors.Is(err, mandate.ErrInactiveMandate):
			run.Skipped++
		case err != nil:
			log.Printf("[Scheduler] Error scheduling %s: %v", m.ID, err)
			run.Failed++
		default:
			log.Printf("[Scheduler] Scheduled %s on %s: %s %s", m.ID, w.Date, w.Amount.StringFixed(2), w.Currency)
			run.Scheduled++
		}
	}
	return nil
}
