package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"FairValue/internal/model"
	"FairValue/internal/notifier"
	"FairValue/internal/profiler"
	"FairValue/internal/recorder"
	"FairValue/internal/valuation"
)

// Sweeper drops expired cache entries and returns how many it removed.
type Sweeper interface {
	Sweep() int
}

// Revaluation holds the assumptions used for scheduled watch-list runs.
// Rates are percentage-scale.
type Revaluation struct {
	Tickers         []string
	DiscountRate    decimal.Decimal
	GrowthRate      decimal.Decimal
	TerminalGrowth  decimal.Decimal
	ProjectionYears int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Service  *valuation.Service
	Monitor  *profiler.Monitor
	Recorder recorder.Recorder
	Notifier notifier.Sender // nil disables delivery
	Sweepers []Sweeper
	Ctx      context.Context

	revaluation Revaluation
	log         zerolog.Logger
	now         func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, svc *valuation.Service, mon *profiler.Monitor, rec recorder.Recorder, n notifier.Sender, reval Revaluation, log zerolog.Logger, sweepers ...Sweeper) *Scheduler {
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Service:     svc,
		Monitor:     mon,
		Recorder:    rec,
		Notifier:    n,
		Sweepers:    sweepers,
		Ctx:         ctx,
		revaluation: reval,
		log:         log.With().Str("component", "scheduler").Logger(),
		now:         time.Now,
	}
}

// RegisterAll registers the performance report, cache sweep and watch-list
// revaluation tasks.
func (s *Scheduler) RegisterAll(reportCron, sweepCron, revalueCron string) error {
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	if len(s.revaluation.Tickers) > 0 {
		if _, err := s.Cron.AddFunc(revalueCron, s.revaluationTask); err != nil {
			return fmt.Errorf("register revaluation task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunRevaluationNow values the watch list immediately (RUN_ON_START).
func (s *Scheduler) RunRevaluationNow() []notifier.Revaluation {
	return s.revalue()
}

func (s *Scheduler) reportTask() {
	rep := s.Monitor.Publish()
	if err := s.Recorder.RecordPerformance(s.Ctx, rep); err != nil {
		s.log.Error().Err(err).Msg("Failed to record performance report")
	}
	if rep.Alert {
		s.trySend(notifier.FormatPerformance(rep))
	}
}

func (s *Scheduler) sweepTask() {
	removed := 0
	for _, sw := range s.Sweepers {
		removed += sw.Sweep()
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("Expired cache entries swept")
	}
}

func (s *Scheduler) revaluationTask() {
	s.revalue()
}

func (s *Scheduler) revalue() []notifier.Revaluation {
	r := s.revaluation
	s.log.Info().Strs("tickers", r.Tickers).Msg("Running watch-list revaluation")

	results := make([]notifier.Revaluation, 0, len(r.Tickers))
	for _, ticker := range r.Tickers {
		if err := s.Ctx.Err(); err != nil {
			s.log.Warn().Err(err).Msg("Revaluation cancelled")
			break
		}
		in := model.NewDCFInput(ticker, r.DiscountRate, r.GrowthRate, r.TerminalGrowth, r.ProjectionYears)
		res, err := s.Service.Calculate(s.Ctx, in)

		entry := notifier.Revaluation{Ticker: ticker, Err: err}
		if res != nil {
			// A persistence failure still yields a usable valuation.
			entry.Err = nil
			entry.Output = res.Output
			entry.Warnings = res.Warnings
		}
		if entry.Err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Revaluation failed")
		}
		results = append(results, entry)
	}

	if len(results) > 0 {
		s.trySend(notifier.FormatRevaluation(s.now(), results))
	}
	return results
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(s.Ctx, text); err != nil {
		s.log.Error().Err(err).Msg("Failed to send notification")
	}
}
