// Package valuation runs a complete valuation: validation, data collection,
// calculation, caching and persistence.
package valuation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"FairValue/internal/cache"
	"FairValue/internal/calculator"
	"FairValue/internal/collector"
	"FairValue/internal/model"
	"FairValue/internal/recorder"
	"FairValue/internal/sensitivity"
	"FairValue/internal/validation"
)

// PriceUnavailableWarning is attached when no current price could be quoted.
const PriceUnavailableWarning = "Current price unavailable; valuation verdict omitted"

// Result is the outcome of Service.Calculate.
type Result struct {
	Output   *model.DCFOutput `json:"output"`
	Warnings []string         `json:"warnings,omitempty"`
	InputID  string           `json:"input_id,omitempty"` // empty when the input was not persisted
	Cached   bool             `json:"cached"`
}

// Service orchestrates one valuation end to end.
type Service struct {
	validator   *validation.Validator
	collector   *collector.Collector
	calc        *calculator.Calculator
	results     *cache.Results
	sensitivity *sensitivity.Engine
	recorder    recorder.Recorder
	log         zerolog.Logger
}

// New creates a Service. results and rec may be nil to disable caching and
// persistence respectively.
func New(col *collector.Collector, calc *calculator.Calculator, results *cache.Results, sens *sensitivity.Engine, rec recorder.Recorder, log zerolog.Logger) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{
		validator:   validation.New(),
		collector:   col,
		calc:        calc,
		results:     results,
		sensitivity: sens,
		recorder:    rec,
		log:         log.With().Str("component", "valuation").Logger(),
	}
}

// Calculate validates in, collects market data and values the company.
// When persistence fails the computed Result is returned together with the
// persistence error.
func (s *Service) Calculate(ctx context.Context, in *model.DCFInput) (*Result, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	in = in.WithDefaults()

	md, err := s.collector.Collect(ctx, in.Ticker)
	if err != nil {
		return nil, err
	}
	in.Ticker = md.Snapshot.Ticker

	res := &Result{}
	key := cache.FingerprintFor(in, md.Snapshot)
	if out, ok := s.cachedOutput(key, md.Price); ok {
		res.Output = out
		res.Cached = true
		s.log.Debug().Str("ticker", in.Ticker).Str("key", key).Msg("Result cache hit")
	} else {
		out, err := s.calc.Calculate(in, md.Snapshot, md.Price)
		if err != nil {
			s.log.Error().Err(err).Str("ticker", in.Ticker).Msg("DCF calculation failed")
			return nil, err
		}
		if err := s.validator.ValidateOutput(out); err != nil {
			return nil, err
		}
		if s.results != nil {
			s.results.Put(key, out)
		}
		res.Output = out
	}

	res.Warnings = warnings(in, res.Output, md.PriceErr)
	for _, w := range res.Warnings {
		s.log.Warn().Str("ticker", in.Ticker).Msg(w)
	}

	if err := s.persist(ctx, in, res); err != nil {
		return res, err
	}

	s.log.Info().
		Str("ticker", in.Ticker).
		Str("fair_value", res.Output.FairValuePerShare.String()).
		Str("verdict", string(res.Output.Verdict)).
		Bool("cached", res.Cached).
		Msg("Valuation complete")
	return res, nil
}

// cachedOutput returns the memoized output for key. The fingerprint excludes
// the price, so the verdict and upside are re-derived when it moved.
func (s *Service) cachedOutput(key string, price decimal.Decimal) (*model.DCFOutput, bool) {
	if s.results == nil {
		return nil, false
	}
	out, ok := s.results.Get(key)
	if !ok {
		return nil, false
	}
	if !out.CurrentPrice.Equal(price) {
		out.CurrentPrice = price
		out.Verdict = calculator.Verdict(out.FairValuePerShare, price)
		out.UpsideDownside = calculator.UpsideDownside(out.FairValuePerShare, price)
	}
	return out, true
}

func (s *Service) persist(ctx context.Context, in *model.DCFInput, res *Result) error {
	id, err := s.recorder.SaveInput(ctx, in)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", in.Ticker).Msg("Failed to save DCF input")
		return err
	}
	res.InputID = id
	if _, err := s.recorder.SaveOutput(ctx, id, res.Output); err != nil {
		s.log.Error().Err(err).Str("ticker", in.Ticker).Str("input_id", id).Msg("Failed to save DCF output")
		return err
	}
	return nil
}

func warnings(in *model.DCFInput, out *model.DCFOutput, priceErr error) []string {
	var ws []string
	if w := validation.ParameterWarning(in); w != "" {
		ws = append(ws, w)
	}
	if w := validation.ReasonablenessWarning(out); w != "" {
		ws = append(ws, w)
	}
	if priceErr != nil || out.CurrentPrice.Sign() <= 0 {
		ws = append(ws, PriceUnavailableWarning)
	}
	return ws
}

// Sensitivity values in and every (growth, discount) pair of the grids.
// Grid rates are fractions.
func (s *Service) Sensitivity(ctx context.Context, in *model.DCFInput, growthGrid, discountGrid []decimal.Decimal) (*model.SensitivityAnalysis, error) {
	if s.sensitivity == nil {
		return nil, errors.New("sensitivity engine not configured")
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	in = in.WithDefaults()

	md, err := s.collector.Collect(ctx, in.Ticker)
	if err != nil {
		return nil, err
	}
	in.Ticker = md.Snapshot.Ticker
	return s.sensitivity.Run(ctx, in, md.Snapshot, md.Price, growthGrid, discountGrid)
}

// History lists stored valuations, newest first.
func (s *Service) History(ctx context.Context, ticker, owner string, limit int) ([]recorder.HistoryEntry, error) {
	return s.recorder.History(ctx, ticker, owner, limit)
}

// Stats summarizes stored verdicts for owner; empty owner covers everyone.
func (s *Service) Stats(ctx context.Context, owner string) (*recorder.Stats, error) {
	return s.recorder.Stats(ctx, owner)
}

// InvalidateResults drops every memoized calculation.
func (s *Service) InvalidateResults() {
	if s.results != nil {
		s.results.Clear()
	}
}
