// Package collector gathers the market inputs of a valuation: historical
// financials from a Provider and a current quote from a PriceSource.
package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"FairValue/internal/model"
)

// MarketData is everything a valuation needs from outside the engine.
type MarketData struct {
	Snapshot *model.FinancialSnapshot
	Price    decimal.Decimal // zero when no quote could be obtained
	PriceErr error
}

// Collector fetches financials and price concurrently.
type Collector struct {
	Provider Provider
	Prices   PriceSource
	log      zerolog.Logger
}

// New creates a Collector. prices may be nil, in which case no quote is taken.
func New(provider Provider, prices PriceSource, log zerolog.Logger) *Collector {
	return &Collector{
		Provider: provider,
		Prices:   prices,
		log:      log.With().Str("component", "collector").Logger(),
	}
}

// Collect returns the snapshot for ticker and, when available, its price.
// A provider failure is fatal; a price failure is logged and recorded in
// PriceErr.
func (c *Collector) Collect(ctx context.Context, ticker string) (*MarketData, error) {
	md := &MarketData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := c.Provider.Fetch(gctx, ticker)
		if err != nil {
			return err
		}
		md.Snapshot = snap
		return nil
	})
	if c.Prices != nil {
		g.Go(func() error {
			price, err := c.Prices.CurrentPrice(gctx, ticker)
			if err != nil {
				md.PriceErr = err
				return nil
			}
			md.Price = price
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if model.KindOf(err) == model.KindDataUnavailable {
			return nil, err
		}
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("fetch financials: %w", err))
	}
	if md.PriceErr != nil {
		c.log.Warn().Err(md.PriceErr).Str("ticker", ticker).Str("source", c.Prices.Name()).Msg("Current price unavailable")
	}
	return md, nil
}
