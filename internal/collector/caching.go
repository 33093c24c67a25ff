package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"FairValue/internal/cache"
	"FairValue/internal/model"
)

const (
	DefaultSnapshotTTL      = 24 * time.Hour
	DefaultSnapshotCapacity = 1000
)

// CachingProvider memoizes another provider's snapshots.
type CachingProvider struct {
	next  Provider
	store *cache.Store[*model.FinancialSnapshot]
	log   zerolog.Logger
}

// NewCachingProvider wraps next. Zero options take the defaults.
func NewCachingProvider(next Provider, opts cache.Options, log zerolog.Logger) *CachingProvider {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSnapshotTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultSnapshotCapacity
	}
	return &CachingProvider{
		next:  next,
		store: cache.NewStore("snapshots", opts, (*model.FinancialSnapshot).Clone, log),
		log:   log.With().Str("component", "collector").Str("provider", next.Name()).Logger(),
	}
}

func (p *CachingProvider) Name() string { return p.next.Name() }

func (p *CachingProvider) Fetch(ctx context.Context, ticker string) (*model.FinancialSnapshot, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if snap, ok := p.store.Get(t); ok {
		p.log.Debug().Str("ticker", t).Msg("Using cached financial data")
		return snap, nil
	}

	snap, err := p.next.Fetch(ctx, t)
	if err != nil {
		return nil, err
	}
	p.store.Put(t, snap)
	return snap, nil
}

// Invalidate forces the next Fetch for ticker to reach the wrapped provider.
func (p *CachingProvider) Invalidate(ticker string) {
	if t, err := NormalizeTicker(ticker); err == nil {
		p.store.Invalidate(t)
	}
}

// Store exposes the snapshot cache for sweeping and reporting.
func (p *CachingProvider) Store() *cache.Store[*model.FinancialSnapshot] { return p.store }
