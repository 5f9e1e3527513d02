package gateway

import (
	"context"
	"fmt"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// SourceAdapter is the per-provider surface the gateway drives. Adapters
// return ErrUnsupported for request kinds they do not serve; the gateway
// treats that like any recoverable failure and moves down the ladder.
type SourceAdapter interface {
	Name() contracts.Source

	// StockList returns the full quote list for a market.
	StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error)

	// Quote returns a realtime snapshot for one stock.
	Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error)

	// Kline returns an OHLCV series, oldest bar first.
	Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error)

	// IndexKline returns the benchmark index series for a market.
	IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error)
}

// Registry holds the wired adapters keyed by source name.
type Registry struct {
	adapters map[contracts.Source]SourceAdapter
}

// NewRegistry indexes the given adapters.
func NewRegistry(adapters ...SourceAdapter) *Registry {
	r := &Registry{adapters: make(map[contracts.Source]SourceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for a source.
func (r *Registry) Get(src contracts.Source) (SourceAdapter, bool) {
	a, ok := r.adapters[src]
	return a, ok
}

// Resolve maps a priority list of source names to adapters, rejecting
// unknown names up front. The special name "auto" expands to every
// registered source in default order; callers re-rank it by health.
func (r *Registry) Resolve(priority []string) ([]SourceAdapter, error) {
	var out []SourceAdapter
	seen := make(map[contracts.Source]bool)

	add := func(src contracts.Source) {
		if a, ok := r.adapters[src]; ok && !seen[src] {
			seen[src] = true
			out = append(out, a)
		}
	}

	for _, name := range priority {
		if name == "auto" {
			for _, src := range contracts.AllSources() {
				add(src)
			}
			continue
		}
		src := contracts.Source(name)
		if !contracts.ValidSource(src) {
			return nil, fmt.Errorf("%w: unknown source %q", contracts.ErrConfiguration, name)
		}
		if _, ok := r.adapters[src]; !ok {
			return nil, fmt.Errorf("%w: source %q not wired", contracts.ErrConfiguration, name)
		}
		add(src)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty source priority", contracts.ErrConfiguration)
	}
	return out, nil
}
