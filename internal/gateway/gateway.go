package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/logger"
	"github.com/ss3211545/stock-web-app/pkg/redis"
)

// quoteFields are the scalar fields a list/quote payload can carry;
// provenance is stamped for whichever of them arrived valid.
var quoteFields = []contracts.FieldName{
	contracts.FieldPrice,
	contracts.FieldChangePct,
	contracts.FieldVolume,
	contracts.FieldTurnoverRate,
	contracts.FieldVolumeRatio,
	contracts.FieldMarketCap,
	contracts.FieldDayHigh,
	contracts.FieldLastPrice,
}

// Gateway fronts every upstream data source behind one surface. It walks
// the configured source ladder: the first source answers on STANDARD
// basis, any later one is an ALT_SOURCE substitution that must clear the
// degradation controller first.
// ⭐ SSOT: 多源行情获取与回退只在这里
type Gateway struct {
	registry *Registry
	ladder   []SourceAdapter
	auto     bool

	degrade *DegradationController
	cache   *redis.Cache // nil-safe: redis disabled means cache misses
	health  *healthTracker
	logger  *logger.Logger

	klineCacheTTL time.Duration
}

// New resolves the source priority against the registry and wires the
// gateway. priority entries are source names, or "auto" for
// health-ranked default order.
func New(registry *Registry, priority []string, degrade *DegradationController, cache *redis.Cache, log *logger.Logger) (*Gateway, error) {
	ladder, err := registry.Resolve(priority)
	if err != nil {
		return nil, err
	}

	auto := false
	for _, p := range priority {
		if p == "auto" {
			auto = true
			break
		}
	}

	return &Gateway{
		registry:      registry,
		ladder:        ladder,
		auto:          auto,
		degrade:       degrade,
		cache:         cache,
		health:        newHealthTracker(),
		logger:        log,
		klineCacheTTL: redis.TTLMedium,
	}, nil
}

// Degradation exposes the controller for downstream components.
func (g *Gateway) Degradation() *DegradationController {
	return g.degrade
}

// SourceHealth reports per-source stats for the status endpoint.
func (g *Gateway) SourceHealth() []SourceHealth {
	return g.health.Snapshot()
}

// ladderFor returns the source order for this call. Under "auto",
// sources with a streak of recent failures sink to the back.
func (g *Gateway) ladderFor() []SourceAdapter {
	if g.auto {
		return g.health.rank(g.ladder)
	}
	return g.ladder
}

// StockList fetches the market's full quote list, falling down the
// source ladder on recoverable failures. The winning source is stamped
// into every candidate's provenance.
func (g *Gateway) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, contracts.Source, error) {
	if !contracts.ValidMarket(market) {
		return nil, "", fmt.Errorf("%w: market %q", contracts.ErrConfiguration, market)
	}

	var lastErr error
	for i, src := range g.ladderFor() {
		if i > 0 && !g.degrade.Approve(contracts.SubstituteAltSource, "", fmt.Sprintf("list via %s", src.Name())) {
			break
		}

		start := time.Now()
		cands, err := src.StockList(ctx, market)
		if err != nil {
			g.health.recordFailure(src.Name(), err)
			lastErr = err
			if !contracts.Recoverable(err) {
				return nil, "", err
			}
			g.logger.WithFields(map[string]interface{}{
				"source": string(src.Name()),
				"market": string(market),
				"error":  err.Error(),
			}).Warn("Stock list fetch failed, trying next source")
			continue
		}
		g.health.recordSuccess(src.Name(), time.Since(start))

		basis := contracts.BasisStandard
		if i > 0 {
			basis = contracts.BasisAlternative
		}
		for _, c := range cands {
			stampQuoteProvenance(c, src.Name(), basis)
		}
		return cands, src.Name(), nil
	}

	return nil, "", exhausted("stock list", market, lastErr)
}

// Quote fetches one stock's realtime snapshot through the ladder, with a
// short-TTL cache in front.
func (g *Gateway) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	key := redis.QuoteKey(string(market) + ":" + code)
	if g.cache != nil {
		var cached contracts.Candidate
		if hit, _ := g.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	var lastErr error
	for i, src := range g.ladderFor() {
		if i > 0 && !g.degrade.Approve(contracts.SubstituteAltSource, contracts.FieldPrice, fmt.Sprintf("quote %s via %s", code, src.Name())) {
			break
		}

		start := time.Now()
		cand, err := src.Quote(ctx, code, market)
		if err != nil {
			g.health.recordFailure(src.Name(), err)
			lastErr = err
			if !contracts.Recoverable(err) {
				return nil, err
			}
			continue
		}
		g.health.recordSuccess(src.Name(), time.Since(start))

		basis := contracts.BasisStandard
		if i > 0 {
			basis = contracts.BasisAlternative
		}
		stampQuoteProvenance(cand, src.Name(), basis)

		if g.cache != nil {
			_ = g.cache.Set(ctx, key, cand, redis.TTLShort)
		}
		return cand, nil
	}

	return nil, exhausted("quote "+code, market, lastErr)
}

// Field resolves a single quote field for a candidate, refetching the
// quote through the ladder when the candidate does not carry it yet.
// A value no source delivers comes back as Missing, not as an error.
func (g *Gateway) Field(ctx context.Context, cand *contracts.Candidate, name contracts.FieldName) (contracts.Field, contracts.FieldProvenance, error) {
	if f := cand.FieldByName(name); f.Valid {
		return f, cand.Provenance[name], nil
	}

	fresh, err := g.Quote(ctx, cand.Code, cand.Market)
	if err != nil {
		return contracts.Missing, contracts.FieldProvenance{}, err
	}
	if f := fresh.FieldByName(name); f.Valid {
		return f, fresh.Provenance[name], nil
	}
	return contracts.Missing, contracts.FieldProvenance{}, nil
}

// Kline fetches an OHLCV series through the ladder, cached per
// code/granularity/length.
func (g *Gateway) Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	if !granularity.Valid() {
		return nil, fmt.Errorf("%w: granularity %q", contracts.ErrConfiguration, granularity)
	}

	key := redis.KlineKey(string(market)+":"+code, string(granularity), count)
	if g.cache != nil {
		var cached contracts.KlineSeries
		if hit, _ := g.cache.Get(ctx, key, &cached); hit && len(cached.Bars) > 0 {
			return &cached, nil
		}
	}

	series, err := g.klineLadder(ctx, code, market, granularity, count, false)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		_ = g.cache.Set(ctx, key, series, g.klineCacheTTL)
	}
	return series, nil
}

// IndexKline fetches the benchmark index series for a market.
func (g *Gateway) IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	key := redis.KlineKey("index:"+string(market), string(granularity), count)
	if g.cache != nil {
		var cached contracts.KlineSeries
		if hit, _ := g.cache.Get(ctx, key, &cached); hit && len(cached.Bars) > 0 {
			return &cached, nil
		}
	}

	series, err := g.klineLadder(ctx, "", market, granularity, count, true)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		_ = g.cache.Set(ctx, key, series, g.klineCacheTTL)
	}
	return series, nil
}

func (g *Gateway) klineLadder(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int, index bool) (*contracts.KlineSeries, error) {
	what := "kline " + code
	if index {
		what = "index kline"
	}

	var lastErr error
	for i, src := range g.ladderFor() {
		if i > 0 && !g.degrade.Approve(contracts.SubstituteAltSource, contracts.FieldKline, fmt.Sprintf("%s via %s", what, src.Name())) {
			break
		}

		start := time.Now()
		var (
			series *contracts.KlineSeries
			err    error
		)
		if index {
			series, err = src.IndexKline(ctx, market, granularity, count)
		} else {
			series, err = src.Kline(ctx, code, market, granularity, count)
		}
		if err != nil {
			g.health.recordFailure(src.Name(), err)
			lastErr = err
			if !contracts.Recoverable(err) {
				return nil, err
			}
			continue
		}
		g.health.recordSuccess(src.Name(), time.Since(start))

		series.Provenance = contracts.FieldProvenance{Source: src.Name(), Basis: contracts.BasisStandard}
		if i > 0 {
			series.Provenance.Basis = contracts.BasisAlternative
		}
		return series, nil
	}

	return nil, exhausted(what, market, lastErr)
}

// stampQuoteProvenance records the source for every field the payload
// actually delivered. Fields that stayed MISSING get no entry.
func stampQuoteProvenance(c *contracts.Candidate, src contracts.Source, basis contracts.Basis) {
	if c.Provenance == nil {
		c.Provenance = make(contracts.Provenance)
	}
	for _, name := range quoteFields {
		if c.FieldByName(name).Valid {
			c.Provenance.Record(name, src, basis)
		}
	}
}

func exhausted(what string, market contracts.Market, lastErr error) error {
	if lastErr == nil {
		lastErr = errors.New("no source attempted")
	}
	return fmt.Errorf("%w: %s for market %s: last error: %v", contracts.ErrAllSourcesExhausted, what, market, lastErr)
}
