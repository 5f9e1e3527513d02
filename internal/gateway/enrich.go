package gateway

import (
	"context"
	"sync"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

const (
	// Enough daily bars for MA60 plus the rising-MA60 lookback.
	enrichKlineBars = 70

	// Window (sessions) for the relative-strength comparison.
	strengthWindow = 5

	// Sessions averaged for the volume-ratio approximation.
	volRatioSessions = 5
)

// Enricher fills the kline-derived fields (MAs, relative strength) and
// patches list-payload gaps on a bounded worker pool. Input candidates
// are never mutated: every candidate is cloned, enriched and returned as
// a new value.
type Enricher struct {
	gw      *Gateway
	workers int
	logger  *logger.Logger
}

// NewEnricher builds an enricher over the gateway. workers bounds the
// number of concurrent per-stock fetches.
func NewEnricher(gw *Gateway, workers int, log *logger.Logger) *Enricher {
	if workers <= 0 {
		workers = 8
	}
	return &Enricher{gw: gw, workers: workers, logger: log}
}

// Enrich fetches klines for every candidate and derives MA5/10/20/60,
// the relative-strength metric and any substitutable missing quote
// fields. Enrichment failures degrade the single candidate (fields stay
// MISSING), they never fail the batch. Order is preserved.
//
// The fetched series are returned keyed by code so the bar-consuming
// filter stages (volume rising, MA60 slope) do not refetch.
func (e *Enricher) Enrich(ctx context.Context, market contracts.Market, cands []*contracts.Candidate) ([]*contracts.Candidate, map[string]*contracts.KlineSeries) {
	if len(cands) == 0 {
		return nil, nil
	}

	// One index series serves the whole batch.
	indexSeries, err := e.gw.IndexKline(ctx, market, contracts.KlineDaily, enrichKlineBars)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"market": string(market),
			"error":  err.Error(),
		}).Warn("Index kline unavailable, relative strength will be missing")
		indexSeries = nil
	}

	out := make([]*contracts.Candidate, len(cands))
	seriesByIdx := make([]*contracts.KlineSeries, len(cands))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i], seriesByIdx[i] = e.enrichOne(ctx, market, cands[i], indexSeries)
			}
		}()
	}

	cancelled := false
	for i := range cands {
		select {
		case <-ctx.Done():
			cancelled = true
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		// Cancelled mid-batch: pass the rest through unenriched.
		for j := range out {
			if out[j] == nil {
				out[j] = cands[j].Clone()
			}
		}
	}

	klines := make(map[string]*contracts.KlineSeries, len(cands))
	for i, s := range seriesByIdx {
		if s != nil {
			klines[cands[i].Code] = s
		}
	}
	return out, klines
}

func (e *Enricher) enrichOne(ctx context.Context, market contracts.Market, in *contracts.Candidate, indexSeries *contracts.KlineSeries) (*contracts.Candidate, *contracts.KlineSeries) {
	c := in.Clone()
	if c.Provenance == nil {
		c.Provenance = make(contracts.Provenance)
	}

	series, err := e.gw.Kline(ctx, c.Code, market, contracts.KlineDaily, enrichKlineBars)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"code":  c.Code,
			"error": err.Error(),
		}).Debug("Kline fetch failed, trend fields stay missing")
		series = nil
	}

	if series != nil {
		e.applyMovingAverages(c, series)
		e.applyVolumeRatio(c, series)
		e.applyRelativeStrength(c, series, indexSeries)
	}
	e.applyTurnover(c)
	e.applyHeuristics(c)

	return c, series
}

func (e *Enricher) applyMovingAverages(c *contracts.Candidate, series *contracts.KlineSeries) {
	set := func(name contracts.FieldName, f *contracts.Field, n int) {
		v := series.MA(n)
		if !v.Valid {
			return
		}
		*f = v
		c.Provenance.Record(name, series.Provenance.Source, series.Provenance.Basis)
	}
	set(contracts.FieldMA5, &c.MA5, 5)
	set(contracts.FieldMA10, &c.MA10, 10)
	set(contracts.FieldMA20, &c.MA20, 20)
	set(contracts.FieldMA60, &c.MA60, 60)
}

// applyVolumeRatio approximates a missing 量比 as today's volume over
// the prior sessions' average. ALT_METHOD, gated by the controller.
func (e *Enricher) applyVolumeRatio(c *contracts.Candidate, series *contracts.KlineSeries) {
	if c.VolumeRatio.Valid || !c.Volume.Valid {
		return
	}
	if len(series.Bars) < volRatioSessions+1 {
		return
	}
	if !e.gw.Degradation().Approve(contracts.SubstituteAltMethod, contracts.FieldVolumeRatio, c.Code+" from kline average") {
		return
	}

	// 今日在 bars 末位, 均量取其前 5 根
	prior := series.Bars[len(series.Bars)-volRatioSessions-1 : len(series.Bars)-1]
	var sum float64
	for _, b := range prior {
		sum += b.Volume
	}
	avg := sum / float64(len(prior))
	if avg <= 0 {
		return
	}
	c.VolumeRatio = contracts.F(c.Volume.Value / avg)
	c.Provenance.Record(contracts.FieldVolumeRatio, contracts.SourceDerived, contracts.BasisAlternative)
}

// applyTurnover approximates a missing 换手率 from volume over total
// shares (market cap / price). ALT_METHOD, gated by the controller.
func (e *Enricher) applyTurnover(c *contracts.Candidate) {
	if c.TurnoverRate.Valid {
		return
	}
	if !c.Volume.Valid || !c.MarketCap.Valid || !c.Price.Valid || c.Price.Value <= 0 || c.MarketCap.Value <= 0 {
		return
	}
	if !e.gw.Degradation().Approve(contracts.SubstituteAltMethod, contracts.FieldTurnoverRate, c.Code+" from volume/shares") {
		return
	}

	shares := c.MarketCap.Value / c.Price.Value
	c.TurnoverRate = contracts.F(c.Volume.Value / shares * 100)
	c.Provenance.Record(contracts.FieldTurnoverRate, contracts.SourceDerived, contracts.BasisAlternative)
}

// applyRelativeStrength computes the candidate's cumulative return over
// the window minus the benchmark index's, in percentage points.
func (e *Enricher) applyRelativeStrength(c *contracts.Candidate, series, indexSeries *contracts.KlineSeries) {
	if indexSeries == nil {
		return
	}
	stock := series.CumulativeReturn(strengthWindow)
	index := indexSeries.CumulativeReturn(strengthWindow)
	if !stock.Valid || !index.Valid {
		return
	}

	c.IndexStrength = contracts.F((stock.Value - index.Value) * 100)

	basis := series.Provenance.Basis
	if indexSeries.Provenance.Basis != contracts.BasisStandard {
		basis = indexSeries.Provenance.Basis
	}
	c.Provenance.Record(contracts.FieldIndexStrength, contracts.SourceDerived, basis)
}

// applyHeuristics fills what is still missing with neutral defaults.
// DEFAULT_HEURISTIC, only at the highest degradation level.
func (e *Enricher) applyHeuristics(c *contracts.Candidate) {
	if !c.VolumeRatio.Valid && c.Volume.Valid {
		if e.gw.Degradation().Approve(contracts.SubstituteDefaultHeuristic, contracts.FieldVolumeRatio, c.Code+" neutral default") {
			c.VolumeRatio = contracts.F(1.0)
			c.Provenance.Record(contracts.FieldVolumeRatio, contracts.SourceDerived, contracts.BasisFallback)
		}
	}
	if !c.DayHigh.Valid && c.Price.Valid {
		if e.gw.Degradation().Approve(contracts.SubstituteDefaultHeuristic, contracts.FieldDayHigh, c.Code+" current price stands in") {
			c.DayHigh = c.Price
			c.Provenance.Record(contracts.FieldDayHigh, contracts.SourceDerived, contracts.BasisFallback)
		}
	}
}
