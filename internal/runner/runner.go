package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/pipeline"
	"github.com/ss3211545/stock-web-app/internal/store"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// Runner orchestrates one full screen: list fetch, enrichment, the
// eight gates, quality rollup and archival. Single-flight: starting a
// new run cancels whatever run is still going.
// ⭐ SSOT: 一次完整选股的编排只在这里
type Runner struct {
	gw       *gateway.Gateway
	enricher *gateway.Enricher
	cfg      *strategyconfig.Config
	snapshot *strategyconfig.RunSnapshot
	archiver *store.Archiver // nil when no database is configured
	broker   *Broker
	logger   *logger.Logger

	mu         sync.Mutex
	cancelPrev context.CancelFunc
	last       *contracts.Outcome
}

// New wires a runner. archiver may be nil.
func New(gw *gateway.Gateway, enricher *gateway.Enricher, cfg *strategyconfig.Config, snap *strategyconfig.RunSnapshot, archiver *store.Archiver, broker *Broker, log *logger.Logger) *Runner {
	return &Runner{
		gw:       gw,
		enricher: enricher,
		cfg:      cfg,
		snapshot: snap,
		archiver: archiver,
		broker:   broker,
		logger:   log,
	}
}

// Broker exposes the progress stream for subscribers.
func (r *Runner) Broker() *Broker {
	return r.broker
}

// LastOutcome returns the most recent finished outcome, or nil.
func (r *Runner) LastOutcome() *contracts.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// begin claims the single-flight slot, cancelling the previous run.
func (r *Runner) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPrev != nil {
		r.cancelPrev()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancelPrev = cancel
	return runCtx, cancel
}

// Screen runs the full pipeline for one market.
func (r *Runner) Screen(ctx context.Context, market contracts.Market) (*contracts.Outcome, error) {
	runCtx, cancel := r.begin(ctx)
	defer cancel()

	runID := uuid.NewString()
	started := time.Now()

	r.logger.WithFields(map[string]interface{}{
		"run_id":  runID,
		"market":  string(market),
		"variant": r.cfg.Variant,
	}).Info("Screen run started")

	r.publish(runID, 0, contracts.ProgressRunning, "fetching stock list", nil, false, 0)

	universe, src, err := r.gw.StockList(runCtx, market)
	if err != nil {
		r.publish(runID, 0, contracts.ProgressError, err.Error(), nil, false, 0)
		if errors.Is(err, contracts.ErrConfiguration) {
			// 配置错在起跑前就该死, 不包装成结果
			return nil, fmt.Errorf("stock list: %w", err)
		}

		// 上游全灭不是异常, 报一个带诊断的空结果
		outcome := &contracts.Outcome{
			RunID:       runID,
			Market:      market,
			Timestamp:   started,
			Status:      contracts.StatusError,
			Message:     "stock list: " + err.Error(),
			Reliability: map[string]contracts.Reliability{},
			Degradation: r.gw.Degradation().Config(),
		}
		r.mu.Lock()
		r.last = outcome
		r.mu.Unlock()
		return outcome, nil
	}

	r.publish(runID, 0, contracts.ProgressRunning,
		fmt.Sprintf("enriching %d candidates from %s", len(universe), src), nil, false, 0)

	enriched, klines := r.enricher.Enrich(runCtx, market, universe)
	if err := runCtx.Err(); err != nil {
		r.publish(runID, 0, contracts.ProgressError, "superseded", nil, false, 0)
		return nil, contracts.ErrRunInFlight
	}

	pipe := pipeline.New(r.cfg, r.gw.Degradation(), r.logger)
	result := pipe.Run(runCtx, enriched, klines, func(sr contracts.StageResult) {
		status := contracts.ProgressRunning
		if len(sr.Output) == 0 {
			status = contracts.ProgressStageEmpty
		}
		r.publish(runID, sr.Index, status,
			fmt.Sprintf("%s: %d -> %d", sr.Name, sr.InputCount, len(sr.Output)),
			sr.Output, false, sr.Index)
	})

	outcome := &contracts.Outcome{
		RunID:          runID,
		Market:         market,
		Timestamp:      started,
		Results:        result.Survivors,
		PartialMatch:   result.PartialMatch,
		MaxStepReached: result.MaxStep,
		Status:         result.Status,
		Message:        result.Message,
		Reliability:    pipeline.AssessReliability(result, r.cfg.Variant, klines),
		Stages:         result.Stages,
		Degradation:    r.gw.Degradation().Config(),
	}

	if result.Status == contracts.StatusError {
		r.publish(runID, outcome.MaxStepReached, contracts.ProgressError, result.Message, nil, result.PartialMatch, result.MaxStep)
		return outcome, contracts.ErrRunInFlight
	}

	r.finish(runCtx, outcome)

	status := contracts.ProgressComplete
	if result.Status == contracts.StatusFallback {
		status = contracts.ProgressFallback
	}
	r.publish(runID, outcome.MaxStepReached, status,
		fmt.Sprintf("%d results, status %s", len(outcome.Results), outcome.Status),
		codes(outcome.Results), outcome.PartialMatch, outcome.MaxStepReached)

	r.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"status":   string(outcome.Status),
		"results":  len(outcome.Results),
		"max_step": outcome.MaxStepReached,
		"partial":  outcome.PartialMatch,
		"duration": time.Since(started),
	}).Info("Screen run finished")

	return outcome, nil
}

// finish records the outcome and archives it best-effort.
func (r *Runner) finish(ctx context.Context, outcome *contracts.Outcome) {
	r.mu.Lock()
	r.last = outcome
	r.mu.Unlock()

	if r.archiver == nil {
		return
	}
	// 落库失败只记日志, 不影响本次结果
	archCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.archiver.Archive(archCtx, outcome, r.snapshot); err != nil {
		r.logger.WithFields(map[string]interface{}{
			"run_id": outcome.RunID,
			"error":  err.Error(),
		}).Warn("Outcome archive failed")
	}
}

// Recommendation levels for the per-stock analysis, by how many of the
// eight gates the stock clears.
const (
	RecommendationHigh   = "HIGH"   // >= 7
	RecommendationMedium = "MEDIUM" // >= 5
	RecommendationLow    = "LOW"
)

// Analysis is the per-stock deep view: the enriched snapshot plus every
// gate's verdict, pass or fail.
type Analysis struct {
	Candidate      *contracts.Candidate   `json:"candidate"`
	Gates          []pipeline.GateVerdict `json:"gates"`
	WouldPass      bool                   `json:"would_pass"`
	Recommendation string                 `json:"recommendation"`
}

// Analyze runs the full gate set over a single stock without touching
// run state.
func (r *Runner) Analyze(ctx context.Context, code string, market contracts.Market) (*Analysis, error) {
	cand, err := r.gw.Quote(ctx, code, market)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", code, err)
	}

	enriched, klines := r.enricher.Enrich(ctx, market, []*contracts.Candidate{cand})
	if len(enriched) == 0 {
		return nil, fmt.Errorf("%w: enrichment produced nothing for %s", contracts.ErrMissing, code)
	}

	pipe := pipeline.New(r.cfg, r.gw.Degradation(), r.logger)
	gates := pipe.Evaluate(enriched[0], klines)

	wouldPass := true
	stagesPassed := 0
	for _, g := range gates {
		if !g.Pass {
			wouldPass = false
			continue
		}
		if g.Index >= 1 {
			stagesPassed++
		}
	}

	rec := RecommendationLow
	switch {
	case stagesPassed >= 7:
		rec = RecommendationHigh
	case stagesPassed >= 5:
		rec = RecommendationMedium
	}

	return &Analysis{
		Candidate:      enriched[0],
		Gates:          gates,
		WouldPass:      wouldPass,
		Recommendation: rec,
	}, nil
}

func (r *Runner) publish(runID string, stageIdx int, status contracts.ProgressStatus, msg string, results []string, partial bool, maxStep int) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(contracts.ProgressEvent{
		RunID:        runID,
		Stage:        stageIdx,
		Status:       status,
		Message:      msg,
		ResultsSoFar: results,
		PartialMatch: partial,
		MaxStep:      maxStep,
	})
}

func codes(cands []*contracts.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Code
	}
	return out
}
