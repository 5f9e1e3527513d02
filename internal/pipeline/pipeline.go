package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// Result is what one pipeline pass produces. Survivors are always a
// subset of the (pre-filtered) input, in input order.
type Result struct {
	Survivors []*contracts.Candidate
	Stages    []contracts.StageResult

	// PartialMatch: some stage emptied the set; Survivors holds the
	// deepest non-empty set and MaxStep the number of stages it cleared.
	PartialMatch bool
	MaxStep      int
	Status       contracts.StageStatus
	Message      string
}

// StageHook observes each finished stage, in order. Used for progress
// streaming; a nil hook is fine.
type StageHook func(contracts.StageResult)

// Pipeline runs the eight narrowing gates over an enriched universe.
// ⭐ SSOT: 八关过滤逻辑只在这里
type Pipeline struct {
	cfg     *strategyconfig.Config
	degrade *gateway.DegradationController
	logger  *logger.Logger
	now     func() time.Time // 尾盘窗口判断用, 测试可替换
}

// New builds a pipeline for one strategy config.
func New(cfg *strategyconfig.Config, degrade *gateway.DegradationController, log *logger.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, degrade: degrade, logger: log, now: time.Now}
}

// Run filters the universe. universe is the raw list (pre-filters not
// yet applied); klines carries the per-code series the bar-consuming
// gates need. Candidates are treated as immutable throughout.
func (p *Pipeline) Run(ctx context.Context, universe []*contracts.Candidate, klines map[string]*contracts.KlineSeries, hook StageHook) *Result {
	ec := &evalContext{cfg: p.cfg, klines: klines, now: p.now()}

	current, prefilterRes := p.prefilter(universe)
	emit(hook, prefilterRes)
	stages := []contracts.StageResult{prefilterRes}

	if len(current) == 0 {
		return p.fallback(universe, stages)
	}

	for i, st := range stagesFor(p.cfg.Variant) {
		if err := ctx.Err(); err != nil {
			return &Result{
				Survivors: current,
				Stages:    stages,
				MaxStep:   i,
				Status:    contracts.StatusError,
				Message:   "cancelled: " + err.Error(),
			}
		}

		start := time.Now()
		var passed []*contracts.Candidate
		res := contracts.StageResult{
			Index:      i + 1,
			Name:       st.name,
			InputCount: len(current),
			Excluded:   make(map[string]string),
		}

		for _, c := range current {
			ok, reason := st.eval(ec, c)
			if ok {
				passed = append(passed, c)
				res.Output = append(res.Output, c.Code)
			} else {
				res.Excluded[c.Code] = reason
			}
		}
		res.Duration = time.Since(start)
		emit(hook, res)
		stages = append(stages, res)

		p.logger.WithFields(map[string]interface{}{
			"stage":    res.Index,
			"name":     st.name,
			"in":       res.InputCount,
			"out":      len(passed),
			"variant":  p.cfg.Variant,
			"duration": res.Duration,
		}).Info("Stage complete")

		if len(passed) == 0 {
			// 本关全灭: 报上一关幸存者
			return &Result{
				Survivors:    current,
				Stages:       stages,
				PartialMatch: true,
				MaxStep:      i,
				Status:       contracts.StatusPartial,
				Message:      "stage " + st.name + " emptied the set",
			}
		}
		current = passed
	}

	return &Result{
		Survivors: current,
		Stages:    stages,
		MaxStep:   len(canonicalStages),
		Status:    contracts.StatusComplete,
	}
}

// prefilter drops candidates that must never reach the gates: ST /
// delisting-flagged names and sub-threshold (or missing) prices.
func (p *Pipeline) prefilter(universe []*contracts.Candidate) ([]*contracts.Candidate, contracts.StageResult) {
	start := time.Now()
	res := contracts.StageResult{
		Index:      0,
		Name:       "prefilter",
		InputCount: len(universe),
		Excluded:   make(map[string]string),
	}

	var out []*contracts.Candidate
	for _, c := range universe {
		if marker := p.nameMarker(c.Name); marker != "" {
			res.Excluded[c.Code] = "name carries " + marker
			continue
		}
		if !c.Price.Valid {
			res.Excluded[c.Code] = "price missing"
			continue
		}
		if c.Price.Value < p.cfg.Prefilters.MinPriceCNY {
			res.Excluded[c.Code] = "price below floor"
			continue
		}
		out = append(out, c)
		res.Output = append(res.Output, c.Code)
	}
	res.Duration = time.Since(start)
	return out, res
}

func (p *Pipeline) nameMarker(name string) string {
	for _, marker := range p.cfg.Prefilters.ExcludeNameMarkers {
		if strings.Contains(name, marker) {
			return marker
		}
	}
	return ""
}

// fallback handles an empty gate input. Only the most permissive
// degradation level may substitute a ranked shortlist; otherwise the
// run reports empty honestly.
func (p *Pipeline) fallback(universe []*contracts.Candidate, stages []contracts.StageResult) *Result {
	if !p.degrade.Approve(contracts.SubstituteDefaultHeuristic, contracts.FieldChangePct, "rank universe by day change") {
		return &Result{
			Stages:  stages,
			Status:  contracts.StatusEmpty,
			Message: "no candidates after pre-filters",
		}
	}

	ranked := topByChange(universe, p.cfg.Fallback.TopNByChange)
	for _, c := range ranked {
		if c.Provenance == nil {
			c.Provenance = make(contracts.Provenance)
		}
		c.Provenance.Record(contracts.FieldChangePct, contracts.SourceDerived, contracts.BasisFallback)
	}

	return &Result{
		Survivors:    ranked,
		Stages:       stages,
		PartialMatch: true,
		MaxStep:      0,
		Status:       contracts.StatusFallback,
		Message:      "pre-filter emptied the universe, reporting day-change shortlist",
	}
}

// topByChange returns up to n clones ranked by day change, descending.
// Candidates without a change value cannot be ranked and are skipped.
func topByChange(universe []*contracts.Candidate, n int) []*contracts.Candidate {
	var ranked []*contracts.Candidate
	for _, c := range universe {
		if c.ChangePct.Valid {
			ranked = append(ranked, c.Clone())
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ChangePct.Value > ranked[j].ChangePct.Value
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func emit(hook StageHook, res contracts.StageResult) {
	if hook != nil {
		hook(res)
	}
}

// GateVerdict is one gate's judgement of a single candidate.
type GateVerdict struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// Evaluate runs every gate over one candidate regardless of failures,
// for the per-stock analysis view. The pre-filters are reported as gate
// index 0.
func (p *Pipeline) Evaluate(c *contracts.Candidate, klines map[string]*contracts.KlineSeries) []GateVerdict {
	ec := &evalContext{cfg: p.cfg, klines: klines, now: p.now()}

	out := make([]GateVerdict, 0, len(canonicalStages)+1)

	pre := GateVerdict{Index: 0, Name: "prefilter", Pass: true}
	if marker := p.nameMarker(c.Name); marker != "" {
		pre.Pass, pre.Reason = false, "name carries "+marker
	} else if !c.Price.Valid {
		pre.Pass, pre.Reason = false, "price missing"
	} else if c.Price.Value < p.cfg.Prefilters.MinPriceCNY {
		pre.Pass, pre.Reason = false, "price below floor"
	}
	out = append(out, pre)

	for i, st := range stagesFor(p.cfg.Variant) {
		pass, reason := st.eval(ec, c)
		out = append(out, GateVerdict{Index: i + 1, Name: st.name, Pass: pass, Reason: reason})
	}
	return out
}
