package pipeline

import (
	"fmt"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
)

// evalContext carries everything a stage check may consult.
type evalContext struct {
	cfg    *strategyconfig.Config
	klines map[string]*contracts.KlineSeries
	now    time.Time
}

// stage is one narrowing gate. Eval returns pass plus an exclusion
// reason for the false case. A missing required field never passes: the
// candidate is excluded for it, with the reason naming the gap.
type stage struct {
	name string
	eval func(ec *evalContext, c *contracts.Candidate) (bool, string)
}

// 八关 in their canonical order.
var canonicalStages = []stage{
	{"change_band", evalChangeBand},
	{"volume_ratio", evalVolumeRatio},
	{"turnover_band", evalTurnoverBand},
	{"market_cap_band", evalMarketCapBand},
	{"volume_rising", evalVolumeRising},
	{"ma_alignment", evalMAAlignment},
	{"relative_strength", evalRelativeStrength},
	{"tail_stability", evalTailStability},
}

// swingOrder runs the trend gates before the liquidity gates: for
// after-hours review the shape of the move matters more than whether it
// is still liquid enough to chase into the close.
var swingOrder = []string{
	"change_band",
	"volume_rising",
	"ma_alignment",
	"relative_strength",
	"volume_ratio",
	"turnover_band",
	"market_cap_band",
	"tail_stability",
}

// stagesFor returns the gate sequence for a variant. Both variants run
// all eight gates; only the order differs.
func stagesFor(variant string) []stage {
	if variant != strategyconfig.VariantSwing {
		return canonicalStages
	}
	byName := make(map[string]stage, len(canonicalStages))
	for _, s := range canonicalStages {
		byName[s.name] = s
	}
	out := make([]stage, 0, len(swingOrder))
	for _, name := range swingOrder {
		out = append(out, byName[name])
	}
	return out
}

// 第1关: 温和上涨区间
func evalChangeBand(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.ChangePct.Valid {
		return false, "change_pct missing"
	}
	if !ec.cfg.Stages.ChangePct.Contains(c.ChangePct.Value) {
		return false, fmt.Sprintf("change %.2f%% outside [%.1f, %.1f]",
			c.ChangePct.Value, ec.cfg.Stages.ChangePct.Min, ec.cfg.Stages.ChangePct.Max)
	}
	return true, ""
}

// 第2关: 量比放大, 恰好等于下限不算放量
func evalVolumeRatio(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.VolumeRatio.Valid {
		return false, "volume_ratio missing"
	}
	if c.VolumeRatio.Value <= ec.cfg.Stages.VolumeRatio.Min {
		return false, fmt.Sprintf("volume ratio %.2f not above %.2f",
			c.VolumeRatio.Value, ec.cfg.Stages.VolumeRatio.Min)
	}
	return true, ""
}

// 第3关: 换手适中
func evalTurnoverBand(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.TurnoverRate.Valid {
		return false, "turnover_rate missing"
	}
	if !ec.cfg.Stages.TurnoverRate.Contains(c.TurnoverRate.Value) {
		return false, fmt.Sprintf("turnover %.2f%% outside [%.1f, %.1f]",
			c.TurnoverRate.Value, ec.cfg.Stages.TurnoverRate.Min, ec.cfg.Stages.TurnoverRate.Max)
	}
	return true, ""
}

// 第4关: 中盘市值
func evalMarketCapBand(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.MarketCap.Valid {
		return false, "market_cap missing"
	}
	if !ec.cfg.Stages.MarketCapCNY.Contains(c.MarketCap.Value) {
		return false, fmt.Sprintf("market cap %.0f outside [%.0f, %.0f]",
			c.MarketCap.Value, ec.cfg.Stages.MarketCapCNY.Min, ec.cfg.Stages.MarketCapCNY.Max)
	}
	return true, ""
}

// 第5关: 连续放量
func evalVolumeRising(ec *evalContext, c *contracts.Candidate) (bool, string) {
	series, ok := ec.klines[c.Code]
	if !ok || len(series.Bars) == 0 {
		return false, "kline missing"
	}
	sessions := ec.cfg.Stages.VolumeRising.Sessions
	if !series.VolumeRising(sessions) {
		return false, fmt.Sprintf("volume not strictly rising over %d sessions", sessions)
	}
	return true, ""
}

// 第6关: 均线多头排列, MA5>MA10>MA20 且 MA60 抬头
func evalMAAlignment(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.MA5.Valid || !c.MA10.Valid || !c.MA20.Valid || !c.MA60.Valid {
		return false, "moving averages missing"
	}
	if !(c.MA5.Value > c.MA10.Value && c.MA10.Value > c.MA20.Value) {
		return false, fmt.Sprintf("not aligned: MA5 %.2f MA10 %.2f MA20 %.2f",
			c.MA5.Value, c.MA10.Value, c.MA20.Value)
	}

	series, ok := ec.klines[c.Code]
	if !ok {
		return false, "kline missing"
	}
	sessions := ec.cfg.Stages.MAAlignment.MA60RisingSessions
	if !ma60Rising(series, sessions) {
		return false, fmt.Sprintf("MA60 not rising over %d sessions", sessions)
	}
	return true, ""
}

// ma60Rising requires strictly increasing MA60 across the most recent
// sessions values. A too-short series fails, it does not error.
func ma60Rising(series *contracts.KlineSeries, sessions int) bool {
	if sessions < 2 {
		sessions = 2
	}
	prev := contracts.Missing
	for offset := sessions - 1; offset >= 0; offset-- {
		cur := series.MAAt(60, offset)
		if !cur.Valid {
			return false
		}
		if prev.Valid && cur.Value <= prev.Value {
			return false
		}
		prev = cur
	}
	return true
}

// 第7关: 跑赢基准指数, 打平不算赢
func evalRelativeStrength(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !c.IndexStrength.Valid {
		return false, "index_relative_strength missing"
	}
	if c.IndexStrength.Value <= ec.cfg.Stages.RelativeStrength.Min {
		return false, fmt.Sprintf("relative strength %.2f not above %.2f",
			c.IndexStrength.Value, ec.cfg.Stages.RelativeStrength.Min)
	}
	return true, ""
}

// 第8关: 尾盘守住高点. 只在尾盘时段内有意义, 盘外直接放行
func evalTailStability(ec *evalContext, c *contracts.Candidate) (bool, string) {
	if !inTailWindow(ec.cfg.Meta, ec.now) {
		return true, ""
	}
	if !c.Price.Valid {
		return false, "price missing"
	}
	if !c.DayHigh.Valid || c.DayHigh.Value <= 0 {
		return false, "day_high missing"
	}
	ratio := c.Price.Value / c.DayHigh.Value
	if ratio < ec.cfg.Stages.TailStability.MinPriceToHighRatio {
		return false, fmt.Sprintf("price at %.1f%% of day high, need %.1f%%",
			ratio*100, ec.cfg.Stages.TailStability.MinPriceToHighRatio*100)
	}
	return true, ""
}

// inTailWindow reports whether t falls inside the configured tail
// window, minute precision, in the strategy timezone. An unloadable
// timezone keeps t as-is; an unparsable window applies the gate.
func inTailWindow(meta strategyconfig.Meta, t time.Time) bool {
	if loc, err := time.LoadLocation(meta.Timezone); err == nil {
		t = t.In(loc)
	}
	start, err1 := time.Parse("15:04", meta.TailWindow.Start)
	end, err2 := time.Parse("15:04", meta.TailWindow.End)
	if err1 != nil || err2 != nil {
		return true
	}
	hm := t.Hour()*60 + t.Minute()
	return hm >= start.Hour()*60+start.Minute() && hm <= end.Hour()*60+end.Minute()
}
