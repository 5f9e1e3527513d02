package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

func newPipeline(t *testing.T, cfg *strategyconfig.Config, enabled bool, level contracts.DegradationLevel) *Pipeline {
	t.Helper()
	d, err := gateway.NewDegradationController(
		contracts.DegradationConfig{Enabled: enabled, Level: level}, logger.NewNop())
	require.NoError(t, err)
	p := New(cfg, d, logger.NewNop())
	// 固定在尾盘时段内, 第8关照常生效
	p.now = func() time.Time { return atClock(14, 45) }
	return p
}

// atClock builds a weekday instant at the given Beijing wall-clock time.
func atClock(hour, minute int) time.Time {
	return time.Date(2026, 6, 1, hour, minute, 0, 0, time.FixedZone("CST", 8*3600))
}

// passer builds a candidate that clears all eight gates under the
// default thresholds, provenance all STANDARD.
func passer(code string) *contracts.Candidate {
	c := &contracts.Candidate{
		Code:          code,
		Name:          "测试" + code,
		Market:        contracts.MarketSH,
		Price:         contracts.F(10.0),
		ChangePct:     contracts.F(4.0),
		VolumeRatio:   contracts.F(1.5),
		TurnoverRate:  contracts.F(7.0),
		MarketCap:     contracts.F(1e10),
		MA5:           contracts.F(9.8),
		MA10:          contracts.F(9.6),
		MA20:          contracts.F(9.4),
		MA60:          contracts.F(9.0),
		IndexStrength: contracts.F(2.0),
		DayHigh:       contracts.F(10.2),
		Provenance:    make(contracts.Provenance),
	}
	for _, f := range []contracts.FieldName{
		contracts.FieldPrice, contracts.FieldChangePct, contracts.FieldVolumeRatio,
		contracts.FieldTurnoverRate, contracts.FieldMarketCap,
		contracts.FieldMA5, contracts.FieldMA10, contracts.FieldMA20, contracts.FieldMA60,
		contracts.FieldIndexStrength, contracts.FieldDayHigh,
	} {
		c.Provenance.Record(f, contracts.SourceSina, contracts.BasisStandard)
	}
	return c
}

// passingSeries yields strictly rising closes and volumes: MA60 rises
// and the volume-rising gate clears.
func passingSeries(code string) *contracts.KlineSeries {
	s := &contracts.KlineSeries{
		Code:        code,
		Granularity: contracts.KlineDaily,
		Provenance:  contracts.FieldProvenance{Source: contracts.SourceSina, Basis: contracts.BasisStandard},
	}
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 70; i++ {
		s.Bars = append(s.Bars, contracts.KlineBar{
			Date:   day.AddDate(0, 0, i),
			Close:  10 + float64(i)*0.01,
			Volume: 1000 + float64(i)*10,
		})
	}
	return s
}

func klinesFor(cands ...*contracts.Candidate) map[string]*contracts.KlineSeries {
	out := make(map[string]*contracts.KlineSeries, len(cands))
	for _, c := range cands {
		out[c.Code] = passingSeries(c.Code)
	}
	return out
}

func TestRun_CompletePass(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	good := passer("600000")
	tooHot := passer("600001")
	tooHot.ChangePct = contracts.F(8.0) // 涨过头, 第1关出局

	var hooked []contracts.StageResult
	res := p.Run(context.Background(), []*contracts.Candidate{good, tooHot},
		klinesFor(good, tooHot),
		func(sr contracts.StageResult) { hooked = append(hooked, sr) })

	assert.Equal(t, contracts.StatusComplete, res.Status)
	assert.False(t, res.PartialMatch)
	assert.Equal(t, 8, res.MaxStep)
	require.Len(t, res.Survivors, 1)
	assert.Equal(t, "600000", res.Survivors[0].Code)

	// prefilter + eight gates, streamed in order.
	require.Len(t, res.Stages, 9)
	assert.Equal(t, res.Stages, hooked)
	assert.Equal(t, "prefilter", res.Stages[0].Name)
	assert.Equal(t, "change_band", res.Stages[1].Name)
	assert.Contains(t, res.Stages[1].Excluded, "600001")

	// Each stage narrows: output is a subset of its input.
	for _, st := range res.Stages {
		assert.LessOrEqual(t, len(st.Output), st.InputCount, st.Name)
	}
}

func TestRun_Prefilter(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	st := passer("600100")
	st.Name = "ST风险"
	starST := passer("600101")
	starST.Name = "*ST退市边缘"
	delisting := passer("600102")
	delisting.Name = "某某退"
	penny := passer("600103")
	penny.Price = contracts.F(0.9)
	noPrice := passer("600104")
	noPrice.Price = contracts.Missing
	good := passer("600000")

	res := p.Run(context.Background(),
		[]*contracts.Candidate{st, starST, delisting, penny, noPrice, good},
		klinesFor(good), nil)

	require.Len(t, res.Survivors, 1)
	assert.Equal(t, "600000", res.Survivors[0].Code)

	pre := res.Stages[0]
	assert.Equal(t, 6, pre.InputCount)
	assert.Len(t, pre.Excluded, 5)
	assert.Contains(t, pre.Excluded["600100"], "ST")
	assert.Contains(t, pre.Excluded["600103"], "below floor")
	assert.Contains(t, pre.Excluded["600104"], "missing")
}

func TestRun_PartialMatchReportsPreviousSet(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	// Clears change_band, dies at volume_ratio. Nobody goes further.
	c := passer("600000")
	c.VolumeRatio = contracts.F(0.5)

	res := p.Run(context.Background(), []*contracts.Candidate{c}, klinesFor(c), nil)

	assert.Equal(t, contracts.StatusPartial, res.Status)
	assert.True(t, res.PartialMatch)
	// One gate cleared before the set emptied.
	assert.Equal(t, 1, res.MaxStep)
	require.Len(t, res.Survivors, 1)
	assert.Equal(t, "600000", res.Survivors[0].Code)
	// prefilter + change_band + the emptying volume_ratio stage.
	assert.Len(t, res.Stages, 3)
}

func TestRun_VolumeRatioFloorIsExclusive(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	// 量比恰好 1.0 不算放量, 第2关出局
	c := passer("600000")
	c.VolumeRatio = contracts.F(1.0)

	res := p.Run(context.Background(), []*contracts.Candidate{c}, klinesFor(c), nil)

	assert.Equal(t, contracts.StatusPartial, res.Status)
	assert.Equal(t, 1, res.MaxStep)
	require.Len(t, res.Stages, 3)
	assert.Equal(t, "volume_ratio", res.Stages[2].Name)
	assert.Contains(t, res.Stages[2].Excluded["600000"], "not above")
}

func TestRun_RelativeStrengthFloorIsExclusive(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	// 与大盘打平不算跑赢, 第7关出局
	c := passer("600000")
	c.IndexStrength = contracts.F(0.0)

	res := p.Run(context.Background(), []*contracts.Candidate{c}, klinesFor(c), nil)

	assert.Equal(t, contracts.StatusPartial, res.Status)
	assert.Equal(t, 6, res.MaxStep)
	assert.Contains(t, res.Stages[len(res.Stages)-1].Excluded["600000"], "not above")
}

func TestRun_TailStabilityOnlyInsideWindow(t *testing.T) {
	// 现价只有当日最高的 88%, 尾盘时段内必死在第8关
	c := passer("600000")
	c.Price = contracts.F(9.0)

	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)
	res := p.Run(context.Background(), []*contracts.Candidate{c}, klinesFor(c), nil)
	assert.Equal(t, contracts.StatusPartial, res.Status)
	assert.Equal(t, 7, res.MaxStep)

	// 盘外没有"尾盘"可守, 第8关放行
	p = newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)
	p.now = func() time.Time { return atClock(10, 0) }
	res = p.Run(context.Background(), []*contracts.Candidate{c}, klinesFor(c), nil)
	assert.Equal(t, contracts.StatusComplete, res.Status)
	assert.Equal(t, 8, res.MaxStep)
}

func TestInTailWindow(t *testing.T) {
	meta := strategyconfig.Default().Meta

	assert.True(t, inTailWindow(meta, atClock(14, 30)))
	assert.True(t, inTailWindow(meta, atClock(14, 59)))
	assert.True(t, inTailWindow(meta, atClock(15, 0)))
	assert.False(t, inTailWindow(meta, atClock(14, 29)))
	assert.False(t, inTailWindow(meta, atClock(15, 1)))
	assert.False(t, inTailWindow(meta, atClock(9, 45)))

	if _, err := time.LoadLocation(meta.Timezone); err != nil {
		t.Skip("tzdata not available")
	}
	// UTC 06:45 就是北京时间 14:45
	assert.True(t, inTailWindow(meta, time.Date(2026, 6, 1, 6, 45, 0, 0, time.UTC)))
}

func TestRun_MissingRequiredFieldExcludes(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	c := passer("600000")
	c.TurnoverRate = contracts.Missing
	good := passer("600001")

	res := p.Run(context.Background(), []*contracts.Candidate{c, good}, klinesFor(c, good), nil)

	require.Len(t, res.Survivors, 1)
	assert.Equal(t, "600001", res.Survivors[0].Code)
	assert.Equal(t, "turnover_rate missing", res.Stages[3].Excluded["600000"])
}

func TestRun_EmptyUniverseFallback(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationHigh)

	// Everything dies in the pre-filters; two remain rankable by change.
	a := passer("600100")
	a.Name = "ST甲"
	a.ChangePct = contracts.F(2.0)
	b := passer("600101")
	b.Name = "ST乙"
	b.ChangePct = contracts.F(6.0)

	res := p.Run(context.Background(), []*contracts.Candidate{a, b}, nil, nil)

	assert.Equal(t, contracts.StatusFallback, res.Status)
	assert.True(t, res.PartialMatch)
	assert.Zero(t, res.MaxStep)
	require.Len(t, res.Survivors, 2)
	// Ranked by day change, descending.
	assert.Equal(t, "600101", res.Survivors[0].Code)
	// The shortlist is visibly FALLBACK, never dressed up as a real pick.
	fp := res.Survivors[0].Provenance[contracts.FieldChangePct]
	assert.Equal(t, contracts.BasisFallback, fp.Basis)
	assert.Equal(t, contracts.SourceDerived, fp.Source)
}

func TestRun_EmptyUniverseWithoutHeuristicStaysEmpty(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	a := passer("600100")
	a.Name = "ST甲"

	res := p.Run(context.Background(), []*contracts.Candidate{a}, nil, nil)

	assert.Equal(t, contracts.StatusEmpty, res.Status)
	assert.Empty(t, res.Survivors)
}

func TestTopByChange(t *testing.T) {
	var universe []*contracts.Candidate
	for i := 0; i < 25; i++ {
		c := passer("60" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + "00")
		c.ChangePct = contracts.F(float64(i))
		universe = append(universe, c)
	}
	unrankable := passer("999999")
	unrankable.ChangePct = contracts.Missing
	universe = append(universe, unrankable)

	ranked := topByChange(universe, 20)
	require.Len(t, ranked, 20)
	assert.InDelta(t, 24.0, ranked[0].ChangePct.Value, 1e-9)
	assert.InDelta(t, 5.0, ranked[19].ChangePct.Value, 1e-9)
	for _, c := range ranked {
		assert.NotEqual(t, "999999", c.Code)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := passer("600000")
	res := p.Run(ctx, []*contracts.Candidate{c}, klinesFor(c), nil)

	assert.Equal(t, contracts.StatusError, res.Status)
	assert.Contains(t, res.Message, "cancelled")
}

func TestRun_Deterministic(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	universe := []*contracts.Candidate{passer("600000"), passer("600001"), passer("600002")}
	klines := klinesFor(universe...)

	first := p.Run(context.Background(), universe, klines, nil)
	second := p.Run(context.Background(), universe, klines, nil)

	require.Equal(t, len(first.Survivors), len(second.Survivors))
	for i := range first.Survivors {
		assert.Equal(t, first.Survivors[i].Code, second.Survivors[i].Code)
	}
	// Input order carries through to the survivors.
	assert.Equal(t, "600000", first.Survivors[0].Code)
	assert.Equal(t, "600002", first.Survivors[2].Code)
}

func TestStagesFor_SwingOrder(t *testing.T) {
	def := stagesFor(strategyconfig.VariantDefault)
	require.Len(t, def, 8)
	assert.Equal(t, "change_band", def[0].name)
	assert.Equal(t, "tail_stability", def[7].name)

	swing := stagesFor(strategyconfig.VariantSwing)
	require.Len(t, swing, 8)
	names := make([]string, len(swing))
	for i, s := range swing {
		names[i] = s.name
	}
	// 趋势关前移, 流动性关靠后
	assert.Equal(t, swingOrder, names)
}

func TestEvaluate_AllGatesAlwaysReported(t *testing.T) {
	p := newPipeline(t, strategyconfig.Default(), true, contracts.DegradationLow)

	c := passer("600000")
	c.ChangePct = contracts.F(9.9)       // 第1关失败
	c.TurnoverRate = contracts.Missing   // 第3关失败
	verdicts := p.Evaluate(c, klinesFor(c))

	// prefilter + all eight gates, failures notwithstanding.
	require.Len(t, verdicts, 9)
	assert.True(t, verdicts[0].Pass)
	assert.False(t, verdicts[1].Pass)
	assert.NotEmpty(t, verdicts[1].Reason)
	assert.True(t, verdicts[2].Pass)
	assert.False(t, verdicts[3].Pass)
	assert.True(t, verdicts[8].Pass)
}

func TestMA60Rising(t *testing.T) {
	assert.True(t, ma60Rising(passingSeries("x"), 3))

	flat := passingSeries("x")
	for i := range flat.Bars {
		flat.Bars[i].Close = 10
	}
	assert.False(t, ma60Rising(flat, 3))

	short := &contracts.KlineSeries{Bars: passingSeries("x").Bars[:50]}
	assert.False(t, ma60Rising(short, 3))
}
