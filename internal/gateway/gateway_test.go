package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// fakeAdapter answers from canned data or a canned error, counting calls.
type fakeAdapter struct {
	name contracts.Source

	list      []*contracts.Candidate
	quote     *contracts.Candidate
	series    *contracts.KlineSeries
	idxSeries *contracts.KlineSeries
	err       error
	klErr     error
	listCnt   int
	klCnt     int
}

func (f *fakeAdapter) Name() contracts.Source { return f.name }

func (f *fakeAdapter) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	f.listCnt++
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeAdapter) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeAdapter) Kline(ctx context.Context, code string, market contracts.Market, g contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	f.klCnt++
	if f.klErr != nil {
		return nil, f.klErr
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func (f *fakeAdapter) IndexKline(ctx context.Context, market contracts.Market, g contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	if f.idxSeries != nil {
		return f.idxSeries, nil
	}
	return f.Kline(ctx, "", market, g, count)
}

func cand(code string) *contracts.Candidate {
	return &contracts.Candidate{
		Code:   code,
		Name:   "测试" + code,
		Market: contracts.MarketSH,
		Price:  contracts.F(10),
	}
}

func controller(t *testing.T, enabled bool, level contracts.DegradationLevel) *DegradationController {
	t.Helper()
	d, err := NewDegradationController(contracts.DegradationConfig{Enabled: enabled, Level: level}, logger.NewNop())
	require.NoError(t, err)
	return d
}

func newGateway(t *testing.T, degrade *DegradationController, priority []string, adapters ...SourceAdapter) *Gateway {
	t.Helper()
	gw, err := New(NewRegistry(adapters...), priority, degrade, nil, logger.NewNop())
	require.NoError(t, err)
	return gw
}

func TestRegistry_Resolve(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina}
	tencent := &fakeAdapter{name: contracts.SourceTencent}
	r := NewRegistry(sina, tencent)

	ladder, err := r.Resolve([]string{"tencent", "sina"})
	require.NoError(t, err)
	require.Len(t, ladder, 2)
	assert.Equal(t, contracts.SourceTencent, ladder[0].Name())

	// "auto" expands to every wired source in default priority order.
	ladder, err = r.Resolve([]string{"auto"})
	require.NoError(t, err)
	require.Len(t, ladder, 2)
	assert.Equal(t, contracts.SourceSina, ladder[0].Name())

	// Duplicates collapse.
	ladder, err = r.Resolve([]string{"sina", "auto"})
	require.NoError(t, err)
	assert.Len(t, ladder, 2)

	_, err = r.Resolve([]string{"bloomberg"})
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	// Known source but not wired into this registry.
	_, err = r.Resolve([]string{"hexun"})
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	_, err = r.Resolve(nil)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestDegradationController_Allow(t *testing.T) {
	cases := []struct {
		level contracts.DegradationLevel
		kind  contracts.SubstitutionKind
		want  bool
	}{
		{contracts.DegradationLow, contracts.SubstituteAltSource, true},
		{contracts.DegradationLow, contracts.SubstituteAltMethod, false},
		{contracts.DegradationLow, contracts.SubstituteDefaultHeuristic, false},
		{contracts.DegradationMedium, contracts.SubstituteAltSource, true},
		{contracts.DegradationMedium, contracts.SubstituteAltMethod, true},
		{contracts.DegradationMedium, contracts.SubstituteDefaultHeuristic, false},
		{contracts.DegradationHigh, contracts.SubstituteDefaultHeuristic, true},
	}
	for _, tc := range cases {
		d := controller(t, true, tc.level)
		assert.Equal(t, tc.want, d.Allow(tc.kind), "%s/%s", tc.level, tc.kind)
	}

	// Disabled blocks everything regardless of level.
	d := controller(t, false, "")
	assert.False(t, d.Allow(contracts.SubstituteAltSource))
}

func TestNewDegradationController_RejectsBadLevel(t *testing.T) {
	_, err := NewDegradationController(contracts.DegradationConfig{Enabled: true, Level: "ULTRA"}, logger.NewNop())
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestGateway_StockList_PrimaryWins(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina, list: []*contracts.Candidate{cand("600000")}}
	tencent := &fakeAdapter{name: contracts.SourceTencent}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina", "tencent"}, sina, tencent)

	cands, src, err := gw.StockList(context.Background(), contracts.MarketSH)
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceSina, src)
	require.Len(t, cands, 1)
	assert.Zero(t, tencent.listCnt)

	// The primary answers on STANDARD basis.
	fp := cands[0].Provenance[contracts.FieldPrice]
	assert.Equal(t, contracts.SourceSina, fp.Source)
	assert.Equal(t, contracts.BasisStandard, fp.Basis)
	// Fields the payload never delivered get no provenance entry.
	_, has := cands[0].Provenance[contracts.FieldVolumeRatio]
	assert.False(t, has)
}

func TestGateway_StockList_FallsDownLadder(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina, err: contracts.ErrNetwork}
	east := &fakeAdapter{name: contracts.SourceEastmoney, list: []*contracts.Candidate{cand("600000")}}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina", "eastmoney"}, sina, east)

	cands, src, err := gw.StockList(context.Background(), contracts.MarketSH)
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceEastmoney, src)

	// A substitute source is visible in provenance, never silent.
	fp := cands[0].Provenance[contracts.FieldPrice]
	assert.Equal(t, contracts.SourceEastmoney, fp.Source)
	assert.Equal(t, contracts.BasisAlternative, fp.Basis)
}

func TestGateway_StockList_DegradationDisabledStopsLadder(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina, err: contracts.ErrNetwork}
	east := &fakeAdapter{name: contracts.SourceEastmoney, list: []*contracts.Candidate{cand("600000")}}
	gw := newGateway(t, controller(t, false, ""), []string{"sina", "eastmoney"}, sina, east)

	_, _, err := gw.StockList(context.Background(), contracts.MarketSH)
	assert.ErrorIs(t, err, contracts.ErrAllSourcesExhausted)
	// The second source must never have been consulted.
	assert.Zero(t, east.listCnt)
}

func TestGateway_StockList_UnsupportedSkipsSource(t *testing.T) {
	// Tencent serves no list endpoint; the ladder just moves on.
	tencent := &fakeAdapter{name: contracts.SourceTencent, err: contracts.ErrUnsupported}
	sina := &fakeAdapter{name: contracts.SourceSina, list: []*contracts.Candidate{cand("600000")}}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"tencent", "sina"}, tencent, sina)

	_, src, err := gw.StockList(context.Background(), contracts.MarketSH)
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceSina, src)
}

func TestGateway_StockList_NonRecoverableAborts(t *testing.T) {
	fatal := errors.New("adapter panic equivalent")
	sina := &fakeAdapter{name: contracts.SourceSina, err: fatal}
	east := &fakeAdapter{name: contracts.SourceEastmoney, list: []*contracts.Candidate{cand("600000")}}
	gw := newGateway(t, controller(t, true, contracts.DegradationHigh), []string{"sina", "eastmoney"}, sina, east)

	_, _, err := gw.StockList(context.Background(), contracts.MarketSH)
	assert.ErrorIs(t, err, fatal)
	assert.Zero(t, east.listCnt)
}

func TestGateway_StockList_RejectsBadMarket(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina"}, sina)

	_, _, err := gw.StockList(context.Background(), contracts.Market("XX"))
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestGateway_Quote_Ladder(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina, err: contracts.ErrRateLimited}
	tencent := &fakeAdapter{name: contracts.SourceTencent, quote: cand("600000")}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina", "tencent"}, sina, tencent)

	c, err := gw.Quote(context.Background(), "600000", contracts.MarketSH)
	require.NoError(t, err)
	assert.Equal(t, contracts.BasisAlternative, c.Provenance[contracts.FieldPrice].Basis)
}

func TestGateway_Field(t *testing.T) {
	quote := cand("600000")
	quote.TurnoverRate = contracts.F(6.5)
	quote.Provenance = contracts.Provenance{}
	quote.Provenance.Record(contracts.FieldTurnoverRate, contracts.SourceSina, contracts.BasisStandard)
	sina := &fakeAdapter{name: contracts.SourceSina, quote: quote}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina"}, sina)

	// Already on the candidate: returned as-is, no refetch.
	have := cand("600000")
	have.ChangePct = contracts.F(4.2)
	have.Provenance = contracts.Provenance{}
	have.Provenance.Record(contracts.FieldChangePct, contracts.SourceTencent, contracts.BasisAlternative)

	f, prov, err := gw.Field(context.Background(), have, contracts.FieldChangePct)
	require.NoError(t, err)
	assert.Equal(t, 4.2, f.Value)
	assert.Equal(t, contracts.BasisAlternative, prov.Basis)

	// Not on the candidate: refetched through the ladder.
	f, prov, err = gw.Field(context.Background(), have, contracts.FieldTurnoverRate)
	require.NoError(t, err)
	assert.Equal(t, 6.5, f.Value)
	assert.Equal(t, contracts.SourceSina, prov.Source)

	// No source delivers it: Missing, not an error.
	f, _, err = gw.Field(context.Background(), have, contracts.FieldVolumeRatio)
	require.NoError(t, err)
	assert.False(t, f.Valid)
}

func TestGateway_Kline_Ladder(t *testing.T) {
	series := &contracts.KlineSeries{Code: "600000", Granularity: contracts.KlineDaily,
		Bars: []contracts.KlineBar{{Close: 7.29}}}
	sina := &fakeAdapter{name: contracts.SourceSina, klErr: contracts.ErrNetwork}
	east := &fakeAdapter{name: contracts.SourceEastmoney, series: series}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina", "eastmoney"}, sina, east)

	got, err := gw.Kline(context.Background(), "600000", contracts.MarketSH, contracts.KlineDaily, 60)
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceEastmoney, got.Provenance.Source)
	assert.Equal(t, contracts.BasisAlternative, got.Provenance.Basis)

	_, err = gw.Kline(context.Background(), "600000", contracts.MarketSH, "hour", 60)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestGateway_IndexKline(t *testing.T) {
	series := &contracts.KlineSeries{Code: "sh000001", Granularity: contracts.KlineDaily,
		Bars: []contracts.KlineBar{{Close: 3650}}}
	sina := &fakeAdapter{name: contracts.SourceSina, series: series}
	gw := newGateway(t, controller(t, true, contracts.DegradationLow), []string{"sina"}, sina)

	got, err := gw.IndexKline(context.Background(), contracts.MarketSH, contracts.KlineDaily, 60)
	require.NoError(t, err)
	assert.Equal(t, contracts.BasisStandard, got.Provenance.Basis)
}

func TestHealthTracker_Rank(t *testing.T) {
	sina := &fakeAdapter{name: contracts.SourceSina}
	east := &fakeAdapter{name: contracts.SourceEastmoney}
	tr := newHealthTracker()

	// No history: configured order holds.
	ranked := tr.rank([]SourceAdapter{sina, east})
	assert.Equal(t, contracts.SourceSina, ranked[0].Name())

	// Three consecutive failures sink a source to the back.
	for i := 0; i < 3; i++ {
		tr.recordFailure(contracts.SourceSina, contracts.ErrNetwork)
	}
	ranked = tr.rank([]SourceAdapter{sina, east})
	assert.Equal(t, contracts.SourceEastmoney, ranked[0].Name())
	assert.Equal(t, contracts.SourceSina, ranked[1].Name())

	// One success resets the streak.
	tr.recordSuccess(contracts.SourceSina, 0)
	ranked = tr.rank([]SourceAdapter{sina, east})
	assert.Equal(t, contracts.SourceSina, ranked[0].Name())

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, contracts.SourceSina, snap[0].Source)
	assert.Equal(t, int64(3), snap[0].Failures)
	assert.Equal(t, int64(1), snap[0].Successes)
	assert.Zero(t, snap[0].Consecutive)
}
