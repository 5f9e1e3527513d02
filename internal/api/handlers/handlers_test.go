package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// quoteOnlySource serves a one-stock list and nothing else: with
// degradation off, a screen run ends as a PARTIAL outcome.
type quoteOnlySource struct{}

func (s *quoteOnlySource) Name() contracts.Source { return contracts.SourceSina }

func (s *quoteOnlySource) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	return []*contracts.Candidate{{
		Code:      "600000",
		Name:      "浦发银行",
		Market:    market,
		Price:     contracts.F(7.29),
		ChangePct: contracts.F(4.0),
	}}, nil
}

func (s *quoteOnlySource) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	return nil, contracts.ErrUnsupported
}

func (s *quoteOnlySource) Kline(ctx context.Context, code string, market contracts.Market, g contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return nil, contracts.ErrUnsupported
}

func (s *quoteOnlySource) IndexKline(ctx context.Context, market contracts.Market, g contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return nil, contracts.ErrUnsupported
}

func newHandlersRunner(t *testing.T) *runner.Runner {
	t.Helper()
	log := logger.NewNop()

	degrade, err := gateway.NewDegradationController(contracts.DegradationConfig{Enabled: false}, log)
	require.NoError(t, err)

	gw, err := gateway.New(gateway.NewRegistry(&quoteOnlySource{}), []string{"sina"}, degrade, nil, log)
	require.NoError(t, err)

	cfg := strategyconfig.Default()
	snap, err := strategyconfig.NewRunSnapshot(cfg, nil)
	require.NoError(t, err)

	return runner.New(gw, gateway.NewEnricher(gw, 1, log), cfg, snap, nil, runner.NewBroker(), log)
}

func TestScreenHandler_LatestBeforeAnyRun(t *testing.T) {
	h := NewScreenHandler(newHandlersRunner(t), nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Latest(rec, httptest.NewRequest(http.MethodGet, "/api/screen/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no run")
}

func TestScreenHandler_RunRejectsUnknownMarket(t *testing.T) {
	h := NewScreenHandler(newHandlersRunner(t), nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/screen?market=NASDAQ", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreenHandler_RunThenLatest(t *testing.T) {
	r := newHandlersRunner(t)
	h := NewScreenHandler(r, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/screen", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PARTIAL"`)

	rec = httptest.NewRecorder()
	h.Latest(rec, httptest.NewRequest(http.MethodGet, "/api/screen/latest", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "600000")
}

func TestScreenHandler_ArchiveEndpointsWithoutDatabase(t *testing.T) {
	h := NewScreenHandler(newHandlersRunner(t), nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Runs(rec, httptest.NewRequest(http.MethodGet, "/api/screen/runs", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = httptest.NewRecorder()
	h.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/screen/runs/abc", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestExportHandler_CSV(t *testing.T) {
	r := newHandlersRunner(t)
	_, err := r.Screen(context.Background(), contracts.MarketSH)
	require.NoError(t, err)

	h := NewExportHandler(r, logger.NewNop())
	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodGet, "/api/screen/latest/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "screen_SH_")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "code,name,market,price,change_pct,volume_ratio,turnover_rate,market_cap,reliability", lines[0])
	// 缺的字段导出为空, 不是 0
	assert.Equal(t, "600000,浦发银行,SH,7.29,4,,,,COMPLETE", lines[1])
}

func TestExportHandler_JSON(t *testing.T) {
	r := newHandlersRunner(t)
	_, err := r.Screen(context.Background(), contracts.MarketSH)
	require.NoError(t, err)

	h := NewExportHandler(r, logger.NewNop())
	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodGet, "/api/screen/latest/export?format=json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"run_id"`)
}

func TestMarketParam(t *testing.T) {
	m, ok := marketParam(httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, ok)
	assert.Equal(t, contracts.MarketSH, m)

	m, ok = marketParam(httptest.NewRequest(http.MethodGet, "/x?market=sz", nil))
	assert.True(t, ok)
	assert.Equal(t, contracts.MarketSZ, m)

	_, ok = marketParam(httptest.NewRequest(http.MethodGet, "/x?market=LSE", nil))
	assert.False(t, ok)
}
