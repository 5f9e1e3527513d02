package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// StockHandler serves per-stock views: gate-by-gate analysis and raw
// kline series.
// ⭐ SSOT: 个股 API 处理只在这个结构体
type StockHandler struct {
	runner *runner.Runner
	gw     *gateway.Gateway
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(r *runner.Runner, gw *gateway.Gateway, log *logger.Logger) *StockHandler {
	return &StockHandler{runner: r, gw: gw, logger: log}
}

// Analyze runs every gate over one stock.
// GET /api/stocks/{code}/analysis?market=SH
func (h *StockHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "stock code is required")
		return
	}

	market, ok := marketParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown market")
		return
	}

	analysis, err := h.runner.Analyze(r.Context(), code, market)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Stock analysis failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// Kline returns an OHLCV series.
// GET /api/stocks/{code}/kline?market=SH&granularity=day&count=60
func (h *StockHandler) Kline(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "stock code is required")
		return
	}

	market, ok := marketParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown market")
		return
	}

	granularity := contracts.KlineDaily
	if raw := r.URL.Query().Get("granularity"); raw != "" {
		granularity = contracts.KlineGranularity(raw)
		if !granularity.Valid() {
			respondError(w, http.StatusBadRequest, "granularity must be day, week or month")
			return
		}
	}

	count := 60
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}

	series, err := h.gw.Kline(r.Context(), code, market, granularity, count)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Kline fetch failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, series)
}
