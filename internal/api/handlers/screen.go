package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/internal/store"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// ScreenHandler drives screen runs and serves their outcomes.
// ⭐ SSOT: 选股 API 处理只在这个结构体
type ScreenHandler struct {
	runner   *runner.Runner
	archiver *store.Archiver // nil when no database is configured
	logger   *logger.Logger
}

// NewScreenHandler creates a new screen handler
func NewScreenHandler(r *runner.Runner, archiver *store.Archiver, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{runner: r, archiver: archiver, logger: log}
}

// Run triggers a screen and blocks until it finishes.
// POST /api/screen?market=SH
func (h *ScreenHandler) Run(w http.ResponseWriter, r *http.Request) {
	market, ok := marketParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown market")
		return
	}

	outcome, err := h.runner.Screen(r.Context(), market)
	if err != nil {
		if errors.Is(err, contracts.ErrRunInFlight) {
			// 被更新的一轮顶掉了
			respondError(w, http.StatusConflict, "superseded by a newer run")
			return
		}
		h.logger.WithError(err).WithField("market", string(market)).Error("Screen run failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	if outcome.Status == contracts.StatusError {
		// 空结果 + 诊断, 状态码照实给
		respondJSON(w, http.StatusBadGateway, outcome)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// Latest returns the most recent finished outcome.
// GET /api/screen/latest
func (h *ScreenHandler) Latest(w http.ResponseWriter, r *http.Request) {
	outcome := h.runner.LastOutcome()
	if outcome == nil {
		respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// Runs lists archived runs, newest first.
// GET /api/screen/runs?limit=20
func (h *ScreenHandler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		respondError(w, http.StatusNotImplemented, "run archive not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.archiver.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list archived runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// Run returns one archived outcome by id.
// GET /api/screen/runs/{id}
func (h *ScreenHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		respondError(w, http.StatusNotImplemented, "run archive not configured")
		return
	}

	runID := mux.Vars(r)["id"]
	outcome, err := h.archiver.Get(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}
