package handlers

import (
	"net/http"

	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/scheduler"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// StatusHandler exposes operational state: source health and scheduler
// job stats.
type StatusHandler struct {
	gw    *gateway.Gateway
	sched *scheduler.Scheduler // nil when scheduling is off
	log   *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(gw *gateway.Gateway, sched *scheduler.Scheduler, log *logger.Logger) *StatusHandler {
	return &StatusHandler{gw: gw, sched: sched, log: log}
}

// Sources reports per-source success/failure counters.
// GET /api/sources
func (h *StatusHandler) Sources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gw.SourceHealth())
}

// Jobs reports scheduler statistics.
// GET /api/scheduler/jobs
func (h *StatusHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		respondError(w, http.StatusNotImplemented, "scheduler not running")
		return
	}
	respondJSON(w, http.StatusOK, h.sched.GetJobStats())
}
