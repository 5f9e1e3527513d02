package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// ExportHandler renders the latest outcome as a download.
type ExportHandler struct {
	runner *runner.Runner
	logger *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(r *runner.Runner, log *logger.Logger) *ExportHandler {
	return &ExportHandler{runner: r, logger: log}
}

// Export streams the latest outcome.
// GET /api/screen/latest/export?format=csv (default) | json
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	outcome := h.runner.LastOutcome()
	if outcome == nil {
		respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Disposition", exportFilename(outcome, "json"))
		respondJSON(w, http.StatusOK, outcome)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", exportFilename(outcome, "csv"))

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{
		"code", "name", "market", "price", "change_pct", "volume_ratio",
		"turnover_rate", "market_cap", "reliability",
	})
	for _, c := range outcome.Results {
		cw.Write([]string{
			c.Code,
			c.Name,
			string(c.Market),
			fmtField(c.Price),
			fmtField(c.ChangePct),
			fmtField(c.VolumeRatio),
			fmtField(c.TurnoverRate),
			fmtField(c.MarketCap),
			string(outcome.Reliability[c.Code]),
		})
	}
}

func exportFilename(outcome *contracts.Outcome, ext string) string {
	return fmt.Sprintf(`attachment; filename="screen_%s_%s.%s"`,
		outcome.Market, outcome.Timestamp.Format(time.DateOnly), ext)
}

// fmtField renders a Field; missing values export as empty cells, never
// as zero.
func fmtField(f contracts.Field) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}
