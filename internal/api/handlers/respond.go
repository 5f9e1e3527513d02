package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// marketParam parses ?market= with SH as the default.
func marketParam(r *http.Request) (contracts.Market, bool) {
	raw := strings.ToUpper(r.URL.Query().Get("market"))
	if raw == "" {
		return contracts.MarketSH, true
	}
	m := contracts.Market(raw)
	return m, contracts.ValidMarket(m)
}
