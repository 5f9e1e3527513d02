package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ss3211545/stock-web-app/internal/api/handlers"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 路由配置只在这个函数
func NewRouter(
	screen *handlers.ScreenHandler,
	stock *handlers.StockHandler,
	status *handlers.StatusHandler,
	export *handlers.ExportHandler,
	progress *handlers.ProgressHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Screen runs
	api.HandleFunc("/screen", screen.Run).Methods("POST")
	api.HandleFunc("/screen/latest", screen.Latest).Methods("GET")
	api.HandleFunc("/screen/latest/export", export.Export).Methods("GET")
	api.HandleFunc("/screen/progress", progress.Stream).Methods("GET")
	api.HandleFunc("/screen/runs", screen.Runs).Methods("GET")
	api.HandleFunc("/screen/runs/{id}", screen.GetRun).Methods("GET")

	// Per-stock views
	api.HandleFunc("/stocks/{code}/analysis", stock.Analyze).Methods("GET")
	api.HandleFunc("/stocks/{code}/kline", stock.Kline).Methods("GET")

	// Operational state
	api.HandleFunc("/sources", status.Sources).Methods("GET")
	api.HandleFunc("/scheduler/jobs", status.Jobs).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "tailscan-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
