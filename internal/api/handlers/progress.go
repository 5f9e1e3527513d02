package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// ProgressHandler streams per-stage progress events over a websocket.
// ⭐ SSOT: 进度推送只在这个处理器
type ProgressHandler struct {
	broker   *runner.Broker
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(broker *runner.Broker, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 本机前端与 CLI 订阅, 不做 Origin 白名单
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream upgrades the connection and forwards progress events until the
// client goes away.
// GET /api/screen/progress
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.broker.Subscribe()
	defer cancel()

	// 读泵只为感知断连
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
