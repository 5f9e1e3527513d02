package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ss3211545/stock-web-app/internal/api"
	"github.com/ss3211545/stock-web-app/internal/api/handlers"
	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/scheduler"
	"github.com/ss3211545/stock-web-app/internal/scheduler/jobs"
)

var (
	apiPort       string
	withScheduler bool
)

// apiCmd starts the HTTP API server.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "启动 API 服务",
	Long: `启动 REST API 服务.

Endpoints:
  GET  /health                      - Health check
  POST /api/screen                  - 触发一次选股
  GET  /api/screen/latest           - 最近一次结果
  GET  /api/screen/latest/export    - 导出 CSV/JSON
  GET  /api/screen/progress         - WebSocket 进度流
  GET  /api/screen/runs             - 历史归档列表
  GET  /api/stocks/{code}/analysis  - 个股过关诊断
  GET  /api/stocks/{code}/kline     - 个股 K 线
  GET  /api/sources                 - 数据源健康
  GET  /api/scheduler/jobs          - 定时任务状态

Example:
  go run ./cmd/tailscan api
  go run ./cmd/tailscan api --port 8089 --with-scheduler`,
	RunE: runAPIServer,
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 端口 (默认取 PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "同时启动尾盘定时任务")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	if apiPort != "" {
		s.Cfg.Port = apiPort
	}

	var sched *scheduler.Scheduler
	if withScheduler {
		market := contracts.Market(s.Cfg.Screener.Market)
		sched = scheduler.New(s.Log)
		job := jobs.NewScreenJob(s.Runner, market, s.Cfg.Screener.ScheduleSpec, s.Log)
		if err := sched.AddJob(job); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	screenHandler := handlers.NewScreenHandler(s.Runner, s.Archiver, s.Log)
	stockHandler := handlers.NewStockHandler(s.Runner, s.Gateway, s.Log)
	statusHandler := handlers.NewStatusHandler(s.Gateway, sched, s.Log)
	exportHandler := handlers.NewExportHandler(s.Runner, s.Log)
	progressHandler := handlers.NewProgressHandler(s.Runner.Broker(), s.Log)

	router := api.NewRouter(screenHandler, stockHandler, statusHandler, exportHandler, progressHandler, s.Log)
	server := api.New(s.Cfg, s.Log, router)

	go func() {
		if err := server.Start(); err != nil {
			s.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("✅ Server running on http://localhost:%s\n", s.Cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
