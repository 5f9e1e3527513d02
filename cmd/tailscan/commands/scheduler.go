package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ss3211545/stock-web-app/internal/scheduler"
	"github.com/ss3211545/stock-web-app/internal/scheduler/jobs"
)

// schedulerCmd runs the tail-window screen on schedule, headless.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "启动尾盘定时选股",
	Long: `以守护进程方式按 SCHEDULE_SPEC 在尾盘时段自动选股.

Example:
  go run ./cmd/tailscan scheduler
  SCHEDULE_SPEC="0 35 14 * * MON-FRI" go run ./cmd/tailscan scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	market, err := resolveMarket(s.Cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New(s.Log)
	job := jobs.NewScreenJob(s.Runner, market, s.Cfg.Screener.ScheduleSpec, s.Log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	fmt.Printf("✅ Scheduler running, spec %q, market %s\n", s.Cfg.Screener.ScheduleSpec, market)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	return nil
}
