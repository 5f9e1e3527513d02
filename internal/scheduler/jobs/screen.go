package jobs

import (
	"context"
	"fmt"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// ScreenJob fires the tail-session screen inside the closing window.
// ⭐ SSOT: 尾盘定时选股只在这个 Job
type ScreenJob struct {
	runner   *runner.Runner
	market   contracts.Market
	schedule string
	logger   *logger.Logger
}

// NewScreenJob creates the scheduled screen. schedule is a 6-field cron
// expression, e.g. "0 35 14 * * MON-FRI" for 14:35 inside the tail
// window on trading weekdays.
func NewScreenJob(r *runner.Runner, market contracts.Market, schedule string, log *logger.Logger) *ScreenJob {
	return &ScreenJob{
		runner:   r,
		market:   market,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreenJob) Name() string {
	return "tail_session_screen"
}

// Schedule returns the cron schedule
func (j *ScreenJob) Schedule() string {
	return j.schedule
}

// Run executes one screen for the configured market.
func (j *ScreenJob) Run(ctx context.Context) error {
	outcome, err := j.runner.Screen(ctx, j.market)
	if err != nil {
		return fmt.Errorf("scheduled screen: %w", err)
	}
	if outcome.Status == contracts.StatusError {
		// 空结果算失败, 让调度器按失败重试
		return fmt.Errorf("scheduled screen: %s", outcome.Message)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":   outcome.RunID,
		"market":   string(j.market),
		"results":  len(outcome.Results),
		"partial":  outcome.PartialMatch,
		"max_step": outcome.MaxStepReached,
	}).Info("Scheduled screen finished")

	return nil
}
