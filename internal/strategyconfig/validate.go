package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Variants supported by the pipeline.
const (
	VariantDefault = "default"
	VariantSwing   = "swing"
)

// ValidationError 校验失败 (程序中止)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 建议性提示 (只警告)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 失败即返回 error, 不带着坏阈值去跑盘
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if err := validateHHMM(cfg.Meta.TailWindow.Start); err != nil {
		return ValidationError{"meta.tail_window.start", err.Error()}
	}
	if err := validateHHMM(cfg.Meta.TailWindow.End); err != nil {
		return ValidationError{"meta.tail_window.end", err.Error()}
	}

	// tail_window: start < end
	startTime, _ := time.Parse("15:04", cfg.Meta.TailWindow.Start)
	endTime, _ := time.Parse("15:04", cfg.Meta.TailWindow.End)
	if !startTime.Before(endTime) {
		return ValidationError{"meta.tail_window", "start must be before end"}
	}

	// === Variant ===
	if cfg.Variant != VariantDefault && cfg.Variant != VariantSwing {
		return ValidationError{"variant", fmt.Sprintf("must be %q or %q", VariantDefault, VariantSwing)}
	}

	// === Prefilters ===
	if cfg.Prefilters.MinPriceCNY < 0 {
		return ValidationError{"prefilters.min_price_cny", "must be >= 0"}
	}

	// === Stages ===
	if err := validateBand(cfg.Stages.ChangePct, "stages.change_pct"); err != nil {
		return err
	}
	if cfg.Stages.VolumeRatio.Min < 0 {
		return ValidationError{"stages.volume_ratio.min", "must be >= 0"}
	}
	if err := validateBand(cfg.Stages.TurnoverRate, "stages.turnover_rate"); err != nil {
		return err
	}
	if err := validateBand(cfg.Stages.MarketCapCNY, "stages.market_cap_cny"); err != nil {
		return err
	}
	if cfg.Stages.MarketCapCNY.Min <= 0 {
		return ValidationError{"stages.market_cap_cny.min", "must be > 0"}
	}
	if cfg.Stages.VolumeRising.Sessions < 2 {
		return ValidationError{"stages.volume_rising.sessions", "must be >= 2"}
	}
	if cfg.Stages.MAAlignment.MA60RisingSessions < 2 {
		return ValidationError{"stages.ma_alignment.ma60_rising_sessions", "must be >= 2"}
	}
	if cfg.Stages.RelativeStrength.WindowDays < 1 {
		return ValidationError{"stages.relative_strength.window_days", "must be >= 1"}
	}
	r := cfg.Stages.TailStability.MinPriceToHighRatio
	if r <= 0 || r > 1 {
		return ValidationError{"stages.tail_stability.min_price_to_high_ratio", "must be in (0, 1]"}
	}

	// === Fallback ===
	if cfg.Fallback.TopNByChange <= 0 {
		return ValidationError{"fallback.top_n_by_change", "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 涨幅带太宽, 尾盘候选会爆量
	if cfg.Stages.ChangePct.Max-cfg.Stages.ChangePct.Min > 5 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_CHANGE_BAND",
			Message: "涨幅区间宽于 5 个百分点: 候选集可能过大",
		})
	}

	// 兜底数量过大, 失去"精选"意义
	if cfg.Fallback.TopNByChange > 50 {
		warnings = append(warnings, Warning{
			Code:    "LARGE_FALLBACK",
			Message: "兜底 top_n > 50: 兜底结果接近全量列表",
		})
	}

	// 尾盘窗口短于 10 分钟, 调度一旦延迟就会错过
	startTime, err1 := time.Parse("15:04", cfg.Meta.TailWindow.Start)
	endTime, err2 := time.Parse("15:04", cfg.Meta.TailWindow.End)
	if err1 == nil && err2 == nil && endTime.Sub(startTime) < 10*time.Minute {
		warnings = append(warnings, Warning{
			Code:    "SHORT_TAIL_WINDOW",
			Message: "尾盘窗口不足 10 分钟: 调度延迟容易整窗错过",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateHHMM(s string) error {
	re := regexp.MustCompile(`^\d{2}:\d{2}$`)
	if !re.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func validateBand(b Band, field string) error {
	if b.Min > b.Max {
		return ValidationError{field, fmt.Sprintf("min %.4f must be <= max %.4f", b.Min, b.Max)}
	}
	return nil
}
