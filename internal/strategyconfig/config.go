package strategyconfig

import "time"

// Config 尾盘选股策略的全部阈值
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Variant    string     `yaml:"variant" json:"variant"` // default | swing
	Prefilters Prefilters `yaml:"prefilters" json:"prefilters"`
	Stages     Stages     `yaml:"stages" json:"stages"`
	Fallback   Fallback   `yaml:"fallback" json:"fallback"`
}

// Meta 元信息
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	TailWindow Window `yaml:"tail_window" json:"tail_window"`
}

type Window struct {
	Start string `yaml:"start" json:"start"` // HH:MM
	End   string `yaml:"end" json:"end"`     // HH:MM
}

// Prefilters 进入八关前的硬性排除
type Prefilters struct {
	MinPriceCNY        float64  `yaml:"min_price_cny" json:"min_price_cny"`
	ExcludeNameMarkers []string `yaml:"exclude_name_markers" json:"exclude_name_markers"`
}

// Stages 八个关卡的阈值
type Stages struct {
	ChangePct        Band             `yaml:"change_pct" json:"change_pct"`
	VolumeRatio      Floor            `yaml:"volume_ratio" json:"volume_ratio"`
	TurnoverRate     Band             `yaml:"turnover_rate" json:"turnover_rate"`
	MarketCapCNY     Band             `yaml:"market_cap_cny" json:"market_cap_cny"`
	VolumeRising     SessionsRule     `yaml:"volume_rising" json:"volume_rising"`
	MAAlignment      MAAlignment      `yaml:"ma_alignment" json:"ma_alignment"`
	RelativeStrength RelativeStrength `yaml:"relative_strength" json:"relative_strength"`
	TailStability    TailStability    `yaml:"tail_stability" json:"tail_stability"`
}

// Band 闭区间 [min, max]
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v falls inside the band, inclusive.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Floor 排他下限: 必须严格大于 Min
type Floor struct {
	Min float64 `yaml:"min" json:"min"`
}

type SessionsRule struct {
	Sessions int `yaml:"sessions" json:"sessions"`
}

// MAAlignment 均线多头排列: MA5>MA10>MA20 且 MA60 抬头
type MAAlignment struct {
	MA60RisingSessions int `yaml:"ma60_rising_sessions" json:"ma60_rising_sessions"`
}

// RelativeStrength 跑赢基准指数, 必须严格超过 Min
type RelativeStrength struct {
	Min        float64 `yaml:"min" json:"min"` // 百分点
	WindowDays int     `yaml:"window_days" json:"window_days"`
}

// TailStability 尾盘守住高点
type TailStability struct {
	MinPriceToHighRatio float64 `yaml:"min_price_to_high_ratio" json:"min_price_to_high_ratio"`
}

// Fallback 全空时的兜底
type Fallback struct {
	TopNByChange int `yaml:"top_n_by_change" json:"top_n_by_change"`
}

// RunSnapshot 运行时配置快照 (复现用)
type RunSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	Variant    string    `json:"variant"`
	CreatedAt  time.Time `json:"created_at"`
}
