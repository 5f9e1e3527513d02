package strategyconfig

// Default returns the built-in tail_session_v1 thresholds, used when no
// strategy file is configured. Kept in lockstep with
// config/strategy/tail_session_v1.yaml.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "tail_session_v1",
			Version:    "1",
			Timezone:   "Asia/Shanghai",
			TailWindow: Window{Start: "14:30", End: "15:00"},
		},
		Variant: VariantDefault,
		Prefilters: Prefilters{
			MinPriceCNY:        1.0,
			ExcludeNameMarkers: []string{"ST", "*ST", "退"},
		},
		Stages: Stages{
			ChangePct:    Band{Min: 3.0, Max: 5.0},
			VolumeRatio:  Floor{Min: 1.0},
			TurnoverRate: Band{Min: 5.0, Max: 10.0},
			// 50亿 ~ 200亿
			MarketCapCNY: Band{Min: 5e9, Max: 2e10},
			VolumeRising: SessionsRule{Sessions: 3},
			MAAlignment:  MAAlignment{MA60RisingSessions: 3},
			RelativeStrength: RelativeStrength{
				Min:        0.0,
				WindowDays: 5,
			},
			TailStability: TailStability{MinPriceToHighRatio: 0.95},
		},
		Fallback: Fallback{TopNByChange: 20},
	}
}
