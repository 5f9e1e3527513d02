package strategyconfig

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	path := "../../config/strategy/tail_session_v1.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.StrategyID != "tail_session_v1" {
		t.Errorf("expected strategy_id=tail_session_v1, got %s", cfg.Meta.StrategyID)
	}

	// 市值区间 50亿 ~ 200亿
	if cfg.Stages.MarketCapCNY.Min != 5e9 || cfg.Stages.MarketCapCNY.Max != 2e10 {
		t.Errorf("unexpected market cap band: %+v", cfg.Stages.MarketCapCNY)
	}

	// 解析出的阈值必须与内置默认一致 (两处不同步是事故)
	defHash, _ := Hash(Default())
	fileHash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if defHash != fileHash {
		t.Error("shipped yaml drifted from built-in defaults")
	}

	if len(fileHash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(fileHash))
	}

	// 同一配置 → 同一哈希
	hash2, _ := Hash(cfg)
	if fileHash != hash2 {
		t.Error("hash not deterministic")
	}

	t.Logf("config hash: %s", fileHash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("built-in defaults must validate: %v", err)
	}
	if warns := Warn(Default()); len(warns) != 0 {
		t.Errorf("built-in defaults should carry no warnings, got %v", warns)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }},
		{"bad tail window format", func(c *Config) { c.Meta.TailWindow.Start = "9:00" }},
		{"inverted tail window", func(c *Config) { c.Meta.TailWindow = Window{Start: "15:00", End: "14:30"} }},
		{"unknown variant", func(c *Config) { c.Variant = "scalp" }},
		{"inverted change band", func(c *Config) { c.Stages.ChangePct = Band{Min: 5, Max: 3} }},
		{"zero market cap floor", func(c *Config) { c.Stages.MarketCapCNY.Min = 0 }},
		{"one-session volume rising", func(c *Config) { c.Stages.VolumeRising.Sessions = 1 }},
		{"ratio above one", func(c *Config) { c.Stages.TailStability.MinPriceToHighRatio = 1.2 }},
		{"zero fallback", func(c *Config) { c.Fallback.TopNByChange = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Stages.ChangePct = Band{Min: 1, Max: 9}       // 区间过宽
	cfg.Fallback.TopNByChange = 100                   // 兜底过大
	cfg.Meta.TailWindow = Window{Start: "14:55", End: "15:00"} // 窗口过短

	warnings := Warn(cfg)
	if len(warnings) < 3 {
		t.Errorf("expected at least 3 warnings, got %d", len(warnings))
	}
}

func TestRunSnapshot(t *testing.T) {
	cfg := Default()
	yamlData := []byte("test yaml content")

	snapshot, err := NewRunSnapshot(cfg, yamlData)
	if err != nil {
		t.Fatalf("NewRunSnapshot failed: %v", err)
	}

	if snapshot.StrategyID != "tail_session_v1" {
		t.Errorf("expected strategy_id=tail_session_v1, got %s", snapshot.StrategyID)
	}
	if snapshot.Variant != VariantDefault {
		t.Errorf("expected variant=default, got %s", snapshot.Variant)
	}
	if len(snapshot.ConfigHash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(snapshot.ConfigHash))
	}
}

func TestValidateHHMM(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"09:00", true},
		{"15:30", true},
		{"00:00", true},
		{"23:59", true},
		{"9:00", false},
		{"09:0", false},
		{"25:00", false},
		{"09:60", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		err := validateHHMM(tc.input)
		if tc.valid && err != nil {
			t.Errorf("validateHHMM(%s) expected valid, got error: %v", tc.input, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("validateHHMM(%s) expected error, got nil", tc.input)
		}
	}
}

func TestBandContains(t *testing.T) {
	b := Band{Min: 3, Max: 5}
	for v, want := range map[float64]bool{2.99: false, 3: true, 4: true, 5: true, 5.01: false} {
		if got := b.Contains(v); got != want {
			t.Errorf("Contains(%v) = %v, want %v", v, got, want)
		}
	}
}
