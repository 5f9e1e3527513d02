package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/external/eastmoney"
	"github.com/ss3211545/stock-web-app/internal/external/hexun"
	"github.com/ss3211545/stock-web-app/internal/external/sina"
	"github.com/ss3211545/stock-web-app/internal/external/tencent"
	"github.com/ss3211545/stock-web-app/internal/gateway"
	"github.com/ss3211545/stock-web-app/internal/runner"
	"github.com/ss3211545/stock-web-app/internal/store"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/config"
	"github.com/ss3211545/stock-web-app/pkg/database"
	"github.com/ss3211545/stock-web-app/pkg/httputil"
	"github.com/ss3211545/stock-web-app/pkg/logger"
	"github.com/ss3211545/stock-web-app/pkg/redis"
)

// stack bundles everything a command may need after bootstrap.
type stack struct {
	Cfg      *config.Config
	Log      *logger.Logger
	Strategy *strategyconfig.Config
	Gateway  *gateway.Gateway
	Runner   *runner.Runner
	Archiver *store.Archiver // nil without DATABASE_URL

	closers []func()
}

// Close releases held connections, last acquired first.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStack wires the full screening stack from env config.
// ⭐ SSOT: 依赖装配只在这里, 各命令不自己 new
func buildStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	s := &stack{Cfg: cfg, Log: log}

	// Redis: 关掉也能跑, 缓存与共享限流退化为 no-op
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.closers = append(s.closers, func() { _ = redisClient.Close() })
	cache := redis.NewCache(redisClient, "tailscan")
	rateLimiter := redis.NewRateLimiter(redisClient, "tailscan")

	// 每个来源一个 HTTP 客户端: 限流/Referer 互不串扰
	timeout := cfg.Screener.RequestTimeout
	sinaHTTP := httputil.New(log, timeout).
		WithRateLimit(10, 5).
		WithReferer("https://finance.sina.com.cn").
		WithSharedRateLimit(rateLimiter, redis.SinaRateLimit)
	eastmoneyHTTP := httputil.New(log, timeout).
		WithRateLimit(10, 5).
		WithSharedRateLimit(rateLimiter, redis.EastmoneyRateLimit)
	tencentHTTP := httputil.New(log, timeout).
		WithRateLimit(10, 5).
		WithReferer("https://gu.qq.com").
		WithSharedRateLimit(rateLimiter, redis.TencentRateLimit)
	hexunHTTP := httputil.New(log, timeout).
		WithRateLimit(5, 2).
		WithSharedRateLimit(rateLimiter, redis.HexunRateLimit)

	registry := gateway.NewRegistry(
		sina.NewClient(sinaHTTP, log),
		eastmoney.NewClient(eastmoneyHTTP, log),
		tencent.NewClient(tencentHTTP, log),
		hexun.NewClient(hexunHTTP, log),
	)

	degrade, err := gateway.NewDegradationController(contracts.DegradationConfig{
		Enabled: cfg.Screener.DegradationEnabled,
		Level:   contracts.DegradationLevel(cfg.Screener.DegradationLevel),
	}, log)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(registry, cfg.Screener.SourcePriority, degrade, cache, log)
	if err != nil {
		return nil, err
	}
	s.Gateway = gw

	// Strategy thresholds: file wins, built-in defaults otherwise
	strategy, snapshot, err := loadStrategy(cfg, log)
	if err != nil {
		return nil, err
	}
	s.Strategy = strategy

	// Optional outcome archive
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		archiver, err := store.NewArchiver(context.Background(), db, log)
		if err != nil {
			return nil, err
		}
		s.Archiver = archiver
	}

	enricher := gateway.NewEnricher(gw, cfg.Screener.EnrichWorkers, log)
	s.Runner = runner.New(gw, enricher, strategy, snapshot, s.Archiver, runner.NewBroker(), log)

	return s, nil
}

func loadStrategy(cfg *config.Config, log *logger.Logger) (*strategyconfig.Config, *strategyconfig.RunSnapshot, error) {
	var (
		strategy *strategyconfig.Config
		yamlData []byte
	)

	if cfg.Screener.StrategyFile != "" {
		loaded, data, err := strategyconfig.Load(cfg.Screener.StrategyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load strategy %s: %w", cfg.Screener.StrategyFile, err)
		}
		strategy, yamlData = loaded, data
	} else {
		strategy = strategyconfig.Default()
	}

	for _, warning := range strategyconfig.Warn(strategy) {
		log.WithFields(map[string]interface{}{
			"code":    warning.Code,
			"message": warning.Message,
		}).Warn("Strategy config warning")
	}

	snapshot, err := strategyconfig.NewRunSnapshot(strategy, yamlData)
	if err != nil {
		return nil, nil, err
	}
	return strategy, snapshot, nil
}

// resolveMarket picks the market from the flag or env default.
func resolveMarket(cfg *config.Config) (contracts.Market, error) {
	raw := marketFlag
	if raw == "" {
		raw = cfg.Screener.Market
	}
	m := contracts.Market(strings.ToUpper(raw))
	if !contracts.ValidMarket(m) {
		return "", fmt.Errorf("unknown market %q (want SH, SZ, BJ, HK or US)", raw)
	}
	return m, nil
}
