package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// scale 参数: 240=日线 1200=周线? 新浪只认分钟数, 日线以上用 240/1680/7200
var granularityScales = map[contracts.KlineGranularity]int{
	contracts.KlineDaily:   240,
	contracts.KlineWeekly:  1680,
	contracts.KlineMonthly: 7200,
}

type klineEntry struct {
	Day    string      `json:"day"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
}

// Kline fetches an OHLCV series, oldest bar first.
func (c *Client) Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return c.klineBySymbol(ctx, Symbol(code, market), code, granularity, count)
}

// IndexKline fetches the benchmark index series for a market.
func (c *Client) IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	symbol, ok := indexCodes[market]
	if !ok {
		return nil, fmt.Errorf("%w: sina: no benchmark index for market %s", contracts.ErrUnsupported, market)
	}
	return c.klineBySymbol(ctx, symbol, symbol, granularity, count)
}

func (c *Client) klineBySymbol(ctx context.Context, symbol, code string, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	scale, ok := granularityScales[granularity]
	if !ok {
		return nil, fmt.Errorf("%w: sina: granularity %s", contracts.ErrUnsupported, granularity)
	}
	if count <= 0 {
		count = 60
	}

	body, err := c.fetch(ctx, klineRequestURL(symbol, scale, count), false)
	if err != nil {
		return nil, err
	}

	bars, err := parseKline(body, code)
	if err != nil {
		return nil, err
	}

	return &contracts.KlineSeries{
		Code:        code,
		Granularity: granularity,
		Bars:        bars,
	}, nil
}

func parseKline(body []byte, code string) ([]contracts.KlineBar, error) {
	if len(body) == 0 || string(body) == "null" {
		return nil, fmt.Errorf("%w: sina kline: empty payload for %s", contracts.ErrFormat, code)
	}

	var entries []klineEntry
	if err := json.Unmarshal(normalizeJSObject(body), &entries); err != nil {
		return nil, fmt.Errorf("%w: sina kline: %v", contracts.ErrFormat, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: sina kline: no bars for %s", contracts.ErrFormat, code)
	}

	bars := make([]contracts.KlineBar, 0, len(entries))
	for _, e := range entries {
		day, err := time.Parse("2006-01-02", e.Day)
		if err != nil {
			continue
		}
		open, _ := e.Open.Float64()
		high, _ := e.High.Float64()
		low, _ := e.Low.Float64()
		closeV, _ := e.Close.Float64()
		vol, _ := e.Volume.Float64()
		bars = append(bars, contracts.KlineBar{
			Date:   day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeV,
			Volume: vol,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: sina kline: no parsable bars for %s", contracts.ErrFormat, code)
	}
	return bars, nil
}
