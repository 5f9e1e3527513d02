package tencent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

var granularityParams = map[contracts.KlineGranularity]string{
	contracts.KlineDaily:   "day",
	contracts.KlineWeekly:  "week",
	contracts.KlineMonthly: "month",
}

// Kline fetches a forward-adjusted OHLCV series, oldest bar first.
func (c *Client) Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return c.klineBySymbol(ctx, Symbol(code, market), code, granularity, count)
}

// IndexKline fetches the benchmark index series for a market.
func (c *Client) IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	symbol, ok := indexSymbols[market]
	if !ok {
		return nil, fmt.Errorf("%w: tencent: no benchmark index for market %s", contracts.ErrUnsupported, market)
	}
	return c.klineBySymbol(ctx, symbol, symbol, granularity, count)
}

func (c *Client) klineBySymbol(ctx context.Context, symbol, code string, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	period, ok := granularityParams[granularity]
	if !ok {
		return nil, fmt.Errorf("%w: tencent: granularity %s", contracts.ErrUnsupported, granularity)
	}
	if count <= 0 {
		count = 60
	}

	// param=sh600000,day,,,60,qfq
	url := fmt.Sprintf("%s?param=%s,%s,,,%d,qfq", klineURL, symbol, period, count)

	body, err := c.fetch(ctx, url, false)
	if err != nil {
		return nil, err
	}

	bars, err := parseKline(body, symbol, period)
	if err != nil {
		return nil, err
	}

	return &contracts.KlineSeries{
		Code:        code,
		Granularity: granularity,
		Bars:        bars,
	}, nil
}

// parseKline walks data.<symbol>.qfq_<period> (falling back to the
// unadjusted key for indexes): [["2025-05-12","7.20","7.29","7.31","7.15","123456"], ...]
// 字段序: 日期,开,收,高,低,量(手)
func parseKline(body []byte, symbol, period string) ([]contracts.KlineBar, error) {
	node := gjson.GetBytes(body, "data."+symbol+".qfq_"+period)
	if !node.Exists() || !node.IsArray() {
		node = gjson.GetBytes(body, "data."+symbol+"."+period)
	}
	if !node.Exists() || !node.IsArray() {
		return nil, fmt.Errorf("%w: tencent kline: no series for %s", contracts.ErrFormat, symbol)
	}

	arr := node.Array()
	out := make([]contracts.KlineBar, 0, len(arr))
	for _, row := range arr {
		cols := row.Array()
		if len(cols) < 6 {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSpace(cols[0].String()))
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(cols[1].String(), 64)
		closeV, _ := strconv.ParseFloat(cols[2].String(), 64)
		high, _ := strconv.ParseFloat(cols[3].String(), 64)
		low, _ := strconv.ParseFloat(cols[4].String(), 64)
		vol, _ := strconv.ParseFloat(cols[5].String(), 64)
		out = append(out, contracts.KlineBar{
			Date:   day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeV,
			Volume: vol * qtHandShares,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: tencent kline: no parsable bars for %s", contracts.ErrFormat, symbol)
	}
	return out, nil
}
