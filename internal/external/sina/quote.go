package sina

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// hq_str 字段序: 0名称 1今开 2昨收 3现价 4最高 5最低 8成交量(股) 9成交额(元) 30日期 31时间
const (
	hqName = iota
	hqOpen
	hqPrevClose
	hqPrice
	hqHigh
	hqLow
	_
	_
	hqVolume
	hqAmount

	hqMinFields = 10
)

// Quote fetches the realtime quote for one stock from hq.sinajs.cn.
// The payload carries no turnover/volume-ratio/market-cap; those fields
// stay MISSING and the gateway fills them from elsewhere.
func (c *Client) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	symbol := Symbol(code, market)
	body, err := c.fetch(ctx, realtimeURL+symbol, true)
	if err != nil {
		return nil, err
	}

	return parseQuote(string(body), code, market)
}

func parseQuote(body, code string, market contracts.Market) (*contracts.Candidate, error) {
	// var hq_str_sh600000="浦发银行,7.28,7.27,7.29,...";
	start := strings.Index(body, `"`)
	end := strings.LastIndex(body, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: sina quote: no payload for %s", contracts.ErrFormat, code)
	}

	fields := strings.Split(body[start+1:end], ",")
	if len(fields) < hqMinFields {
		// 停牌或无此代码时返回空串
		return nil, fmt.Errorf("%w: sina quote: %d fields for %s", contracts.ErrFormat, len(fields), code)
	}

	cand := &contracts.Candidate{
		Code:       code,
		Name:       fields[hqName],
		Market:     market,
		Provenance: make(contracts.Provenance),
	}

	price := parseFloatField(fields[hqPrice])
	prevClose := parseFloatField(fields[hqPrevClose])
	cand.Price = price
	cand.LastPrice = price
	cand.DayHigh = parseFloatField(fields[hqHigh])
	cand.Volume = parseFloatField(fields[hqVolume])

	if price.Valid && prevClose.Valid && prevClose.Value > 0 {
		cand.ChangePct = contracts.F((price.Value/prevClose.Value - 1) * 100)
	}

	return cand, nil
}

func parseFloatField(s string) contracts.Field {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return contracts.Missing
	}
	return contracts.F(v)
}

// Symbol renders a bare code as Sina's prefixed symbol (600000 → sh600000).
func Symbol(code string, market contracts.Market) string {
	if len(code) > 2 && (strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") || strings.HasPrefix(code, "bj")) {
		return code
	}
	switch market {
	case contracts.MarketSZ:
		return "sz" + code
	case contracts.MarketBJ:
		return "bj" + code
	case contracts.MarketHK:
		return "hk" + code
	case contracts.MarketUS:
		return "gb_" + strings.ToLower(code)
	default:
		return "sh" + code
	}
}
