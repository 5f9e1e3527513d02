package tencent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// v_sh600000 字段序(~分隔): 1名称 2代码 3现价 4昨收 5今开 6成交量(手)
// 32涨跌幅 33最高 34最低 38换手率 45总市值(亿) 49量比
const (
	qtName       = 1
	qtCode       = 2
	qtPrice      = 3
	qtPrevClose  = 4
	qtVolume     = 6
	qtChangePct  = 32
	qtHigh       = 33
	qtTurnover   = 38
	qtMarketCap  = 45
	qtVolRatio   = 49
	qtMinFields  = 50
	qtHandShares = 100 // 一手 = 100 股
)

// Quote fetches the realtime quote for one stock from qt.gtimg.cn.
func (c *Client) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	symbol := Symbol(code, market)
	body, err := c.fetch(ctx, quoteURL+symbol, true)
	if err != nil {
		return nil, err
	}

	return parseQuote(string(body), code, market)
}

func parseQuote(body, code string, market contracts.Market) (*contracts.Candidate, error) {
	// v_sh600000="1~浦发银行~600000~7.29~7.27~...";
	start := strings.Index(body, `"`)
	end := strings.LastIndex(body, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: tencent quote: no payload for %s", contracts.ErrFormat, code)
	}

	fields := strings.Split(body[start+1:end], "~")
	if len(fields) < qtMinFields {
		return nil, fmt.Errorf("%w: tencent quote: %d fields for %s", contracts.ErrFormat, len(fields), code)
	}

	cand := &contracts.Candidate{
		Code:       code,
		Name:       fields[qtName],
		Market:     market,
		Provenance: make(contracts.Provenance),
	}

	cand.Price = floatField(fields[qtPrice])
	cand.LastPrice = cand.Price
	cand.ChangePct = floatField(fields[qtChangePct])
	cand.DayHigh = floatField(fields[qtHigh])
	cand.TurnoverRate = floatField(fields[qtTurnover])
	cand.VolumeRatio = floatField(fields[qtVolRatio])

	if vol := floatField(fields[qtVolume]); vol.Valid {
		// 手 → 股, 与其他来源对齐
		cand.Volume = contracts.F(vol.Value * qtHandShares)
	}
	if cap := floatField(fields[qtMarketCap]); cap.Valid {
		// 亿 → 元
		cand.MarketCap = contracts.F(cap.Value * 1e8)
	}

	if !cand.ChangePct.Valid {
		price := cand.Price
		prevClose := floatField(fields[qtPrevClose])
		if price.Valid && prevClose.Valid && prevClose.Value > 0 {
			cand.ChangePct = contracts.F((price.Value/prevClose.Value - 1) * 100)
		}
	}

	return cand, nil
}

func floatField(s string) contracts.Field {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return contracts.Missing
	}
	return contracts.F(v)
}
