package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// listEntry mirrors one element of the Market_Center node data.
// mktcap/nmc 单位是万元
type listEntry struct {
	Symbol        string      `json:"symbol"`
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	Trade         json.Number `json:"trade"`
	ChangePercent json.Number `json:"changepercent"`
	Volume        json.Number `json:"volume"`
	TurnoverRatio json.Number `json:"turnoverratio"`
	MktCap        json.Number `json:"mktcap"`
	High          json.Number `json:"high"`
}

// The node-data endpoint emits a JS object literal, not strict JSON:
// keys are unquoted. Quote them before handing to encoding/json.
var unquotedKey = regexp.MustCompile(`([{,])\s*([A-Za-z_][A-Za-z0-9_]*)\s*:`)

func normalizeJSObject(raw []byte) []byte {
	return unquotedKey.ReplaceAll(raw, []byte(`$1"$2":`))
}

// StockList fetches the full quote list for a market, paging until the
// upstream returns a short page.
func (c *Client) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	node, ok := marketNodes[market]
	if !ok {
		return nil, fmt.Errorf("%w: sina: market %s", contracts.ErrUnsupported, market)
	}

	var out []*contracts.Candidate
	for page := 1; ; page++ {
		body, err := c.fetch(ctx, listPageURL(node, page), true)
		if err != nil {
			return nil, err
		}

		entries, err := parseListPage(body)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			cand := entryToCandidate(e, market)
			if cand != nil {
				out = append(out, cand)
			}
		}

		if len(entries) < listPageSize {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"source": "sina",
		"market": market,
		"count":  len(out),
	}).Debug("Fetched stock list")

	return out, nil
}

func parseListPage(body []byte) ([]listEntry, error) {
	// "null" means a page past the end, not an error
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}

	var entries []listEntry
	if err := json.Unmarshal(normalizeJSObject(body), &entries); err != nil {
		return nil, fmt.Errorf("%w: sina list: %v", contracts.ErrFormat, err)
	}
	return entries, nil
}

func entryToCandidate(e listEntry, market contracts.Market) *contracts.Candidate {
	if e.Code == "" {
		return nil
	}

	cand := &contracts.Candidate{
		Code:       e.Code,
		Name:       e.Name,
		Market:     market,
		Provenance: make(contracts.Provenance),
	}

	cand.Price = numField(e.Trade)
	cand.LastPrice = cand.Price
	cand.ChangePct = numField(e.ChangePercent)
	cand.Volume = numField(e.Volume)
	cand.TurnoverRate = numField(e.TurnoverRatio)
	cand.DayHigh = numField(e.High)
	if cap := numField(e.MktCap); cap.Valid {
		// 万元 → 元
		cand.MarketCap = contracts.F(cap.Value * 1e4)
	}

	return cand
}

// numField converts a JSON number to a Field. Sina reports suspended
// stocks with trade=0 but a list row's zero price means "no trade", so a
// literal 0 stays valid. The pre-filters drop sub-1-yuan entries anyway.
func numField(n json.Number) contracts.Field {
	if n == "" {
		return contracts.Missing
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return contracts.Missing
	}
	return contracts.F(v)
}
