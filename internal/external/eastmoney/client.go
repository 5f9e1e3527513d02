package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/httputil"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// 东方财富接口地址
const (
	listURL  = "http://80.push2.eastmoney.com/api/qt/clist/get"
	klineURL = "http://push2his.eastmoney.com/api/qt/stock/kline/get"

	listPageSize = 500

	// 列表字段: f2 现价 f3 涨跌幅 f6 成交额 f5 成交量 f8 换手率 f10 量比
	// f12 代码 f14 名称 f15 最高 f20 总市值
	listFields = "f2,f3,f5,f6,f8,f10,f12,f14,f15,f20"
)

// 市场 → clist fs 参数
var marketFS = map[contracts.Market]string{
	contracts.MarketSH: "m:1+t:2,m:1+t:23",
	contracts.MarketSZ: "m:0+t:6,m:0+t:80",
	contracts.MarketBJ: "m:0+t:81+s:2048",
	contracts.MarketHK: "m:116",
	contracts.MarketUS: "m:105,m:106,m:107",
}

// 基准指数 secid
var indexSecIDs = map[contracts.Market]string{
	contracts.MarketSH: "1.000001", // 上证指数
	contracts.MarketSZ: "0.399001", // 深证成指
	contracts.MarketBJ: "0.899050", // 北证50
}

// klt 参数: 101 日线 102 周线 103 月线
var granularityKLT = map[contracts.KlineGranularity]int{
	contracts.KlineDaily:   101,
	contracts.KlineWeekly:  102,
	contracts.KlineMonthly: 103,
}

// Client handles communication with the Eastmoney push2 endpoints.
// ⭐ SSOT: 东方财富行情调用只在这个客户端
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new Eastmoney client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
	}
}

// Name identifies this adapter to the gateway.
func (c *Client) Name() contracts.Source {
	return contracts.SourceEastmoney
}

func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: eastmoney: %v", contracts.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if httputil.IsThrottled(resp.StatusCode) {
		return nil, fmt.Errorf("%w: eastmoney: status %d", contracts.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: eastmoney: status %d", contracts.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: eastmoney: read body: %v", contracts.ErrNetwork, err)
	}
	return body, nil
}

// StockList fetches the full quote list for a market, paging through
// data.diff until the upstream reports no more rows.
func (c *Client) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	fs, ok := marketFS[market]
	if !ok {
		return nil, fmt.Errorf("%w: eastmoney: market %s", contracts.ErrUnsupported, market)
	}

	var out []*contracts.Candidate
	for page := 1; ; page++ {
		// fltt=2: 返回浮点而不是 ×100 整数
		url := fmt.Sprintf("%s?pn=%d&pz=%d&po=0&fltt=2&fid=f12&fs=%s&fields=%s",
			listURL, page, listPageSize, fs, listFields)

		body, err := c.fetch(ctx, url)
		if err != nil {
			return nil, err
		}

		rows, total, err := parseListPage(body, market)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)

		if len(rows) < listPageSize || len(out) >= total {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"source": "eastmoney",
		"market": market,
		"count":  len(out),
	}).Debug("Fetched stock list")

	return out, nil
}

func parseListPage(body []byte, market contracts.Market) ([]*contracts.Candidate, int, error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		// data:null on a page past the end
		return nil, 0, nil
	}

	diff := data.Get("diff")
	if !diff.Exists() {
		return nil, 0, fmt.Errorf("%w: eastmoney list: no data.diff", contracts.ErrFormat)
	}

	total := int(data.Get("total").Int())

	var out []*contracts.Candidate
	appendRow := func(_, v gjson.Result) bool {
		cand := rowToCandidate(v, market)
		if cand != nil {
			out = append(out, cand)
		}
		return true
	}
	// diff 偶尔是对象 {"0":{...},"1":{...}} 而不是数组
	diff.ForEach(appendRow)

	return out, total, nil
}

func rowToCandidate(v gjson.Result, market contracts.Market) *contracts.Candidate {
	code := strings.TrimSpace(v.Get("f12").String())
	if code == "" {
		return nil
	}

	cand := &contracts.Candidate{
		Code:       code,
		Name:       strings.TrimSpace(v.Get("f14").String()),
		Market:     market,
		Provenance: make(contracts.Provenance),
	}

	cand.Price = jsonField(v.Get("f2"))
	cand.LastPrice = cand.Price
	cand.ChangePct = jsonField(v.Get("f3"))
	cand.Volume = jsonField(v.Get("f5"))
	cand.TurnoverRate = jsonField(v.Get("f8"))
	cand.VolumeRatio = jsonField(v.Get("f10"))
	cand.DayHigh = jsonField(v.Get("f15"))
	cand.MarketCap = jsonField(v.Get("f20")) // 元

	return cand
}

// Quote fetches a single-stock snapshot by filtering the market list
// endpoint down to one secid.
func (c *Client) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	url := fmt.Sprintf("%s?pn=1&pz=1&po=0&fltt=2&fid=f12&fs=%s&fields=%s",
		listURL, "b:"+SecID(code, market), listFields)

	body, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	rows, _, err := parseListPage(body, market)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: eastmoney quote: no row for %s", contracts.ErrFormat, code)
	}
	return rows[0], nil
}

// Kline fetches a forward-adjusted OHLCV series, oldest bar first.
func (c *Client) Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return c.klineBySecID(ctx, SecID(code, market), code, granularity, count)
}

// IndexKline fetches the benchmark index series for a market.
func (c *Client) IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	secid, ok := indexSecIDs[market]
	if !ok {
		return nil, fmt.Errorf("%w: eastmoney: no benchmark index for market %s", contracts.ErrUnsupported, market)
	}
	return c.klineBySecID(ctx, secid, secid, granularity, count)
}

func (c *Client) klineBySecID(ctx context.Context, secid, code string, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	klt, ok := granularityKLT[granularity]
	if !ok {
		return nil, fmt.Errorf("%w: eastmoney: granularity %s", contracts.ErrUnsupported, granularity)
	}
	if count <= 0 {
		count = 60
	}
	if count > 1000 {
		count = 1000
	}

	// fqt=1 前复权
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56&klt=%d&fqt=1&lmt=%d",
		klineURL, secid, klt, count)

	body, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	bars, err := parseKlines(body, code)
	if err != nil {
		return nil, err
	}

	return &contracts.KlineSeries{
		Code:        code,
		Granularity: granularity,
		Bars:        bars,
	}, nil
}

// parseKlines parses data.klines: ["2025-05-12,7.20,7.29,7.31,7.15,123456", ...]
// 字段序: 日期,开,收,高,低,量
func parseKlines(body []byte, code string) ([]contracts.KlineBar, error) {
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("%w: eastmoney kline: no data.klines for %s", contracts.ErrFormat, code)
	}

	arr := klines.Array()
	out := make([]contracts.KlineBar, 0, len(arr))
	for _, v := range arr {
		parts := strings.Split(strings.TrimSpace(v.String()), ",")
		if len(parts) < 6 {
			continue
		}
		day, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(parts[1], 64)
		closeV, _ := strconv.ParseFloat(parts[2], 64)
		high, _ := strconv.ParseFloat(parts[3], 64)
		low, _ := strconv.ParseFloat(parts[4], 64)
		vol, _ := strconv.ParseFloat(parts[5], 64)
		out = append(out, contracts.KlineBar{
			Date:   day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeV,
			Volume: vol,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: eastmoney kline: no parsable bars for %s", contracts.ErrFormat, code)
	}
	return out, nil
}

func jsonField(v gjson.Result) contracts.Field {
	// push2 用 "-" 表示无值
	if !v.Exists() || v.Type == gjson.Null || v.String() == "-" {
		return contracts.Missing
	}
	return contracts.F(v.Float())
}

// SecID renders the push2 security id: 上海 1.600519, 深圳/北京 0.000001
func SecID(code string, market contracts.Market) string {
	switch market {
	case contracts.MarketSH:
		return "1." + code
	default:
		return "0." + code
	}
}
