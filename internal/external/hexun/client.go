package hexun

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/httputil"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// 和讯个股页面, 只有行情快照没有列表/K线
const quotePageURL = "http://stockdata.hexun.com/"

// Client scrapes the Hexun per-stock quote page. It is the lowest rung
// of the source ladder: quote only, from rendered HTML, so it survives
// when the JSON endpoints of the other sources are blocked.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new Hexun client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
	}
}

// Name identifies this adapter to the gateway.
func (c *Client) Name() contracts.Source {
	return contracts.SourceHexun
}

// StockList is not served by Hexun.
func (c *Client) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	return nil, fmt.Errorf("%w: hexun: no list endpoint", contracts.ErrUnsupported)
}

// Kline is not served by Hexun.
func (c *Client) Kline(ctx context.Context, code string, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return nil, fmt.Errorf("%w: hexun: no kline endpoint", contracts.ErrUnsupported)
}

// IndexKline is not served by Hexun.
func (c *Client) IndexKline(ctx context.Context, market contracts.Market, granularity contracts.KlineGranularity, count int) (*contracts.KlineSeries, error) {
	return nil, fmt.Errorf("%w: hexun: no kline endpoint", contracts.ErrUnsupported)
}

// Quote scrapes the realtime snapshot from the per-stock page.
func (c *Client) Quote(ctx context.Context, code string, market contracts.Market) (*contracts.Candidate, error) {
	if market != contracts.MarketSH && market != contracts.MarketSZ && market != contracts.MarketBJ {
		return nil, fmt.Errorf("%w: hexun: market %s", contracts.ErrUnsupported, market)
	}

	resp, err := c.httpClient.Get(ctx, quotePageURL+code+".shtml")
	if err != nil {
		return nil, fmt.Errorf("%w: hexun: %v", contracts.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if httputil.IsThrottled(resp.StatusCode) {
		return nil, fmt.Errorf("%w: hexun: status %d", contracts.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: hexun: status %d", contracts.ErrNetwork, resp.StatusCode)
	}

	var reader io.Reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: hexun: parse html: %v", contracts.ErrFormat, err)
	}

	return parseQuotePage(doc, code, market)
}

// parseQuotePage pulls the snapshot out of the quote header and the
// 盘口 detail table. 标签→值 pairs live in dt/dd cells.
func parseQuotePage(doc *goquery.Document, code string, market contracts.Market) (*contracts.Candidate, error) {
	cand := &contracts.Candidate{
		Code:       code,
		Market:     market,
		Provenance: make(contracts.Provenance),
	}

	if name := strings.TrimSpace(doc.Find("div.stockInfo h1, div.s_title h1").First().Text()); name != "" {
		// "浦发银行(600000)" → "浦发银行"
		if i := strings.IndexAny(name, "(（"); i > 0 {
			name = name[:i]
		}
		cand.Name = strings.TrimSpace(name)
	}

	cand.Price = textField(doc.Find("#newPrices, span.price, strong#price").First().Text())
	cand.LastPrice = cand.Price

	labels := map[string]*contracts.Field{
		"涨跌幅": &cand.ChangePct,
		"最高":  &cand.DayHigh,
		"成交量": &cand.Volume,
		"换手率": &cand.TurnoverRate,
		"量比":  &cand.VolumeRatio,
		"总市值": &cand.MarketCap,
	}

	doc.Find("dl dt, dl dd, td").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		for label, dst := range labels {
			if dst.Valid || !strings.HasPrefix(text, label) {
				continue
			}
			raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, label), ":"))
			raw = strings.TrimPrefix(raw, "：")
			if f := scaledField(raw); f.Valid {
				*dst = f
			}
		}
	})

	if !cand.Price.Valid {
		return nil, fmt.Errorf("%w: hexun quote: no price for %s", contracts.ErrFormat, code)
	}
	return cand, nil
}

// scaledField parses "12.34%", "5.6亿", "3.2万手" style values into the
// shared units (元 / 股 / 百分点).
func scaledField(s string) contracts.Field {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "亿"):
		s, scale = strings.TrimSuffix(s, "亿"), 1e8
	case strings.HasSuffix(s, "万手"):
		s, scale = strings.TrimSuffix(s, "万手"), 1e4*100
	case strings.HasSuffix(s, "万"):
		s, scale = strings.TrimSuffix(s, "万"), 1e4
	case strings.HasSuffix(s, "手"):
		s, scale = strings.TrimSuffix(s, "手"), 100
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return contracts.Missing
	}
	return contracts.F(v * scale)
}

func textField(s string) contracts.Field {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return contracts.Missing
	}
	return contracts.F(v)
}
