package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/httputil"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// 腾讯行情接口
const (
	quoteURL = "http://qt.gtimg.cn/q="
	klineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"
)

// 基准指数代码
var indexSymbols = map[contracts.Market]string{
	contracts.MarketSH: "sh000001",
	contracts.MarketSZ: "sz399001",
	contracts.MarketBJ: "bj899050",
}

// Client handles communication with the Tencent quote endpoints. The
// quote side has no list endpoint, so this adapter serves quotes and
// klines only; the gateway falls through to another source for lists.
// ⭐ SSOT: 腾讯行情调用只在这个客户端
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new Tencent client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
	}
}

// Name identifies this adapter to the gateway.
func (c *Client) Name() contracts.Source {
	return contracts.SourceTencent
}

// StockList is not served by Tencent's quote endpoints.
func (c *Client) StockList(ctx context.Context, market contracts.Market) ([]*contracts.Candidate, error) {
	return nil, fmt.Errorf("%w: tencent: no list endpoint", contracts.ErrUnsupported)
}

// fetch performs a GET and classifies transport failures. qt.gtimg.cn
// responds in GBK; decode when asked.
func (c *Client) fetch(ctx context.Context, fullURL string, gbk bool) ([]byte, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: tencent: %v", contracts.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if httputil.IsThrottled(resp.StatusCode) {
		return nil, fmt.Errorf("%w: tencent: status %d", contracts.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tencent: status %d", contracts.ErrNetwork, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if gbk {
		reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: tencent: read body: %v", contracts.ErrNetwork, err)
	}
	return body, nil
}

// Symbol renders a bare code as Tencent's prefixed symbol (600000 → sh600000).
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
		return "us" + strings.ToUpper(code)
	default:
		return "sh" + code
	}
}
