package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/httputil"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// 新浪财经接口
const (
	listURL     = "http://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeData"
	realtimeURL = "http://hq.sinajs.cn/list="
	klineURL    = "http://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData"

	listPageSize = 80
)

// 市场 → 新浪 node 参数
var marketNodes = map[contracts.Market]string{
	contracts.MarketSH: "sh_a",
	contracts.MarketSZ: "sz_a",
	contracts.MarketBJ: "bj_a",
	contracts.MarketHK: "hk_main",
	contracts.MarketUS: "us_main",
}

// 基准指数代码
var indexCodes = map[contracts.Market]string{
	contracts.MarketSH: "sh000001", // 上证指数
	contracts.MarketSZ: "sz399001", // 深证成指
	contracts.MarketBJ: "bj899050", // 北证50
}

// Client handles communication with Sina Finance.
// ⭐ SSOT: 新浪行情调用只在这个客户端
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new Sina Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
	}
}

// Name identifies this adapter to the gateway.
func (c *Client) Name() contracts.Source {
	return contracts.SourceSina
}

// fetch performs a GET and classifies transport failures into the shared
// error taxonomy. hq.sinajs.cn responds in GBK; decode when asked.
func (c *Client) fetch(ctx context.Context, fullURL string, gbk bool) ([]byte, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: sina: %v", contracts.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if httputil.IsThrottled(resp.StatusCode) {
		return nil, fmt.Errorf("%w: sina: status %d", contracts.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: sina: status %d", contracts.ErrNetwork, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if gbk {
		reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: sina: read body: %v", contracts.ErrNetwork, err)
	}
	return body, nil
}

func listPageURL(node string, page int) string {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("num", fmt.Sprintf("%d", listPageSize))
	params.Set("sort", "symbol")
	params.Set("asc", "1")
	params.Set("node", node)
	return listURL + "?" + params.Encode()
}

func klineRequestURL(symbol string, scale, datalen int) string {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("scale", fmt.Sprintf("%d", scale))
	params.Set("ma", "no")
	params.Set("datalen", fmt.Sprintf("%d", datalen))
	return klineURL + "?" + params.Encode()
}
