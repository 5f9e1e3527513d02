package hexun

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

func TestScaledField(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"3.25%", 3.25},
		{"7.29", 7.29},
		{"2140亿", 2.14e11},
		{"52.34万手", 52.34 * 1e4 * 100},
		{"2140万", 2.14e7},
		{"523400手", 52340000},
	}
	for _, tc := range cases {
		f := scaledField(tc.in)
		require.True(t, f.Valid, tc.in)
		assert.InDelta(t, tc.want, f.Value, tc.want*1e-9+1e-9, tc.in)
	}

	assert.False(t, scaledField("--").Valid)
	assert.False(t, scaledField("").Valid)
}

func TestParseQuotePage(t *testing.T) {
	html := `<html><body>
	<div class="stockInfo"><h1>浦发银行(600000)</h1></div>
	<span id="newPrices">7.29</span>
	<dl>
	  <dd>涨跌幅:3.25%</dd>
	  <dd>最高:7.35</dd>
	  <dd>成交量:52.34万手</dd>
	</dl>
	<table><tr>
	  <td>换手率：1.83%</td>
	  <td>量比：1.52</td>
	  <td>总市值：2140亿</td>
	</tr></table>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	cand, err := parseQuotePage(doc, "600000", contracts.MarketSH)
	require.NoError(t, err)

	assert.Equal(t, "浦发银行", cand.Name)
	assert.InDelta(t, 7.29, cand.Price.Value, 1e-9)
	assert.InDelta(t, 3.25, cand.ChangePct.Value, 1e-9)
	assert.InDelta(t, 7.35, cand.DayHigh.Value, 1e-9)
	assert.InDelta(t, 52.34e4*100, cand.Volume.Value, 1)
	assert.InDelta(t, 1.83, cand.TurnoverRate.Value, 1e-9)
	assert.InDelta(t, 1.52, cand.VolumeRatio.Value, 1e-9)
	assert.InDelta(t, 2.14e11, cand.MarketCap.Value, 1)
}

func TestParseQuotePage_NoPrice(t *testing.T) {
	html := `<html><body><div class="stockInfo"><h1>某股(600001)</h1></div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	_, err = parseQuotePage(doc, "600001", contracts.MarketSH)
	assert.ErrorIs(t, err, contracts.ErrFormat)
}
