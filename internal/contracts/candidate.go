package contracts

// Field is an optional numeric quote field.
// A quote field that an upstream did not deliver is Valid=false (MISSING),
// never zero. Zero is a legal price change and a legal turnover rate.
type Field struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Missing is the sentinel for an absent field.
var Missing = Field{}

// F wraps a known-good value.
func F(v float64) Field {
	return Field{Value: v, Valid: true}
}

// FieldName identifies one quote field on a Candidate.
type FieldName string

const (
	FieldPrice         FieldName = "price"
	FieldChangePct     FieldName = "change_pct"
	FieldVolume        FieldName = "volume"
	FieldTurnoverRate  FieldName = "turnover_rate"
	FieldVolumeRatio   FieldName = "volume_ratio"
	FieldMarketCap     FieldName = "market_cap"
	FieldMA5           FieldName = "ma5"
	FieldMA10          FieldName = "ma10"
	FieldMA20          FieldName = "ma20"
	FieldMA60          FieldName = "ma60"
	FieldIndexStrength FieldName = "index_relative_strength"
	FieldDayHigh       FieldName = "day_high"
	FieldLastPrice     FieldName = "last_price"
	FieldKline         FieldName = "kline"
)

// Market is an exchange identifier.
type Market string

const (
	MarketSH Market = "SH" // 上海
	MarketSZ Market = "SZ" // 深圳
	MarketBJ Market = "BJ" // 北京
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

// ValidMarket reports whether m is a supported market.
func ValidMarket(m Market) bool {
	switch m {
	case MarketSH, MarketSZ, MarketBJ, MarketHK, MarketUS:
		return true
	}
	return false
}

// Candidate is one stock flowing through the screening pipeline.
// Immutable after construction: enrichment and filter stages produce new
// copies/sets, they never mutate a candidate in place.
type Candidate struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market Market `json:"market"`

	Price         Field `json:"price"`
	ChangePct     Field `json:"change_pct"`
	Volume        Field `json:"volume"`
	TurnoverRate  Field `json:"turnover_rate"`
	VolumeRatio   Field `json:"volume_ratio"`
	MarketCap     Field `json:"market_cap"` // 元 (CNY), not 亿
	MA5           Field `json:"ma5"`
	MA10          Field `json:"ma10"`
	MA20          Field `json:"ma20"`
	MA60          Field `json:"ma60"`
	IndexStrength Field `json:"index_relative_strength"`
	DayHigh       Field `json:"day_high"`
	LastPrice     Field `json:"last_price"`

	// Provenance carries one entry per non-missing field.
	Provenance Provenance `json:"provenance,omitempty"`
}

// FieldByName returns the named field, or Missing for unknown names.
func (c *Candidate) FieldByName(name FieldName) Field {
	switch name {
	case FieldPrice:
		return c.Price
	case FieldChangePct:
		return c.ChangePct
	case FieldVolume:
		return c.Volume
	case FieldTurnoverRate:
		return c.TurnoverRate
	case FieldVolumeRatio:
		return c.VolumeRatio
	case FieldMarketCap:
		return c.MarketCap
	case FieldMA5:
		return c.MA5
	case FieldMA10:
		return c.MA10
	case FieldMA20:
		return c.MA20
	case FieldMA60:
		return c.MA60
	case FieldIndexStrength:
		return c.IndexStrength
	case FieldDayHigh:
		return c.DayHigh
	case FieldLastPrice:
		return c.LastPrice
	}
	return Missing
}

// Clone returns a deep copy, including the provenance map.
func (c *Candidate) Clone() *Candidate {
	out := *c
	out.Provenance = c.Provenance.Clone()
	return &out
}
