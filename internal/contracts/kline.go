package contracts

import "time"

// KlineGranularity selects the bar size for kline requests.
type KlineGranularity string

const (
	KlineDaily   KlineGranularity = "day"
	KlineWeekly  KlineGranularity = "week"
	KlineMonthly KlineGranularity = "month"
)

// Valid reports whether g is a recognized granularity.
func (g KlineGranularity) Valid() bool {
	switch g {
	case KlineDaily, KlineWeekly, KlineMonthly:
		return true
	}
	return false
}

// KlineBar is one OHLCV bar.
type KlineBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// KlineSeries is an ordered (oldest first) bar series with the same
// provenance tagging as scalar fields.
type KlineSeries struct {
	Code        string           `json:"code"`
	Granularity KlineGranularity `json:"granularity"`
	Bars        []KlineBar       `json:"bars"`
	Provenance  FieldProvenance  `json:"provenance"`
}

// MA returns the n-bar moving average of closes ending at the last bar,
// or Missing when the series is too short.
func (s *KlineSeries) MA(n int) Field {
	return s.MAAt(n, 0)
}

// MAAt returns the n-bar moving average ending offset bars before the last
// one. offset 0 means the most recent bar.
func (s *KlineSeries) MAAt(n, offset int) Field {
	if n <= 0 || len(s.Bars) < n+offset {
		return Missing
	}
	start := len(s.Bars) - n - offset
	var sum float64
	for i := start; i < start+n; i++ {
		sum += s.Bars[i].Close
	}
	return F(sum / float64(n))
}

// CumulativeReturn is the fractional close-to-close return over the most
// recent window bars, or Missing when the series is too short.
func (s *KlineSeries) CumulativeReturn(window int) Field {
	if window <= 0 || len(s.Bars) < window+1 {
		return Missing
	}
	base := s.Bars[len(s.Bars)-window-1].Close
	if base <= 0 {
		return Missing
	}
	last := s.Bars[len(s.Bars)-1].Close
	return F(last/base - 1)
}

// VolumeRising reports whether volume rose strictly over the most recent
// sessions bars. Too-short series report false, not an error: the stage
// consuming this treats "can't tell" as "does not pass".
func (s *KlineSeries) VolumeRising(sessions int) bool {
	if sessions < 2 || len(s.Bars) < sessions {
		return false
	}
	tail := s.Bars[len(s.Bars)-sessions:]
	for i := 1; i < len(tail); i++ {
		if tail[i].Volume <= tail[i-1].Volume {
			return false
		}
	}
	return true
}
