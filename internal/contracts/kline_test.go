package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func bars(closes ...float64) []KlineBar {
	out := make([]KlineBar, len(closes))
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = KlineBar{Date: day.AddDate(0, 0, i), Close: c, Volume: 1000}
	}
	return out
}

func TestKlineSeries_MA(t *testing.T) {
	s := &KlineSeries{Bars: bars(10, 20, 30, 40, 50)}

	ma := s.MA(5)
	assert.True(t, ma.Valid)
	assert.InDelta(t, 30.0, ma.Value, 1e-9)

	ma3 := s.MA(3)
	assert.InDelta(t, 40.0, ma3.Value, 1e-9)

	// Too short: stays missing, never zero.
	assert.False(t, s.MA(6).Valid)
	assert.False(t, s.MA(0).Valid)
}

func TestKlineSeries_MAAt(t *testing.T) {
	s := &KlineSeries{Bars: bars(10, 20, 30, 40, 50)}

	// offset 1 drops the newest bar.
	prev := s.MAAt(3, 1)
	assert.True(t, prev.Valid)
	assert.InDelta(t, 30.0, prev.Value, 1e-9)

	// offset eats into the required window.
	assert.False(t, s.MAAt(5, 1).Valid)
}

func TestKlineSeries_CumulativeReturn(t *testing.T) {
	s := &KlineSeries{Bars: bars(100, 101, 102, 103, 104, 110)}

	r := s.CumulativeReturn(5)
	assert.True(t, r.Valid)
	assert.InDelta(t, 0.10, r.Value, 1e-9)

	// Needs window+1 bars.
	assert.False(t, s.CumulativeReturn(6).Valid)
	assert.False(t, s.CumulativeReturn(0).Valid)

	// Base close of zero cannot produce a return.
	z := &KlineSeries{Bars: bars(0, 1, 2, 3, 4, 5)}
	assert.False(t, z.CumulativeReturn(5).Valid)
}

func TestKlineSeries_VolumeRising(t *testing.T) {
	mk := func(vols ...float64) *KlineSeries {
		s := &KlineSeries{Bars: bars(make([]float64, len(vols))...)}
		for i, v := range vols {
			s.Bars[i].Volume = v
		}
		return s
	}

	assert.True(t, mk(100, 200, 300).VolumeRising(3))
	// Strictly rising: a flat session breaks the streak.
	assert.False(t, mk(100, 200, 200).VolumeRising(3))
	assert.False(t, mk(300, 200, 100).VolumeRising(3))
	// Only the tail matters.
	assert.True(t, mk(900, 100, 200, 300).VolumeRising(3))
	// Too short or degenerate sessions count: "can't tell" is not a pass.
	assert.False(t, mk(100, 200).VolumeRising(3))
	assert.False(t, mk(100, 200, 300).VolumeRising(1))
}
