package pipeline

import (
	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// stageFields maps each gate to the candidate fields it consults.
var stageFields = map[string][]contracts.FieldName{
	"change_band":       {contracts.FieldChangePct},
	"volume_ratio":      {contracts.FieldVolumeRatio},
	"turnover_band":     {contracts.FieldTurnoverRate},
	"market_cap_band":   {contracts.FieldMarketCap},
	"volume_rising":     {contracts.FieldKline},
	"ma_alignment":      {contracts.FieldMA5, contracts.FieldMA10, contracts.FieldMA20, contracts.FieldMA60, contracts.FieldKline},
	"relative_strength": {contracts.FieldIndexStrength},
	"tail_stability":    {contracts.FieldPrice, contracts.FieldDayHigh},
}

// AssessReliability rolls provenance up into one tag per survivor.
// Only the gates the run actually cleared count: under a partial match
// the later gates never consulted their fields, so a gap there must not
// downgrade anyone.
//
//	COMPLETE: every consulted field arrived on STANDARD basis
//	PARTIAL:  at least one consulted field was substituted
//	MISSING:  a consulted field has no value at all
//
// A FALLBACK run cleared no gate, so the vacuous rollup would read
// COMPLETE; the shortlist is a substitute and every entry reads PARTIAL.
func AssessReliability(res *Result, variant string, klines map[string]*contracts.KlineSeries) map[string]contracts.Reliability {
	out := make(map[string]contracts.Reliability, len(res.Survivors))

	if res.Status == contracts.StatusFallback {
		for _, c := range res.Survivors {
			out[c.Code] = contracts.ReliabilityPartial
		}
		return out
	}

	consulted := stagesFor(variant)
	if res.MaxStep < len(consulted) {
		consulted = consulted[:res.MaxStep]
	}

	for _, c := range res.Survivors {
		out[c.Code] = assessOne(c, consulted, klines)
	}
	return out
}

func assessOne(c *contracts.Candidate, consulted []stage, klines map[string]*contracts.KlineSeries) contracts.Reliability {
	reliability := contracts.ReliabilityComplete

	for _, st := range consulted {
		for _, field := range stageFields[st.name] {
			if field == contracts.FieldKline {
				series, ok := klines[c.Code]
				if !ok {
					return contracts.ReliabilityMissing
				}
				if series.Provenance.Basis != contracts.BasisStandard {
					reliability = contracts.ReliabilityPartial
				}
				continue
			}

			if !c.FieldByName(field).Valid {
				return contracts.ReliabilityMissing
			}
			if fp, ok := c.Provenance[field]; ok && fp.Basis != contracts.BasisStandard {
				reliability = contracts.ReliabilityPartial
			}
		}
	}
	return reliability
}
