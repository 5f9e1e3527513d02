package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidate_Clone(t *testing.T) {
	c := &Candidate{
		Code:       "600519",
		Name:       "贵州茅台",
		Market:     MarketSH,
		Price:      F(1700),
		Provenance: Provenance{},
	}
	c.Provenance.Record(FieldPrice, SourceSina, BasisStandard)

	clone := c.Clone()
	clone.Provenance.Record(FieldPrice, SourceTencent, BasisAlternative)

	// The original's provenance must not move.
	assert.Equal(t, SourceSina, c.Provenance[FieldPrice].Source)
	assert.Equal(t, SourceTencent, clone.Provenance[FieldPrice].Source)
}

func TestCandidate_FieldByName(t *testing.T) {
	c := &Candidate{Price: F(10), TurnoverRate: F(7.5)}

	assert.Equal(t, F(10), c.FieldByName(FieldPrice))
	assert.Equal(t, F(7.5), c.FieldByName(FieldTurnoverRate))
	assert.False(t, c.FieldByName(FieldVolumeRatio).Valid)
	assert.False(t, c.FieldByName(FieldName("bogus")).Valid)
}

func TestProvenance_Degraded(t *testing.T) {
	p := Provenance{}
	p.Record(FieldPrice, SourceSina, BasisStandard)
	assert.False(t, p.Degraded())

	p.Record(FieldVolumeRatio, SourceDerived, BasisAlternative)
	assert.True(t, p.Degraded())

	var nilP Provenance
	assert.False(t, nilP.Degraded())
	assert.Nil(t, nilP.Clone())
}
