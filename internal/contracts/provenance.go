package contracts

// Source identifies an upstream data provider.
type Source string

const (
	SourceSina      Source = "sina"
	SourceEastmoney Source = "eastmoney"
	SourceTencent   Source = "tencent"
	SourceHexun     Source = "hexun"

	// SourceDerived marks values the gateway computed itself (heuristic
	// defaults, ALT_METHOD derivations), not fetched from any provider.
	SourceDerived Source = "derived"
)

// AllSources returns the supported providers in default priority order.
func AllSources() []Source {
	return []Source{SourceSina, SourceEastmoney, SourceTencent, SourceHexun}
}

// ValidSource reports whether s names a known provider.
func ValidSource(s Source) bool {
	switch s {
	case SourceSina, SourceEastmoney, SourceTencent, SourceHexun:
		return true
	}
	return false
}

// Basis records how a field value was obtained.
type Basis string

const (
	// BasisStandard: the preferred source answered directly.
	BasisStandard Basis = "STANDARD"
	// BasisAlternative: a substitute source or computation stood in.
	BasisAlternative Basis = "ALTERNATIVE"
	// BasisFallback: a non-source-backed default was applied.
	BasisFallback Basis = "FALLBACK"
)

// FieldProvenance tags one (candidate, field) value.
type FieldProvenance struct {
	Source Source `json:"source"`
	Basis  Basis  `json:"basis"`
}

// Provenance maps field name to how that field was obtained.
// Invariant: every field that is not MISSING has exactly one entry,
// recorded by whichever component produced the value.
type Provenance map[FieldName]FieldProvenance

// Record sets the provenance for a field.
func (p Provenance) Record(name FieldName, src Source, basis Basis) {
	p[name] = FieldProvenance{Source: src, Basis: basis}
}

// Clone returns a copy of the map. A nil map clones to nil.
func (p Provenance) Clone() Provenance {
	if p == nil {
		return nil
	}
	out := make(Provenance, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Degraded reports whether any field was obtained through a substitute
// source, an alternate computation, or a default.
func (p Provenance) Degraded() bool {
	for _, fp := range p {
		if fp.Basis != BasisStandard {
			return true
		}
	}
	return false
}

// Reliability classifies a surviving candidate's overall data quality.
type Reliability string

const (
	// ReliabilityComplete: every consulted field came in on STANDARD basis.
	ReliabilityComplete Reliability = "COMPLETE"
	// ReliabilityPartial: at least one field was ALTERNATIVE or FALLBACK.
	ReliabilityPartial Reliability = "PARTIAL"
	// ReliabilityMissing: a consulted field stayed missing. Rare, since
	// gating stages exclude on missing required fields; in practice only
	// informational fields show this.
	ReliabilityMissing Reliability = "MISSING"
)
