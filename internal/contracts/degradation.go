package contracts

import "fmt"

// DegradationLevel is the configured permissiveness for data substitution.
// Strictly ordered: anything allowed at a lower level is allowed at all
// higher levels.
type DegradationLevel string

const (
	DegradationLow    DegradationLevel = "LOW"
	DegradationMedium DegradationLevel = "MEDIUM"
	DegradationHigh   DegradationLevel = "HIGH"
)

// rank orders the levels for monotonic comparison.
func (l DegradationLevel) rank() int {
	switch l {
	case DegradationLow:
		return 1
	case DegradationMedium:
		return 2
	case DegradationHigh:
		return 3
	}
	return 0
}

// AtLeast reports whether l permits everything that min permits.
func (l DegradationLevel) AtLeast(min DegradationLevel) bool {
	return l.rank() >= min.rank()
}

// Valid reports whether l is a recognized level.
func (l DegradationLevel) Valid() bool {
	return l.rank() > 0
}

// DegradationConfig governs whether and how aggressively missing data may
// be substituted during a run.
type DegradationConfig struct {
	Enabled bool             `json:"enabled"`
	Level   DegradationLevel `json:"level"`
}

// Validate rejects unknown levels before any network activity happens.
func (c DegradationConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.Level.Valid() {
		return fmt.Errorf("%w: degradation level %q (want LOW, MEDIUM or HIGH)", ErrConfiguration, c.Level)
	}
	return nil
}

// SubstitutionKind is what the gateway asks permission for, least to most
// invasive.
type SubstitutionKind string

const (
	// SubstituteAltSource: swap one provider for another serving the same
	// semantic field.
	SubstituteAltSource SubstitutionKind = "ALT_SOURCE"
	// SubstituteAltMethod: derive the field via a different computation,
	// e.g. approximate turnover from volume/float when the turnover API
	// fails.
	SubstituteAltMethod SubstitutionKind = "ALT_METHOD"
	// SubstituteDefaultHeuristic: use a non-source-backed default, e.g.
	// rank by same-day change when the whole list endpoint fails.
	SubstituteDefaultHeuristic SubstitutionKind = "DEFAULT_HEURISTIC"
)

// MinLevelFor returns the lowest degradation level that permits kind.
func MinLevelFor(kind SubstitutionKind) DegradationLevel {
	switch kind {
	case SubstituteAltSource:
		return DegradationLow
	case SubstituteAltMethod:
		return DegradationMedium
	default:
		return DegradationHigh
	}
}
