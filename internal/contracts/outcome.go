package contracts

import "time"

// StageStatus describes how far the pipeline got.
//
// Pipeline flow:
//
//	PENDING → STAGE_1 … STAGE_8 → COMPLETE
//	                  ↘ PARTIAL(k)   stage k emptied the set
//	        ↘ FALLBACK               stage 1 input itself was empty
type StageStatus string

const (
	StatusPending  StageStatus = "PENDING"
	StatusRunning  StageStatus = "RUNNING"
	StatusComplete StageStatus = "COMPLETE"
	StatusPartial  StageStatus = "PARTIAL"
	StatusFallback StageStatus = "FALLBACK"
	StatusEmpty    StageStatus = "EMPTY"
	StatusError    StageStatus = "ERROR"
)

// StageResult records one narrowing stage: output ⊆ input, always.
type StageResult struct {
	Index      int      `json:"index"` // 1..8
	Name       string   `json:"name"`
	InputCount int      `json:"input_count"`
	Output     []string `json:"output"` // surviving codes, input order preserved
	// Excluded maps code → reason (threshold miss or missing required field).
	Excluded map[string]string `json:"excluded,omitempty"`
	Duration time.Duration     `json:"duration_ms"`
}

// Outcome is the final product of one screening run.
type Outcome struct {
	RunID     string    `json:"run_id"`
	Market    Market    `json:"market"`
	Timestamp time.Time `json:"timestamp"`

	Results []*Candidate `json:"results"`

	// PartialMatch is set when no candidate survived all stages and the
	// deepest non-empty survivor set is reported instead.
	PartialMatch   bool        `json:"partial_match"`
	MaxStepReached int         `json:"max_step_reached"` // 0..8
	Status         StageStatus `json:"status"`
	Message        string      `json:"message,omitempty"`

	// Reliability per surviving candidate code, rolled up from provenance.
	Reliability map[string]Reliability `json:"reliability"`

	Stages []StageResult `json:"stages"`

	Degradation DegradationConfig `json:"degradation"`
}

// ReliabilitySummary counts surviving candidates per reliability tag.
func (o *Outcome) ReliabilitySummary() map[Reliability]int {
	out := make(map[Reliability]int, 3)
	for _, r := range o.Reliability {
		out[r]++
	}
	return out
}

// ProgressStatus is the status carried by a progress event.
type ProgressStatus string

const (
	ProgressRunning    ProgressStatus = "RUNNING"
	ProgressStageEmpty ProgressStatus = "STAGE_EMPTY"
	ProgressFallback   ProgressStatus = "FALLBACK"
	ProgressComplete   ProgressStatus = "COMPLETE"
	ProgressError      ProgressStatus = "ERROR"
)

// ProgressEvent is pushed to subscribers at least once per stage, in order.
// Stage 0 covers list fetch + enrichment, 1..8 the filter stages.
type ProgressEvent struct {
	RunID        string         `json:"run_id"`
	Stage        int            `json:"stage"` // 0..8
	Status       ProgressStatus `json:"status"`
	Message      string         `json:"message"`
	ResultsSoFar []string       `json:"results_so_far,omitempty"`
	PartialMatch bool           `json:"partial_match"`
	MaxStep      int            `json:"max_step"`
}
