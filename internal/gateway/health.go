package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// SourceHealth is a point-in-time snapshot of one provider's behavior.
type SourceHealth struct {
	Source      contracts.Source `json:"source"`
	Successes   int64            `json:"successes"`
	Failures    int64            `json:"failures"`
	Consecutive int64            `json:"consecutive_failures"`
	LastError   string           `json:"last_error,omitempty"`
	LastLatency time.Duration    `json:"last_latency_ms"`
	LastUsed    time.Time        `json:"last_used"`
}

// healthy reports whether the source looks usable right now.
func (h SourceHealth) healthy() bool {
	return h.Consecutive < 3
}

// healthTracker accumulates per-source outcomes across runs. It feeds
// the "auto" priority ordering and the sources status endpoint.
type healthTracker struct {
	mu    sync.Mutex
	stats map[contracts.Source]*SourceHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{stats: make(map[contracts.Source]*SourceHealth)}
}

func (t *healthTracker) get(src contracts.Source) *SourceHealth {
	h, ok := t.stats[src]
	if !ok {
		h = &SourceHealth{Source: src}
		t.stats[src] = h
	}
	return h
}

func (t *healthTracker) recordSuccess(src contracts.Source, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(src)
	h.Successes++
	h.Consecutive = 0
	h.LastError = ""
	h.LastLatency = latency
	h.LastUsed = time.Now()
}

func (t *healthTracker) recordFailure(src contracts.Source, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(src)
	h.Failures++
	h.Consecutive++
	h.LastError = err.Error()
	h.LastUsed = time.Now()
}

// Snapshot returns copies of all tracked stats, stable order.
func (t *healthTracker) Snapshot() []SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SourceHealth, 0, len(t.stats))
	for _, h := range t.stats {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// rank reorders adapters so currently-unhealthy sources sink to the
// back. Order among equally healthy sources is preserved, keeping the
// configured priority meaningful.
func (t *healthTracker) rank(adapters []SourceAdapter) []SourceAdapter {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SourceAdapter, 0, len(adapters))
	var sick []SourceAdapter
	for _, a := range adapters {
		if h, ok := t.stats[a.Name()]; ok && !h.healthy() {
			sick = append(sick, a)
			continue
		}
		out = append(out, a)
	}
	return append(out, sick...)
}
