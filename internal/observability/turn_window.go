package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// IntentStats summarizes the recent reply latencies of one intent.
type IntentStats struct {
	Intent   string  `json:"intent"`
	Samples  int     `json:"samples"`
	Failures int     `json:"failures"`
	LastMS   float64 `json:"last_ms"`
	AvgMS    float64 `json:"avg_ms"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
}

// TurnSnapshot is the JSON body of the turn statistics endpoint.
type TurnSnapshot struct {
	GeneratedAt time.Time     `json:"generated_at"`
	WindowSize  int           `json:"window_size"`
	Intents     []IntentStats `json:"intents"`
}

// TurnWindow keeps the last N reply latencies per intent in ring buffers so
// percentiles reflect recent behaviour rather than process lifetime.
type TurnWindow struct {
	mu       sync.Mutex
	size     int
	rings    map[string]*latencyRing
	failures map[string]int
	now      func() time.Time
}

type latencyRing struct {
	values []float64
	next   int
	full   bool
	last   float64
}

func NewTurnWindow(size int) *TurnWindow {
	if size <= 0 {
		size = 256
	}
	return &TurnWindow{
		size:     size,
		rings:    make(map[string]*latencyRing),
		failures: make(map[string]int),
		now:      time.Now,
	}
}

// Observe records one finished turn.
func (w *TurnWindow) Observe(intent string, d time.Duration, failed bool) {
	if w == nil || intent == "" || d < 0 {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.rings[intent]
	if !ok {
		r = &latencyRing{values: make([]float64, w.size)}
		w.rings[intent] = r
	}
	r.values[r.next] = ms
	r.last = ms
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.full = true
	}
	if failed {
		w.failures[intent]++
	}
}

func (w *TurnWindow) Snapshot() TurnSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.rings))
	for name := range w.rings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]IntentStats, 0, len(names))
	for _, name := range names {
		r := w.rings[name]
		n := r.next
		if r.full {
			n = len(r.values)
		}
		if n == 0 {
			continue
		}
		sorted := append([]float64(nil), r.values[:n]...)
		sort.Float64s(sorted)
		sum := 0.0
		for _, v := range sorted {
			sum += v
		}
		out = append(out, IntentStats{
			Intent:   name,
			Samples:  n,
			Failures: w.failures[name],
			LastMS:   round2(r.last),
			AvgMS:    round2(sum / float64(n)),
			P50MS:    round2(percentile(sorted, 0.50)),
			P95MS:    round2(percentile(sorted, 0.95)),
		})
	}
	return TurnSnapshot{GeneratedAt: w.now().UTC(), WindowSize: w.size, Intents: out}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
