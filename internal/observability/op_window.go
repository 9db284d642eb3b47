package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

type OpStats struct {
	Op          string  `json:"op"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type OpSnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	WindowSize  int       `json:"window_size"`
	Ops         []OpStats `json:"ops"`
}

// OpWindow keeps a bounded ring of recent latencies per operation. It backs
// the debug latency endpoint; Prometheus histograms remain the durable view.
type OpWindow struct {
	mu         sync.RWMutex
	maxSamples int
	ops        map[string]*opBuffer
}

type opBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewOpWindow(maxSamples int) *OpWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &OpWindow{
		maxSamples: maxSamples,
		ops:        make(map[string]*opBuffer),
	}
}

func (w *OpWindow) Observe(op string, d time.Duration) {
	ms := float64(d.Milliseconds())
	if op == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.ops[op]
	if !ok {
		buf = &opBuffer{values: make([]float64, w.maxSamples)}
		w.ops[op] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *OpWindow) Snapshot() OpSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.ops))
	for op := range w.ops {
		keys = append(keys, op)
	}
	sort.Strings(keys)

	ops := make([]OpStats, 0, len(keys))
	for _, op := range keys {
		buf := w.ops[op]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		ops = append(ops, OpStats{
			Op:          op,
			Samples:     n,
			LastMS:      round2(buf.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			TargetP95MS: opTargetP95MS(op),
		})
	}

	return OpSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Ops:         ops,
	}
}

func (w *OpWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ops = make(map[string]*opBuffer)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func opTargetP95MS(op string) float64 {
	switch op {
	case "completion":
		return 4000
	case "exchange":
		return 4500
	case "save_inline":
		return 6000
	case "save_blob":
		return 9000
	case "receipt_wait":
		return 5000
	default:
		return 0
	}
}
