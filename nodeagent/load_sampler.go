package nodeagent

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// sampleWindows maps the three sample kinds an AdapterHost reports to a
// decay window: recent observations influence a window in proportion to
// exp(-age/window), so the 1-minute figure reacts quickly and the
// 15-minute figure smooths out bursts.
var sampleWindows = map[int]time.Duration{
	0: time.Minute,
	1: 5 * time.Minute,
	2: 15 * time.Minute,
}

type observation struct {
	at    time.Time
	value float64
}

// LoadSampler maintains a rolling buffer of raw load observations (e.g.
// per-request queue depth reported by the hosted application server) and
// answers windowed exponentially-weighted averages on demand. It never
// runs a background goroutine — decay is computed lazily from sample age
// at query time.
type LoadSampler struct {
	mu      sync.Mutex
	samples []observation
}

// NewLoadSampler returns an empty sampler.
func NewLoadSampler() *LoadSampler {
	return &LoadSampler{}
}

// Observe records a raw load value at the current time and prunes
// observations older than the largest configured window.
func (s *LoadSampler) Observe(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.samples = append(s.samples, observation{at: now, value: value})
	s.prune(now)
}

func (s *LoadSampler) prune(now time.Time) {
	cutoff := now.Add(-15 * time.Minute)
	i := 0
	for ; i < len(s.samples); i++ {
		if s.samples[i].at.After(cutoff) {
			break
		}
	}
	s.samples = s.samples[i:]
}

// Sample returns the exponentially-weighted mean load over window kind
// (0=1min, 1=5min, 2=15min), or 0 if there are no observations yet. kind
// values outside the known set fall back to the 1-minute window.
func (s *LoadSampler) Sample(kind int) float32 {
	window, ok := sampleWindows[kind]
	if !ok {
		window = sampleWindows[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 0
	}

	now := time.Now()
	values := make([]float64, 0, len(s.samples))
	weights := make([]float64, 0, len(s.samples))
	for _, sample := range s.samples {
		age := now.Sub(sample.at)
		if age < 0 {
			age = 0
		}
		weight := math.Exp(-age.Seconds() / window.Seconds())
		values = append(values, sample.value)
		weights = append(weights, weight)
	}

	return float32(stat.Mean(values, weights))
}
