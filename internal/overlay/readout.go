package overlay

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// maxSamples is how many round trips are kept per client.
const maxSamples = 10

// Readout keeps the latest round trip times measured for each connected
// client, for the ping overlay.
type Readout struct {
	mu      sync.RWMutex
	samples map[string][]time.Duration
}

// NewReadout creates an empty Readout.
func NewReadout() *Readout {
	return &Readout{samples: make(map[string][]time.Duration)}
}

// Observe records a sample for client.
func (r *Readout) Observe(client string, rtt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := append(r.samples[client], rtt)
	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	r.samples[client] = s
}

// Forget drops a disconnected client.
func (r *Readout) Forget(client string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.samples, client)
}

// PingStats summarizes one client's samples.
type PingStats struct {
	Client  string  `json:"client"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	Samples int     `json:"samples"`
}

// Stats returns the summary for client.
func (r *Readout) Stats(client string) (PingStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.samples[client]
	if !ok || len(s) == 0 {
		return PingStats{}, false
	}
	return summarize(client, s), true
}

// All returns the summary of every client.
func (r *Readout) All() []PingStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PingStats, 0, len(r.samples))
	for c, s := range r.samples {
		if len(s) > 0 {
			out = append(out, summarize(c, s))
		}
	}
	slices.SortFunc(out, func(a, b PingStats) int { return strings.Compare(a.Client, b.Client) })
	return out
}

func summarize(client string, s []time.Duration) PingStats {
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return PingStats{
		Client:  client,
		LastMS:  ms(s[len(s)-1]),
		AvgMS:   ms(total / time.Duration(len(s))),
		Samples: len(s),
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
