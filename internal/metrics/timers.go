package metrics

import (
	"sync"
	"time"
)

// Timers keeps named stopwatches, used to report how long each stage of an
// analysis took.
type Timers struct {
	Timers map[string]*Timer `json:"timers,omitempty"`
	last   string
	mu     sync.Mutex
	now    func() time.Time
}

func NewTimers() *Timers {
	return &Timers{Timers: make(map[string]*Timer), now: time.Now}
}

// set a timer, updating if existing.
func (ts *Timers) set(k string) {
	if _, ok := ts.Timers[k]; !ok {
		ts.Timers[k] = &Timer{start: ts.now()}
	} else {
		stop := ts.now()
		ts.Timers[k].Total = stop.Sub(ts.Timers[k].start).Seconds()
	}
}

// Set check last timer, stop and add a new one (lap).
func (ts *Timers) Set(k string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.last != "" {
		ts.set(ts.last)
	}
	ts.set(k)
	ts.last = k
}

// Seconds returns the total recorded by a stopped timer.
func (ts *Timers) Seconds(k string) float64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.Timers[k]; ok {
		return t.Total
	}
	return 0
}

type Timer struct {
	start time.Time

	// Total time in seconds
	Total float64 `json:"seconds"`
}
