package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type timings struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	totals  map[string]time.Duration
	counts  map[string]int
}

var global = &timings{}

// Enable starts collecting timings.
func Enable() {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.enabled {
		return
	}
	global.enabled = true
	global.started = time.Now()
	global.totals = make(map[string]time.Duration)
	global.counts = make(map[string]int)
}

// Track starts timing name and returns the function that stops it. Repeated
// names accumulate. It costs nothing while timing is disabled.
//
//	defer profiling.Track("open_session")()
func Track(name string) func() {
	global.mu.Lock()
	enabled := global.enabled
	global.mu.Unlock()
	if !enabled {
		return func() {}
	}

	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		global.mu.Lock()
		defer global.mu.Unlock()
		global.totals[name] += elapsed
		global.counts[name]++
	}
}

// Summarize prints every tracked name, slowest first.
func Summarize(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.enabled {
		return
	}

	names := make([]string, 0, len(global.totals))
	for name := range global.totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if global.totals[names[i]] != global.totals[names[j]] {
			return global.totals[names[i]] > global.totals[names[j]]
		}
		return names[i] < names[j]
	})

	total := time.Since(global.started)
	fmt.Fprintf(w, "\n--- Timing (%v total) ---\n", total.Round(100*time.Microsecond))
	for _, name := range names {
		d := global.totals[name]
		fmt.Fprintf(w, "- %s x%d (%v, %.1f%%)\n", name, global.counts[name], d.Round(100*time.Microsecond), percent(d, total))
	}
}

func percent(d, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}

// reset disables timing and drops everything collected.
func reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.enabled = false
	global.totals = nil
	global.counts = nil
}
