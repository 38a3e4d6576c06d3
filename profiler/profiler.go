// Package profiler - Per-stage timing statistics for the detection pipeline.
package profiler

import (
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/stat"
)

// Stage names recorded by the detector.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageDecode     = "decode"
	StageSuppress   = "suppress"
	StageResolve    = "resolve"
)

// RuntimeProfiler tracks operation timings and reports summaries.
//
// All methods are safe for concurrent use and on a nil receiver, so callers can
// leave profiling switched off by passing nil.
type RuntimeProfiler struct {
	maxSamples int
	mu         sync.Mutex
	startTime  time.Time
	operations map[string]*TimeTracker

	stop chan struct{}
	wg   sync.WaitGroup
}

// TimeTracker keeps a rolling window of durations for one operation.
type TimeTracker struct {
	durations []time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// MaxSamples specifies how many recent durations are kept per operation (default: 1000)
	MaxSamples int
}

// OperationSummary is the statistical summary of one operation, in milliseconds.
type OperationSummary struct {
	Name   string  `json:"name"`
	Count  int64   `json:"count"`
	MeanMS float64 `json:"mean_ms"`
	StdMS  float64 `json:"std_ms"`
	MinMS  float64 `json:"min_ms"`
	P95MS  float64 `json:"p95_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1000
	}
	return &RuntimeProfiler{
		maxSamples: opts.MaxSamples,
		startTime:  time.Now(),
		operations: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		rp.Record(name, time.Since(start))
	}
}

// Record adds one measured duration.
func (rp *RuntimeProfiler) Record(name string, d time.Duration) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operations[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operations[name] = tracker
	}
	tracker.durations = append(tracker.durations, d)
	if len(tracker.durations) > rp.maxSamples {
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
}

// Summary returns one summary per operation, sorted by name.
//
// Mean, standard deviation and 95th percentile are computed over the retained window;
// Count is the total number of recordings.
func (rp *RuntimeProfiler) Summary() []OperationSummary {
	if rp == nil {
		return nil
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	out := make([]OperationSummary, 0, len(rp.operations))
	for name, tracker := range rp.operations {
		if len(tracker.durations) == 0 {
			continue
		}
		ms := make([]float64, len(tracker.durations))
		for i, d := range tracker.durations {
			ms[i] = float64(d) / float64(time.Millisecond)
		}
		sort.Float64s(ms)

		mean, std := stat.MeanStdDev(ms, nil)
		if len(ms) < 2 {
			std = 0
		}
		out = append(out, OperationSummary{
			Name:   name,
			Count:  tracker.count,
			MeanMS: mean,
			StdMS:  std,
			MinMS:  ms[0],
			P95MS:  stat.Quantile(0.95, stat.Empirical, ms, nil),
			MaxMS:  ms[len(ms)-1],
		})
	}
	slices.SortFunc(out, func(a, b OperationSummary) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Report writes the current summaries and memory usage to log.
func (rp *RuntimeProfiler) Report(log logs.Log) {
	if rp == nil {
		return
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	log.Infof("Profiler: uptime %v, goroutines %d, heap %.1f MB, GC cycles %d",
		time.Since(rp.startTime).Truncate(time.Millisecond), runtime.NumGoroutine(),
		float64(mem.HeapAlloc)/(1<<20), mem.NumGC)
	for _, s := range rp.Summary() {
		log.Infof("  %-10s avg=%.2fms std=%.2fms p95=%.2fms min=%.2fms max=%.2fms count=%d",
			s.Name, s.MeanMS, s.StdMS, s.P95MS, s.MinMS, s.MaxMS, s.Count)
	}
}

// Start emits a report every interval until Stop is called.
func (rp *RuntimeProfiler) Start(log logs.Log, interval time.Duration) {
	if rp == nil || interval <= 0 {
		return
	}
	rp.mu.Lock()
	if rp.stop != nil {
		rp.mu.Unlock()
		return
	}
	rp.stop = make(chan struct{})
	stop := rp.stop
	rp.mu.Unlock()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rp.Report(log)
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends periodic reporting started with Start.
func (rp *RuntimeProfiler) Stop() {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	stop := rp.stop
	rp.stop = nil
	rp.mu.Unlock()

	if stop != nil {
		close(stop)
		rp.wg.Wait()
	}
}
