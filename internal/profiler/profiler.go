// Package profiler records execution time per operation class and turns the
// running counters into periodic health reports.
package profiler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultSlowThreshold marks an operation as slow.
	DefaultSlowThreshold = 100 * time.Millisecond
	// DefaultWindow is how many recent samples feed the p95 estimate.
	DefaultWindow = 256
)

// Observer receives every recorded duration. Monitor implements it.
type Observer interface {
	Record(op string, d time.Duration)
}

// Options configures a Profiler.
type Options struct {
	SlowThreshold time.Duration
	Window        int
	Observer      Observer
}

// Profiler accumulates per-operation timing statistics.
// A nil *Profiler is valid and records nothing.
type Profiler struct {
	mu       sync.Mutex
	ops      map[string]*operationStats
	slow     time.Duration
	window   int
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Profiler.
func New(opts Options, log zerolog.Logger) *Profiler {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Profiler{
		ops:      make(map[string]*operationStats),
		slow:     opts.SlowThreshold,
		window:   opts.Window,
		observer: opts.Observer,
		log:      log.With().Str("component", "profiler").Logger(),
		now:      time.Now,
	}
}

// SetObserver attaches an observer after construction.
func (p *Profiler) SetObserver(o Observer) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.observer = o
	p.mu.Unlock()
}

// Span is an in-flight measurement started by Start.
type Span struct {
	p     *Profiler
	op    string
	start time.Time
}

// Start begins timing op.
func (p *Profiler) Start(op string) Span {
	if p == nil {
		return Span{op: op}
	}
	return Span{p: p, op: op, start: p.now()}
}

// End records the elapsed time since Start and returns it.
func (s Span) End() time.Duration {
	if s.p == nil {
		return 0
	}
	d := s.p.now().Sub(s.start)
	s.p.Observe(s.op, d)
	return d
}

// Profile times fn under op.
func (p *Profiler) Profile(op string, fn func() error) error {
	span := p.Start(op)
	defer span.End()
	return fn()
}

// Measure times fn under op and passes its result through.
func Measure[T any](p *Profiler, op string, fn func() (T, error)) (T, error) {
	span := p.Start(op)
	defer span.End()
	return fn()
}

// Observe records one execution of op that took d.
func (p *Profiler) Observe(op string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	st, ok := p.ops[op]
	if !ok {
		st = &operationStats{samples: make([]float64, 0, p.window)}
		p.ops[op] = st
	}
	st.record(d, p.window)
	observer := p.observer
	p.mu.Unlock()

	if d > p.slow {
		p.log.Warn().Str("operation", op).Dur("duration", d).Msg("Slow decimal operation detected")
	}
	if observer != nil {
		observer.Record(op, d)
	}
}

// Stats returns the summary for op.
func (p *Profiler) Stats(op string) (OperationSummary, bool) {
	if p == nil {
		return OperationSummary{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.ops[op]
	if !ok {
		return OperationSummary{}, false
	}
	return st.summary(op), true
}

// Snapshot returns every operation's summary, slowest total first.
func (p *Profiler) Snapshot() []OperationSummary {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	out := make([]OperationSummary, 0, len(p.ops))
	for name, st := range p.ops {
		out = append(out, st.summary(name))
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Reset drops all statistics.
func (p *Profiler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.ops = make(map[string]*operationStats)
	p.mu.Unlock()
	p.log.Info().Msg("Cleared decimal performance statistics")
}

// Report formats the current statistics.
func (p *Profiler) Report() string {
	var b strings.Builder
	b.WriteString("Decimal Performance Report:\n")
	b.WriteString("============================\n")
	for _, s := range p.Snapshot() {
		b.WriteString(fmt.Sprintf("Operation: %s\n", s.Name))
		b.WriteString(fmt.Sprintf("  Executions: %d\n", s.Count))
		b.WriteString(fmt.Sprintf("  Total Time: %s\n", s.Total))
		b.WriteString(fmt.Sprintf("  Average Time: %s\n", s.Mean))
		b.WriteString(fmt.Sprintf("  Min Time: %s\n", s.Min))
		b.WriteString(fmt.Sprintf("  Max Time: %s\n", s.Max))
		b.WriteString(fmt.Sprintf("  P95 Time: %s\n\n", s.P95))
	}
	return b.String()
}

// OperationSummary is a read-only view of one operation's statistics.
type OperationSummary struct {
	Name  string
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P95   time.Duration
}

type operationStats struct {
	count   int64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	samples []float64 // ring of recent durations in nanoseconds
	next    int
}

func (s *operationStats) record(d time.Duration, window int) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d

	if len(s.samples) < window {
		s.samples = append(s.samples, float64(d))
		return
	}
	s.samples[s.next] = float64(d)
	s.next = (s.next + 1) % window
}

func (s *operationStats) summary(name string) OperationSummary {
	out := OperationSummary{Name: name, Count: s.count, Total: s.total, Min: s.min, Max: s.max}
	if s.count > 0 {
		out.Mean = s.total / time.Duration(s.count)
	}
	if len(s.samples) > 0 {
		sorted := append([]float64(nil), s.samples...)
		sort.Float64s(sorted)
		out.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	}
	return out
}
