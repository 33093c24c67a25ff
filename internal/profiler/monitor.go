package profiler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// CalculationOp is the operation name of a full DCF calculation.
	CalculationOp = "dcf_calculation"
	// DefaultAlertPercentage is the slow-operation share above which the
	// monitor reports degraded performance.
	DefaultAlertPercentage = 5.0
)

// CacheStats describes one cache for the health report.
type CacheStats struct {
	Name     string
	Entries  int
	Expired  int
	Capacity int
}

// Active returns the number of unexpired entries.
func (c CacheStats) Active() int { return c.Entries - c.Expired }

// Utilization returns Entries as a percentage of Capacity.
func (c CacheStats) Utilization() float64 {
	if c.Capacity <= 0 {
		return 0
	}
	return float64(c.Entries) / float64(c.Capacity) * 100
}

// CacheStatsSource is implemented by every cache that reports into the monitor.
type CacheStatsSource interface {
	CacheStats() []CacheStats
}

// SystemStats is a host resource sample.
type SystemStats struct {
	CPUPercent     float64
	MemUsedPercent float64
	MemUsedBytes   uint64
}

// sampleSystem reads host CPU and memory usage. CPU is measured since the
// previous call, so the first sample of a process may read zero.
func sampleSystem() (*SystemStats, error) {
	pct, err := cpu.Percent(0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	s := &SystemStats{MemUsedPercent: vm.UsedPercent, MemUsedBytes: vm.Used}
	if len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	return s, nil
}

// Report is a point-in-time health summary.
type Report struct {
	Time            time.Time
	TotalOperations int64
	SlowOperations  int64
	SlowPercentage  float64
	Alert           bool
	Caches          []CacheStats
	Calculation     *OperationSummary
	System          *SystemStats // nil when the host could not be sampled
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("=== DCF Performance Report ===\n")
	b.WriteString(fmt.Sprintf("Timestamp: %s\n", r.Time.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Total Operations: %d\n", r.TotalOperations))
	b.WriteString(fmt.Sprintf("Slow Operations: %d (%.2f%%)\n", r.SlowOperations, r.SlowPercentage))
	for _, c := range r.Caches {
		b.WriteString(fmt.Sprintf("Cache %s: %d active, %d expired, %d/%d (%.1f%%)\n",
			c.Name, c.Active(), c.Expired, c.Entries, c.Capacity, c.Utilization()))
	}
	if r.Calculation != nil {
		b.WriteString(fmt.Sprintf("DCF Calculations: %d executions, avg %s, p95 %s, max %s\n",
			r.Calculation.Count, r.Calculation.Mean, r.Calculation.P95, r.Calculation.Max))
	}
	if r.System != nil {
		b.WriteString(fmt.Sprintf("System: cpu %.1f%%, memory %.1f%% (%d MiB)\n",
			r.System.CPUPercent, r.System.MemUsedPercent, r.System.MemUsedBytes>>20))
	}
	if r.Alert {
		b.WriteString("ALERT: slow operation share above threshold\n")
	}
	return b.String()
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	SlowThreshold   time.Duration
	AlertPercentage float64
}

// Monitor counts operations and slow operations between reports.
type Monitor struct {
	mu       sync.Mutex
	total    int64
	slow     int64
	slowAt   time.Duration
	alertPct float64

	profiler *Profiler
	sources  []CacheStatsSource
	log      zerolog.Logger
	now      func() time.Time
	system   func() (*SystemStats, error)
}

// NewMonitor creates a Monitor and registers it as p's observer.
func NewMonitor(opts MonitorOptions, p *Profiler, log zerolog.Logger, sources ...CacheStatsSource) *Monitor {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.AlertPercentage <= 0 {
		opts.AlertPercentage = DefaultAlertPercentage
	}
	m := &Monitor{
		slowAt:   opts.SlowThreshold,
		alertPct: opts.AlertPercentage,
		profiler: p,
		sources:  sources,
		log:      log.With().Str("component", "monitor").Logger(),
		now:      time.Now,
		system:   sampleSystem,
	}
	p.SetObserver(m)
	return m
}

// Record counts one operation.
func (m *Monitor) Record(op string, d time.Duration) {
	m.mu.Lock()
	m.total++
	if d > m.slowAt {
		m.slow++
	}
	m.mu.Unlock()
}

// Report builds a health summary without resetting anything.
func (m *Monitor) Report() *Report {
	m.mu.Lock()
	r := &Report{
		Time:            m.now(),
		TotalOperations: m.total,
		SlowOperations:  m.slow,
	}
	sources := append([]CacheStatsSource(nil), m.sources...)
	m.mu.Unlock()

	if r.TotalOperations > 0 {
		r.SlowPercentage = float64(r.SlowOperations) / float64(r.TotalOperations) * 100
	}
	r.Alert = r.SlowPercentage > m.alertPct
	for _, s := range sources {
		r.Caches = append(r.Caches, s.CacheStats()...)
	}
	if calc, ok := m.profiler.Stats(CalculationOp); ok {
		r.Calculation = &calc
	}
	if m.system != nil {
		sys, err := m.system()
		if err != nil {
			m.log.Debug().Err(err).Msg("System sample unavailable")
		} else {
			r.System = sys
		}
	}
	return r
}

// Degraded reports whether the slow-operation share exceeds the alert threshold.
func (m *Monitor) Degraded() bool {
	return m.Report().Alert
}

// Publish logs the current report and starts a new reporting period.
func (m *Monitor) Publish() *Report {
	r := m.Report()
	ev := m.log.Info()
	if r.Alert {
		ev = m.log.Warn()
	}
	ev.Int64("total", r.TotalOperations).
		Int64("slow", r.SlowOperations).
		Float64("slow_pct", r.SlowPercentage).
		Msg(r.String())

	m.Reset()
	return r
}

// Reset zeroes the counters and the profiler's statistics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.total = 0
	m.slow = 0
	m.mu.Unlock()
	m.profiler.Reset()
}
