package worker

import (
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// Health is the §4.1 "expose {workerName, isHealthy, cacheSize, config}"
// snapshot for one Runtime.
type Health struct {
	WorkerName string
	IsHealthy  bool
	CacheSize  int
	Config     Config
}

// Snapshot returns the current health of this Runtime. A runtime is
// considered healthy unless it has been explicitly marked unhealthy by
// MarkUnhealthy (e.g. by a supervisor noticing sustained DLQ growth).
func (r *Runtime) Snapshot() Health {
	return Health{
		WorkerName: r.handler.Name(),
		IsHealthy:  !r.unhealthy,
		CacheSize:  r.cache.size(),
		Config:     r.cfg,
	}
}

// MarkUnhealthy flags this runtime unhealthy until ClearUnhealthy is called.
func (r *Runtime) MarkUnhealthy() { r.unhealthy = true }

// ClearUnhealthy clears a previously-set unhealthy flag.
func (r *Runtime) ClearUnhealthy() { r.unhealthy = false }

// Registry aggregates health across every registered Runtime, mirroring
// spec.md §4.1 "runtime-wide registry aggregates" and adapted from the
// registry's internal/health.HealthChecker concurrency pattern (mutex-guarded
// map keyed by identity, snapshot taken under lock).
type Registry struct {
	mu       sync.Mutex
	runtimes map[string]*Runtime
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[string]*Runtime)}
}

// Register adds a Runtime to the registry, keyed by its handler name.
func (reg *Registry) Register(r *Runtime) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runtimes[r.handler.Name()] = r
}

// ProcessSnapshot enriches the per-worker health with process-level CPU/RSS
// (SPEC_FULL.md domain-stack: "Worker health snapshot... enriched with
// process CPU/RSS"). Errors reading process stats are non-fatal — the
// numeric fields are simply zeroed.
type ProcessSnapshot struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Snapshot returns the health of every registered Runtime plus a
// process-wide resource snapshot.
func (reg *Registry) Snapshot() (map[string]Health, ProcessSnapshot) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make(map[string]Health, len(reg.runtimes))
	for name, r := range reg.runtimes {
		out[name] = r.Snapshot()
	}
	return out, currentProcessSnapshot()
}

func currentProcessSnapshot() ProcessSnapshot {
	proc, err := process.NewProcess(int32(processPID()))
	if err != nil {
		return ProcessSnapshot{}
	}
	cpuPct, _ := proc.CPUPercent()
	memInfo, err := proc.MemoryInfo()
	var rss uint64
	if err == nil && memInfo != nil {
		rss = memInfo.RSS
	}
	return ProcessSnapshot{CPUPercent: cpuPct, RSSBytes: rss}
}
