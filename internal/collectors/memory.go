package collectors

import (
	"net/http"
	"runtime"

	"request-profiler/internal/domain"
)

// MemoryCollector samples heap usage at collect time and refreshes the peak
// at save time, when any deferred response work has also been accounted for.
type MemoryCollector struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	NumGC           uint32 `json:"numGC"`
}

func NewMemoryCollector() *MemoryCollector { return &MemoryCollector{} }

func (c *MemoryCollector) Name() string { return "memory" }

func (c *MemoryCollector) Collect(_ *http.Request, _ *domain.Response, _ error) {
	c.sample()
}

func (c *MemoryCollector) LateCollect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > c.AllocBytes {
		c.AllocBytes = m.Alloc
	}
	c.TotalAllocBytes = m.TotalAlloc
	c.SysBytes = m.Sys
	c.NumGC = m.NumGC
}

func (c *MemoryCollector) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.AllocBytes = m.Alloc
	c.TotalAllocBytes = m.TotalAlloc
	c.SysBytes = m.Sys
	c.NumGC = m.NumGC
}

func (c *MemoryCollector) Reset() { *c = MemoryCollector{} }

func (c *MemoryCollector) Clone() domain.Collector {
	cp := *c
	return &cp
}
