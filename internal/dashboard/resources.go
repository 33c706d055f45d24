package dashboard

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"cryptobridge/logger"
)

// resourceSample is one reading of host and process utilisation.
type resourceSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryUsed uint64    `json:"memory_used"`
	MemoryPct  float64   `json:"memory_percent"`
	DiskUsed   uint64    `json:"disk_used"`
	DiskPct    float64   `json:"disk_percent"`
	Goroutines int       `json:"goroutines"`
}

// Collectors are package variables so tests can stub the host.
var (
	cpuPercentFn = func(ctx context.Context) ([]float64, error) {
		return cpu.PercentWithContext(ctx, 0, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

type resourceSampler struct {
	mu       sync.RWMutex
	items    []resourceSample
	limit    int
	interval time.Duration
	diskPath string
	log      *logger.Log

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newResourceSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	if limit <= 0 {
		limit = 200
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &resourceSampler{limit: limit, interval: interval, diskPath: diskPath, log: log}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx)
	}()
}

func (s *resourceSampler) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *resourceSampler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if sample, err := s.sample(ctx); err != nil {
			s.log.WithComponent("resource_sampler").WithError(err).Debug("failed to sample resources")
		} else {
			s.append(sample)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *resourceSampler) sample(ctx context.Context) (resourceSample, error) {
	cpuSamples, err := cpuPercentFn(ctx)
	if err != nil {
		return resourceSample{}, err
	}
	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		return resourceSample{}, err
	}
	diskStats, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		return resourceSample{}, err
	}

	out := resourceSample{
		Timestamp:  time.Now(),
		MemoryUsed: memStats.Used,
		MemoryPct:  memStats.UsedPercent,
		DiskUsed:   diskStats.Used,
		DiskPct:    diskStats.UsedPercent,
		Goroutines: runtime.NumGoroutine(),
	}
	if len(cpuSamples) > 0 {
		out.CPUPercent = cpuSamples[0]
	}
	return out, nil
}

func (s *resourceSampler) append(sample resourceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, sample)
	if len(s.items) > s.limit {
		s.items = append([]resourceSample(nil), s.items[len(s.items)-s.limit:]...)
	}
}

func (s *resourceSampler) snapshot() []resourceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]resourceSample, len(s.items))
	copy(out, s.items)
	return out
}
