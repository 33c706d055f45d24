package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type channelStat struct {
	messages int64
	bytes    int64
}

type levelStat struct {
	warns  int64
	errors int64
}

var (
	channels   sync.Map // map[string]*channelStat
	components sync.Map // map[string]*levelStat
)

// ChannelStats counts traffic through one named stage.
type ChannelStats struct {
	Messages int64
	Bytes    int64
}

// LevelStats counts warnings and errors logged by one component.
type LevelStats struct {
	Warns  int64
	Errors int64
}

// Report is a point-in-time view of process health.
type Report struct {
	Goroutines int
	CPUPercent float64
	MemoryMB   float64
	Channels   map[string]ChannelStats
	Components map[string]LevelStats
}

func componentStat(component string) *levelStat {
	v, _ := components.LoadOrStore(component, &levelStat{})
	return v.(*levelStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&componentStat(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&componentStat(component).errors, 1)
}

// RecordChannelMessage counts one message of size bytes on channel name.
func RecordChannelMessage(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// Snapshot collects the current counters and system usage.
func Snapshot() Report {
	r := Report{
		Goroutines: runtime.NumGoroutine(),
		Channels:   map[string]ChannelStats{},
		Components: map[string]LevelStats{},
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		r.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.MemoryMB = float64(vm.Used) / 1024 / 1024
	}

	channels.Range(func(k, v any) bool {
		cs := v.(*channelStat)
		r.Channels[k.(string)] = ChannelStats{
			Messages: atomic.LoadInt64(&cs.messages),
			Bytes:    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})
	components.Range(func(k, v any) bool {
		ls := v.(*levelStat)
		r.Components[k.(string)] = LevelStats{
			Warns:  atomic.LoadInt64(&ls.warns),
			Errors: atomic.LoadInt64(&ls.errors),
		}
		return true
	})
	return r
}

// StartReport logs a runtime report every interval until ctx ends.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log, Snapshot())
			}
		}
	}()
}

func logReport(log *Log, r Report) {
	log.WithComponent("report").WithFields(Fields{
		"goroutines":  r.Goroutines,
		"cpu_percent": r.CPUPercent,
		"memory_mb":   int64(r.MemoryMB),
		"channels":    r.Channels,
		"components":  r.Components,
	}).Info("runtime report")
}
