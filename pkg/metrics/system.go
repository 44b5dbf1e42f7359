package metrics

import (
	"context"
	"runtime"
	"time"
)

// StartSystemCollector samples runtime statistics every refresh interval until
// ctx is cancelled. The returned channel is closed once the collector exits.
func StartSystemCollector(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	interval := globalManager.refreshInterval

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastNumGC uint32
		for {
			lastNumGC = collectSystem(lastNumGC)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return done
}

// collectSystem publishes one sample and returns the GC count it observed.
func collectSystem(lastNumGC uint32) uint32 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	UpdateSystemMemoryUsage(ms.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// PauseNs is a ring of the last 256 pauses.
	ring := uint32(len(ms.PauseNs))
	if ms.NumGC-lastNumGC > ring {
		lastNumGC = ms.NumGC - ring
	}
	for n := lastNumGC; n < ms.NumGC; n++ {
		pause := ms.PauseNs[n%ring]
		RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
	}
	return ms.NumGC
}
