package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Profiler tracks frame throughput and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval and keeps prometheus metrics current.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// throughput is the frames per second measured over the last completed interval.
	throughput float64

	now        func() time.Time
	logger     common.Logger
	registerer prometheus.Registerer

	fpsGauge    prometheus.Gauge
	framesTotal prometheus.Counter
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second, logging is discarded unless WithLogger is given and
// metrics are only exported when WithRegisterer is given.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		now:            time.Now,
		logger:         common.NewNopLogger(),
	}
	for _, opt := range options {
		opt(p)
	}

	// promauto.With(nil) builds unregistered collectors
	factory := promauto.With(p.registerer)
	p.fpsGauge = factory.NewGauge(prometheus.GaugeOpts{
		Name: "boids_frames_per_second",
		Help: "Frames per second measured over the last profiler interval",
	})
	p.framesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "boids_frames_total",
		Help: "Frames submitted since startup",
	})

	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	p.framesTotal.Inc()

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	p.throughput = float64(p.frameCount) / elapsed.Seconds()
	p.fpsGauge.Set(p.throughput)

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logger.Infof("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		p.throughput, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Throughput returns the frames per second measured over the last completed interval,
// or 0 before the first interval has elapsed.
func (p *Profiler) Throughput() float64 {
	return p.throughput
}
