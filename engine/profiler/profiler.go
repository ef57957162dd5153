package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/common"
)

// Profiler tracks tick rate, draw-path mix and memory statistics.
// Emits a summary through common.Logger at a fixed interval.
type Profiler struct {
	frameCount     int
	drawn          int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	paths          map[string]int
	drops          uint64
	lastDrops      uint64
	now            func() time.Time
}

// Summary is one interval's statistics. It is returned by Tick so callers and tests can inspect
// what was logged.
type Summary struct {
	FPS         float64
	Drawn       int
	Skipped     int
	Paths       map[string]int
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	MaxPauseUs  uint64
	// Drops is how many decoded video frames were overwritten unread during the interval.
	Drops       uint64
}

// NewProfiler creates a new Profiler with a one second update interval.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return NewProfilerWithClock(time.Second, time.Now)
}

// NewProfilerWithClock creates a Profiler with a custom interval and time source.
//
// Parameters:
//   - interval: how often a summary is emitted
//   - now: the clock used to measure elapsed time
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfilerWithClock(interval time.Duration, now func() time.Time) *Profiler {
	return &Profiler{
		lastTime:       now(),
		updateInterval: interval,
		paths:          make(map[string]int),
		now:            now,
	}
}

// RecordDrops stores the running total of decoded frames that were overwritten before the renderer
// read them. The next summary reports the increase since the previous one.
//
// Parameters:
//   - total: the cumulative drop count across all video sources
func (p *Profiler) RecordDrops(total uint64) {
	p.drops = total
}

// Tick should be called once per frame with the name of the draw path that frame took
// ("none" for a skipped frame). When the update interval has elapsed a summary is logged at info
// level and the counters reset.
//
// Parameters:
//   - path: the draw path name for this frame
//
// Returns:
//   - Summary: the interval summary, valid only when the bool is true
//   - bool: true if a summary was emitted this tick
func (p *Profiler) Tick(path string) (Summary, bool) {
	p.frameCount++
	p.paths[path]++
	if path != "none" {
		p.drawn++
	}

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Summary{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Summary{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Drawn:       p.drawn,
		Skipped:     p.frameCount - p.drawn,
		Paths:       p.paths,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	if p.drops >= p.lastDrops {
		s.Drops = p.drops - p.lastDrops
	} else {
		// a source was reopened and its counter restarted
		s.Drops = p.drops
	}

	// PauseNs is a circular buffer of the last 256 pauses.
	if gc := p.memStats.NumGC; gc > 0 {
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	common.Logger().Info("profiler",
		"fps", s.FPS,
		"drawn", s.Drawn,
		"skipped", s.Skipped,
		"paths", s.Paths,
		"heap_mb", s.HeapMB,
		"alloc_mb_s", s.AllocRateMB,
		"gc", s.GCCount,
		"gc_max_pause_us", s.MaxPauseUs,
		"video_drops", s.Drops,
	)

	p.frameCount = 0
	p.drawn = 0
	p.paths = make(map[string]int)
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastDrops = p.drops
	return s, true
}
