package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Gauges is the instantaneous state of the hub.
type Gauges struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	CallRooms   int `json:"call_rooms"`
}

// ProcessStats is what the OS says about this process.
type ProcessStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Status     string  `json:"status"`
}

// MonitoringStats aggregates every metric exposed on /stats.
type MonitoringStats struct {
	Gauges
	ProcessStats

	ConnectionsOpened uint64  `json:"connections_opened"`
	ConnectionsClosed uint64  `json:"connections_closed"`
	FramesReceived    uint64  `json:"frames_received"`
	FramesRejected    uint64  `json:"frames_rejected"`
	FramesPerSecond   float64 `json:"frames_per_second"`

	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MonitoringManager keeps lock free counters bumped by connections
// and a snapshot refreshed by the stats worker.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	lastCheck   time.Time
	lastFrames  uint64

	connectionsOpened uint64
	connectionsClosed uint64
	framesReceived    uint64
	framesRejected    uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

func (mm *MonitoringManager) IncrConnectionsOpened() {
	atomic.AddUint64(&mm.connectionsOpened, 1)
}

func (mm *MonitoringManager) IncrConnectionsClosed() {
	atomic.AddUint64(&mm.connectionsClosed, 1)
}

func (mm *MonitoringManager) IncrFramesReceived() {
	atomic.AddUint64(&mm.framesReceived, 1)
}

func (mm *MonitoringManager) IncrFramesRejected() {
	atomic.AddUint64(&mm.framesRejected, 1)
}

// Update refreshes the snapshot from the latest gauges and process stats.
func (mm *MonitoringManager) Update(gauges Gauges, proc ProcessStats) MonitoringStats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	frames := atomic.LoadUint64(&mm.framesReceived)
	if elapsed := now.Sub(mm.lastCheck).Seconds(); elapsed > 0 {
		mm.latestStats.FramesPerSecond = float64(frames-mm.lastFrames) / elapsed
	}
	mm.lastCheck = now
	mm.lastFrames = frames

	mm.latestStats.Gauges = gauges
	mm.latestStats.ProcessStats = proc
	mm.latestStats.FramesReceived = frames
	mm.latestStats.FramesRejected = atomic.LoadUint64(&mm.framesRejected)
	mm.latestStats.ConnectionsOpened = atomic.LoadUint64(&mm.connectionsOpened)
	mm.latestStats.ConnectionsClosed = atomic.LoadUint64(&mm.connectionsClosed)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.UpdatedAt = now.UTC()

	return mm.latestStats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
