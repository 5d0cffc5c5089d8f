package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// GaugeSource reports the instantaneous state of the hub.
type GaugeSource func() observability.Gauges

// StatsWorker periodically samples process and hub statistics into the monitoring manager.
type StatsWorker struct {
	log        *slog.Logger
	interval   time.Duration
	gauges     GaugeSource
	monitoring *observability.MonitoringManager
}

func NewStatsWorker(log *slog.Logger, interval time.Duration, gauges GaugeSource,
	monitoring *observability.MonitoringManager) *StatsWorker {
	return &StatsWorker{log: log, interval: interval, gauges: gauges, monitoring: monitoring}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info("Starting stats worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			proc, err := selfStats(p)
			if err != nil {
				w.log.Warn("Failed to collect self stats", "error", err)
			}
			stats := w.monitoring.Update(w.gauges(), proc)
			w.log.Info("Relay stats",
				"connections", stats.Connections,
				"rooms", stats.Rooms,
				"call_rooms", stats.CallRooms,
				"frames_per_second", stats.FramesPerSecond,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (observability.ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	return observability.ProcessStats{RSSBytes: memInfo.RSS, CPUPercent: cpuPercent, Status: status}, nil
}
