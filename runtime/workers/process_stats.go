package workers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"duo-chat/contract"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the last sample taken by the ProcessStatsWorker.
type ProcessStats struct {
	PID         int32     `json:"pid"`
	Status      string    `json:"status"`
	RSS         uint64    `json:"rssBytes"`
	CPUPercent  float64   `json:"cpuPercent"`
	OnlineUsers int       `json:"onlineUsers"`
	Connections int       `json:"connections"`
	SampledAt   time.Time `json:"sampledAt"`
}

// ProcessStatsWorker samples the chat process (memory, cpu) together with
// the live presence and connection counts every metric interval.
type ProcessStatsWorker struct {
	mu             sync.RWMutex
	log            *slog.Logger
	presence       contract.IPresence
	connections    func() int
	metricInterval time.Duration
	latest         ProcessStats
}

func NewProcessStatsWorker(
	log *slog.Logger,
	presence contract.IPresence,
	connections func() int,
	metricInterval time.Duration,
) *ProcessStatsWorker {
	return &ProcessStatsWorker{
		log:            log,
		presence:       presence,
		connections:    connections,
		metricInterval: metricInterval,
	}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process stats")
			return nil
		case <-ticker.C:
			stats, err := w.sample(p)
			if err != nil {
				w.log.Warn("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Process stats",
				"rss_bytes", stats.RSS,
				"cpu_percent", stats.CPUPercent,
				"status", stats.Status,
				"online_users", stats.OnlineUsers,
				"connections", stats.Connections)
		}
	}
}

func (w *ProcessStatsWorker) sample(p *process.Process) (ProcessStats, error) {
	rss, cpu, status, err := selfStats(p)
	if err != nil {
		return ProcessStats{}, err
	}
	stats := ProcessStats{
		PID:         p.Pid,
		Status:      status,
		RSS:         rss,
		CPUPercent:  cpu,
		OnlineUsers: w.presence.Count(),
		Connections: w.connections(),
		SampledAt:   time.Now().UTC(),
	}
	w.mu.Lock()
	w.latest = stats
	w.mu.Unlock()
	return stats, nil
}

// Latest returns the last sample, zero until the first tick.
func (w *ProcessStatsWorker) Latest() ProcessStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
