package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// LoadReporter exposes the counters a heartbeat publishes.
type LoadReporter interface {
	Load() (peers, sessions int)
}

type HeartbeatWorker struct {
	log      *slog.Logger
	reporter LoadReporter
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, reporter LoadReporter, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatWorker{log: log, reporter: reporter, interval: interval}
}

// Run logs process health (CPU, RAM, Status) and relay load every interval.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay heartbeat worker")
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
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	peers, sessions := w.reporter.Load()
	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.log.Info("Heartbeat",
		"pid", p.Pid,
		"status", status,
		"cpu_percent", cpu,
		"rss_bytes", rss,
		"peers", peers,
		"sessions", sessions,
	)
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
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
