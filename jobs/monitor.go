package jobs

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// MemoryMonitor samples this process's resident memory while a subset job
// runs. Subsets of large upstream networks hold every divide polygon in
// memory at once; the peak figure goes into the job log.
type MemoryMonitor struct {
	interval time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex
	peakRSS uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryMonitor creates a monitor sampling at the given interval.
func NewMemoryMonitor(interval time.Duration, log *zap.SugaredLogger) *MemoryMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &MemoryMonitor{interval: interval, log: log}
}

// Start begins sampling in the background.
func (m *MemoryMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.log.Warnw("Memory monitor unavailable", "error", err)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			info, err := proc.MemoryInfo()
			if err != nil {
				continue
			}
			m.mu.Lock()
			if info.RSS > m.peakRSS {
				m.peakRSS = info.RSS
			}
			m.mu.Unlock()
			m.log.Debugw("Memory sample", "rss_mb", info.RSS/(1<<20))
		}
	}()
}

// Stop ends sampling and returns the peak resident size observed.
func (m *MemoryMonitor) Stop() uint64 {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakRSS
}
