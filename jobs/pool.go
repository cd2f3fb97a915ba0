package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/db"
)

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
}

// DefaultPoolConfig returns the serving defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      2,
		PollInterval: 500 * time.Millisecond,
	}
}

// Pool polls the store and runs claimed jobs through registered handlers.
// Workers derive from the context passed to Start; cancelling it drains
// the pool.
type Pool struct {
	store    *Store
	registry *Registry
	cfg      PoolConfig
	log      *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool. Register handlers before Start.
func NewPool(store *Store, registry *Registry, cfg PoolConfig, log *zap.SugaredLogger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPoolConfig().PollInterval
	}
	return &Pool{store: store, registry: registry, cfg: cfg, log: log}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Infow("Job pool started",
		"workers", p.cfg.Workers,
		"poll_interval", p.cfg.PollInterval)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Infow("Job pool stopped")
}

func (p *Pool) worker(ctx context.Context, n int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			job, err := p.store.ClaimNext(ctx)
			if err != nil {
				if ctx.Err() == nil && !db.IsDatabaseClosed(err) {
					p.log.Errorw("Claiming job failed", "worker", n, "error", err)
				}
				break
			}
			if job == nil {
				break
			}
			p.run(ctx, n, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, n int, job *Job) {
	handler := p.registry.Get(job.Handler)
	if handler == nil {
		p.log.Errorw("No handler for job", "job_id", job.ID, "handler", job.Handler)
		p.recordFailure(job.ID, "no handler registered: "+job.Handler)
		return
	}

	p.log.Infow("Job started",
		"worker", n,
		"job_id", job.ID,
		"handler", job.Handler)
	start := time.Now()

	if err := handler.Execute(ctx, job); err != nil {
		p.log.Errorw("Job failed",
			"job_id", job.ID,
			"handler", job.Handler,
			"duration", time.Since(start),
			"error", err)
		p.recordFailure(job.ID, err.Error())
		return
	}

	// Completion uses a fresh context so shutdown doesn't lose the result
	// of work that already finished.
	if err := p.store.Complete(context.Background(), job.ID, job.Result); err != nil {
		if !db.IsDatabaseClosed(err) {
			p.log.Errorw("Recording job completion failed", "job_id", job.ID, "error", err)
		}
		return
	}
	p.log.Infow("Job completed",
		"job_id", job.ID,
		"handler", job.Handler,
		"duration", time.Since(start))
}

func (p *Pool) recordFailure(id, msg string) {
	if err := p.store.Fail(context.Background(), id, msg); err != nil {
		if !db.IsDatabaseClosed(err) {
			p.log.Errorw("Recording job failure failed", "job_id", id, "error", err)
		}
	}
}

// Wait polls until the job reaches a terminal status or the context ends.
func (p *Pool) Wait(ctx context.Context, id string) (*Job, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := p.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
