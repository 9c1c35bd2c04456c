package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finalyzer/finalyzer/internal/queue"
)

// Pool runs a fixed set of workers draining job messages from a queue.
type Pool struct {
	queue      queue.Queue
	processor  *Processor
	count      int
	jobTimeout time.Duration
	logger     *slog.Logger
}

// PoolConfig configures a worker pool.
type PoolConfig struct {
	Queue      queue.Queue
	Processor  *Processor
	Count      int
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// NewPool creates a worker pool.
func NewPool(cfg PoolConfig) *Pool {
	count := cfg.Count
	if count <= 0 {
		count = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		queue:      cfg.Queue,
		processor:  cfg.Processor,
		count:      count,
		jobTimeout: cfg.JobTimeout,
		logger:     log,
	}
}

// Run starts the workers and blocks until the context is cancelled and
// all in-flight jobs have finished.
func (p *Pool) Run(ctx context.Context) error {
	msgs, err := p.queue.Messages(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("worker pool started", "workers", p.count)

	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := p.logger.With("worker", id)
			for msg := range msgs {
				p.handle(ctx, msg, log)
			}
			log.Debug("worker stopped")
		}(i)
	}

	wg.Wait()
	p.logger.Info("worker pool stopped")
	return nil
}

func (p *Pool) handle(ctx context.Context, msg queue.Message, log *slog.Logger) {
	jobCtx := ctx
	var cancel context.CancelFunc
	if p.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	if err := p.processor.Process(jobCtx, msg.JobID); err != nil {
		log.Error("failed to process delivery", "job_id", msg.JobID, "error", err)
	}
}
