package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/skillgate/store"
)

// Persister handles periodic persistence of aggregated metrics to the database.
type Persister struct {
	store      *store.Store
	aggregator *Aggregator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushInterval   time.Duration
	retentionPeriod time.Duration
	cleanupInterval time.Duration
}

// PersisterConfig configures the metrics persister.
type PersisterConfig struct {
	FlushInterval   time.Duration // How often to flush metrics to DB (default: 5 minutes)
	RetentionPeriod time.Duration // How long to keep metrics (default: 30 days)
	CleanupInterval time.Duration // How often to run cleanup (default: 24 hours)
}

// DefaultPersisterConfig returns default persister configuration.
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		FlushInterval:   5 * time.Minute,
		RetentionPeriod: 30 * 24 * time.Hour,
		CleanupInterval: 24 * time.Hour,
	}
}

// NewPersister creates a new metrics persister.
func NewPersister(s *store.Store, agg *Aggregator, cfg PersisterConfig) *Persister {
	def := DefaultPersisterConfig()
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = def.RetentionPeriod
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Persister{
		store:           s,
		aggregator:      agg,
		ctx:             ctx,
		cancel:          cancel,
		flushInterval:   cfg.FlushInterval,
		retentionPeriod: cfg.RetentionPeriod,
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Start begins the background persistence and cleanup tasks.
func (p *Persister) Start() {
	p.wg.Add(2)
	go p.flushLoop()
	go p.cleanupLoop()
}

// Close stops the persister and waits for goroutines to finish. Every
// pending bucket, including the current hour, is written before it returns.
func (p *Persister) Close() {
	p.cancel()
	p.wg.Wait()
}

// Flush immediately persists all completed hour buckets to the database.
func (p *Persister) Flush(ctx context.Context) error {
	return p.flushBefore(ctx, truncateToHour(p.aggregator.now()))
}

// FlushAll persists every bucket, including the current hour. Upserts add
// to existing rows so a later flush of the same hour accumulates.
func (p *Persister) FlushAll(ctx context.Context) error {
	return p.flushBefore(ctx, truncateToHour(p.aggregator.now()).Add(time.Hour))
}

func (p *Persister) flushBefore(ctx context.Context, beforeHour time.Time) error {
	for _, snapshot := range p.aggregator.FlushSkillMetrics(beforeHour) {
		_, err := p.store.UpsertSkillMetrics(ctx, &store.UpsertSkillMetrics{
			HourBucket:   snapshot.HourBucket,
			SkillName:    snapshot.SkillName,
			RequestCount: snapshot.RequestCount,
			SuccessCount: snapshot.SuccessCount,
			CacheHits:    snapshot.CacheHits,
			LatencySumMs: snapshot.LatencySumMs,
			LatencyP50Ms: snapshot.LatencyP50Ms,
			LatencyP95Ms: snapshot.LatencyP95Ms,
			Errors:       snapshot.ErrorsJSON(),
		})
		if err != nil {
			slog.Error("failed to persist skill metrics",
				"skill", snapshot.SkillName,
				"hour", snapshot.HourBucket,
				"error", err,
			)
		}
	}

	for _, snapshot := range p.aggregator.FlushToolMetrics(beforeHour) {
		_, err := p.store.UpsertToolMetrics(ctx, &store.UpsertToolMetrics{
			HourBucket:   snapshot.HourBucket,
			ToolName:     snapshot.ToolName,
			CallCount:    snapshot.CallCount,
			SuccessCount: snapshot.SuccessCount,
			LatencySumMs: snapshot.LatencySumMs,
		})
		if err != nil {
			slog.Error("failed to persist tool metrics",
				"tool_name", snapshot.ToolName,
				"hour", snapshot.HourBucket,
				"error", err,
			)
		}
	}

	return nil
}

func (p *Persister) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			// Final flush before shutdown
			_ = p.FlushAll(context.Background())
			return
		case <-ticker.C:
			if err := p.Flush(p.ctx); err != nil {
				slog.Error("periodic metrics flush failed", "error", err)
			}
		}
	}
}

func (p *Persister) cleanupLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(p.ctx)
		}
	}
}

func (p *Persister) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.retentionPeriod)

	if err := p.store.DeleteSkillMetrics(ctx, &store.DeleteSkillMetrics{
		BeforeTime: &cutoff,
	}); err != nil {
		slog.Error("failed to cleanup old skill metrics", "error", err)
	}

	if err := p.store.DeleteToolMetrics(ctx, &store.DeleteToolMetrics{
		BeforeTime: &cutoff,
	}); err != nil {
		slog.Error("failed to cleanup old tool metrics", "error", err)
	}

	slog.Debug("metrics cleanup completed", "cutoff", cutoff)
}
