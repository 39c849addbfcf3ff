package samples

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trainsync/pkg/logger"
)

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	// Source produces the sample streams. Required.
	Source Source

	// Anchors persists resume anchors. Required.
	Anchors AnchorStore

	// Metrics to track. Defaults to AllMetrics.
	Metrics []Metric

	// Seed restores previously folded vitals, for resuming a
	// session whose totals were accumulated before a restart.
	Seed Vitals

	// UpdateBuffer is the capacity of the updates channel.
	// Defaults to 16.
	UpdateBuffer int
}

// Collector subscribes to one stream per metric and folds arriving
// batches into live Vitals. Cumulative metrics sum, instantaneous
// metrics keep the most recent sample. The anchor for a batch is
// persisted only after the batch is folded, so a crash between the
// two replays the batch instead of losing it.
type Collector struct {
	source  Source
	anchors AnchorStore
	metrics []Metric
	logger  logger.Logger

	mu          sync.RWMutex
	running     bool
	closed      bool
	vitals      Vitals
	unavailable []Metric

	subs     []*Subscription
	stopChan chan struct{}
	wg       sync.WaitGroup

	updates chan Vitals
}

// NewCollector creates a Collector.
//
// Parameters:
//   - cfg: Collector configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Collector
//   - Error if the configuration is invalid
func NewCollector(cfg CollectorConfig, log logger.Logger) (*Collector, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Anchors == nil {
		return nil, fmt.Errorf("anchor store is required")
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = AllMetrics
	}
	if cfg.UpdateBuffer == 0 {
		cfg.UpdateBuffer = 16
	}

	return &Collector{
		source:   cfg.Source,
		anchors:  cfg.Anchors,
		metrics:  cfg.Metrics,
		logger:   log,
		vitals:   cfg.Seed,
		stopChan: make(chan struct{}),
		updates:  make(chan Vitals, cfg.UpdateBuffer),
	}, nil
}

// Start subscribes to every configured metric, resuming each stream
// from its persisted anchor. Metrics the source cannot provide are
// recorded as unavailable rather than failing the start.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCollectorClosed
	}
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.running = true
	c.mu.Unlock()

	for _, metric := range c.metrics {
		anchor, err := c.anchors.GetAnchor(metric)
		if err != nil {
			c.logger.Warn("failed to load anchor, starting from beginning",
				"metric", metric,
				"error", err)
			anchor = ""
		}

		sub, err := c.source.Subscribe(ctx, metric, anchor)
		if errors.Is(err, ErrBadAnchor) {
			c.logger.Warn("stored anchor rejected, starting from beginning",
				"metric", metric,
				"anchor", anchor)
			sub, err = c.source.Subscribe(ctx, metric, "")
		}
		if err != nil {
			if errors.Is(err, ErrMetricUnavailable) {
				c.mu.Lock()
				c.unavailable = append(c.unavailable, metric)
				c.mu.Unlock()
				c.logger.Info("metric unavailable", "metric", metric)
				continue
			}
			c.shutdownStreams()
			return fmt.Errorf("failed to subscribe to %s: %w", metric, err)
		}

		c.subs = append(c.subs, sub)
		c.wg.Add(1)
		go c.consume(sub)
	}

	c.logger.Info("collector started",
		"metrics", len(c.subs),
		"unavailable", len(c.unavailable))

	return nil
}

// Snapshot returns the current folded vitals.
func (c *Collector) Snapshot() Vitals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vitals
}

// Unavailable returns the metrics the source explicitly could not
// provide. These are absent, not zero.
func (c *Collector) Unavailable() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Metric, len(c.unavailable))
	copy(out, c.unavailable)
	return out
}

// Updates returns a stream of vitals snapshots, one per folded batch.
// Snapshots are dropped when the channel is full; Snapshot always has
// the latest state.
func (c *Collector) Updates() <-chan Vitals {
	return c.updates
}

// Stop ends every subscription and waits for in-flight folds to
// finish. Safe to call once.
func (c *Collector) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCollectorClosed
	}
	c.closed = true
	c.running = false
	c.mu.Unlock()

	c.shutdownStreams()
	c.wg.Wait()
	close(c.updates)

	c.logger.Info("collector stopped")
	return nil
}

func (c *Collector) shutdownStreams() {
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	for _, sub := range c.subs {
		sub.Stop()
	}
}

// consume folds batches from one subscription until it ends.
func (c *Collector) consume(sub *Subscription) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return

		case batch, ok := <-sub.Batches():
			if !ok {
				return
			}
			c.fold(batch)
		}
	}
}

// fold applies one batch and persists its anchor.
func (c *Collector) fold(batch Batch) {
	if len(batch.Samples) > 0 {
		c.mu.Lock()
		reading := c.vitals.reading(batch.Metric)
		if reading != nil {
			switch batch.Metric.Kind() {
			case KindCumulative:
				for _, sample := range batch.Samples {
					reading.Value += sample.Value
				}
				reading.Known = true

			case KindInstantaneous:
				for _, sample := range batch.Samples {
					if !reading.Known || !sample.Time.Before(reading.Time) {
						reading.Value = sample.Value
						reading.Time = sample.Time
						reading.Known = true
					}
				}
			}
		}
		snapshot := c.vitals
		c.mu.Unlock()

		c.emit(snapshot)
	}

	// Anchor moves only after the fold, never before.
	if err := c.anchors.SetAnchor(batch.Metric, batch.Anchor); err != nil {
		c.logger.Error("failed to persist anchor",
			"metric", batch.Metric,
			"anchor", batch.Anchor,
			"error", err)
	}
}

func (c *Collector) emit(vitals Vitals) {
	select {
	case c.updates <- vitals:
	default:
		c.logger.Debug("updates channel full, dropping snapshot")
	}
}
