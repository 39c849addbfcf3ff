// Package samples delivers health metric samples from a device feed as
// resumable, anchored streams.
//
// A Source hands out one Subscription per metric. Every Batch carries
// an opaque Anchor describing the position just past the batch; passing
// that anchor back to Subscribe resumes the stream without replaying
// or skipping samples. The Collector folds batches into live Vitals
// and persists anchors through an AnchorStore so an interrupted
// session picks up exactly where it left off.
//
// Example usage:
//
//	src, err := samples.NewFeed(samples.FeedConfig{Dir: "~/health-feed"}, log)
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	collector, err := samples.NewCollector(samples.CollectorConfig{
//		Source:  src,
//		Anchors: samples.NewMemoryAnchorStore(),
//	}, log)
//	if err != nil {
//		return err
//	}
//	if err := collector.Start(ctx); err != nil {
//		return err
//	}
//	defer collector.Stop()
//
//	vitals := collector.Snapshot()
package samples

import (
	"context"
	"sync"
	"time"
)

// Metric identifies a health metric stream.
type Metric string

// Supported metrics.
const (
	MetricEnergy    Metric = "energy"     // kcal per sample
	MetricDistance  Metric = "distance"   // meters per sample
	MetricSteps     Metric = "steps"      // step count per sample
	MetricHeartRate Metric = "heart_rate" // beats per minute
)

// AllMetrics lists every metric a Collector tracks by default.
var AllMetrics = []Metric{MetricEnergy, MetricDistance, MetricSteps, MetricHeartRate}

// Kind describes how samples of a metric combine over a session.
type Kind int

const (
	// KindCumulative metrics sum: each sample is a delta and the
	// session value is the running total.
	KindCumulative Kind = iota

	// KindInstantaneous metrics read: the session value is the
	// sample with the most recent timestamp.
	KindInstantaneous
)

// Kind returns how this metric's samples fold.
func (m Metric) Kind() Kind {
	if m == MetricHeartRate {
		return KindInstantaneous
	}
	return KindCumulative
}

// Valid reports whether m names a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricEnergy, MetricDistance, MetricSteps, MetricHeartRate:
		return true
	}
	return false
}

// Sample is a single metric observation.
type Sample struct {
	Metric Metric    `json:"metric,omitempty"`
	Value  float64   `json:"value"`
	Time   time.Time `json:"time"`
}

// Anchor is an opaque resume token. The zero value means "from the
// beginning of the stream". Anchors are only meaningful to the Source
// that issued them.
type Anchor string

// Batch is a contiguous run of samples for one metric together with
// the anchor positioned just past the last sample.
type Batch struct {
	Metric  Metric
	Samples []Sample
	Anchor  Anchor
}

// Source produces anchored sample streams, one subscription per
// metric.
type Source interface {
	// Subscribe opens a stream for the metric starting just past
	// the given anchor. An empty anchor starts from the beginning.
	// Returns ErrMetricUnavailable when the source cannot provide
	// the metric at all; the caller should treat the metric as
	// explicitly absent rather than zero.
	Subscribe(ctx context.Context, metric Metric, since Anchor) (*Subscription, error)

	// Close tears down the source and every open subscription.
	Close() error
}

// Subscription is a live stream of batches for a single metric.
type Subscription struct {
	metric  Metric
	batches chan Batch
	stop    chan struct{}
	once    sync.Once
}

func newSubscription(metric Metric, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	return &Subscription{
		metric:  metric,
		batches: make(chan Batch, buffer),
		stop:    make(chan struct{}),
	}
}

// Metric returns the metric this subscription delivers.
func (s *Subscription) Metric() Metric {
	return s.metric
}

// Batches returns the stream of sample batches. The channel is closed
// after Stop or when the source shuts down.
func (s *Subscription) Batches() <-chan Batch {
	return s.batches
}

// Stop ends the subscription. Safe to call multiple times.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
}

// stopped reports whether Stop has been called.
func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// AnchorStore persists per-metric resume anchors across restarts.
type AnchorStore interface {
	// GetAnchor returns the stored anchor for the metric, or the
	// empty anchor when none has been stored.
	GetAnchor(metric Metric) (Anchor, error)

	// SetAnchor stores the anchor for the metric.
	SetAnchor(metric Metric, anchor Anchor) error
}

// Reading is the folded value of one metric.
type Reading struct {
	Value float64
	Time  time.Time // timestamp of the contributing sample, instantaneous metrics only
	Known bool      // false until at least one sample arrived
}

// Vitals is a point-in-time snapshot of every tracked metric.
type Vitals struct {
	Energy    Reading // kcal, cumulative
	Distance  Reading // meters, cumulative
	Steps     Reading // cumulative
	HeartRate Reading // bpm, most recent
}

// reading returns a pointer to the field backing the metric, or nil
// for unknown metrics.
func (v *Vitals) reading(metric Metric) *Reading {
	switch metric {
	case MetricEnergy:
		return &v.Energy
	case MetricDistance:
		return &v.Distance
	case MetricSteps:
		return &v.Steps
	case MetricHeartRate:
		return &v.HeartRate
	}
	return nil
}
