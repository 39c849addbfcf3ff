package samples

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemorySource implements Source over in-memory sample logs. Useful
// for testing and for running without a device feed. Anchors encode
// the index just past the last consumed sample.
type MemorySource struct {
	mu     sync.Mutex
	closed bool
	logs   map[Metric][]Sample
	subs   map[Metric]*Subscription

	// offsets tracks how far each live subscription has consumed
	// its metric's log.
	offsets map[Metric]int

	// unavailable metrics reject Subscribe with
	// ErrMetricUnavailable.
	unavailable map[Metric]bool

	buffer int
}

// NewMemory creates an empty in-memory source.
func NewMemory() *MemorySource {
	return &MemorySource{
		logs:        make(map[Metric][]Sample),
		subs:        make(map[Metric]*Subscription),
		offsets:     make(map[Metric]int),
		unavailable: make(map[Metric]bool),
		buffer:      16,
	}
}

// SetUnavailable marks the metric as one this source cannot provide.
func (m *MemorySource) SetUnavailable(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable[metric] = true
}

// Push appends samples to the metric's log and delivers them to the
// live subscription, if any.
func (m *MemorySource) Push(metric Metric, samples ...Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	for i := range samples {
		samples[i].Metric = metric
	}
	m.logs[metric] = append(m.logs[metric], samples...)

	m.deliverLocked(metric)
}

// Subscribe implements Source.Subscribe.
func (m *MemorySource) Subscribe(_ context.Context, metric Metric, since Anchor) (*Subscription, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSourceClosed
	}
	if m.unavailable[metric] {
		return nil, fmt.Errorf("%w: %s", ErrMetricUnavailable, metric)
	}
	if existing, exists := m.subs[metric]; exists {
		if !existing.stopped() {
			return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, metric)
		}
		close(existing.batches)
		delete(m.subs, metric)
	}

	index, err := decodeIndexAnchor(since)
	if err != nil {
		return nil, err
	}
	if index > len(m.logs[metric]) {
		return nil, fmt.Errorf("%w: %q past end of log", ErrBadAnchor, since)
	}

	sub := newSubscription(metric, m.buffer)
	m.subs[metric] = sub
	m.offsets[metric] = index

	// Deliver the backlog past the anchor.
	m.deliverLocked(metric)

	return sub, nil
}

// Close implements Source.Close.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for metric, sub := range m.subs {
		close(sub.batches)
		delete(m.subs, metric)
	}
	return nil
}

// deliverLocked sends any unconsumed tail of the metric's log to its
// subscription. Caller holds m.mu.
func (m *MemorySource) deliverLocked(metric Metric) {
	sub, exists := m.subs[metric]
	if !exists {
		return
	}
	if sub.stopped() {
		close(sub.batches)
		delete(m.subs, metric)
		return
	}

	log := m.logs[metric]
	offset := m.offsets[metric]
	if offset >= len(log) {
		return
	}

	tail := make([]Sample, len(log)-offset)
	copy(tail, log[offset:])

	batch := Batch{
		Metric:  metric,
		Samples: tail,
		Anchor:  encodeIndexAnchor(len(log)),
	}

	select {
	case sub.batches <- batch:
		m.offsets[metric] = len(log)
	default:
		// Subscriber is not keeping up; the tail is re-delivered
		// on the next push.
	}
}

func encodeIndexAnchor(index int) Anchor {
	return Anchor(strconv.Itoa(index))
}

func decodeIndexAnchor(anchor Anchor) (int, error) {
	if anchor == "" {
		return 0, nil
	}
	index, err := strconv.Atoi(string(anchor))
	if err != nil || index < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadAnchor, anchor)
	}
	return index, nil
}
