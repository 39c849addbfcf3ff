package samples

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"trainsync/pkg/logger"
)

// maxFeedLineLength caps a single JSONL line.
const maxFeedLineLength = 64 * 1024

// FeedConfig configures a file feed source.
type FeedConfig struct {
	// Dir is the directory holding one <metric>.jsonl file per
	// metric. Required.
	Dir string

	// DebounceInterval coalesces rapid writes to the same file
	// before reading. Defaults to 100ms.
	DebounceInterval time.Duration

	// BatchBuffer is the per-subscription channel capacity.
	// Defaults to 16.
	BatchBuffer int
}

// feedSource implements Source over a directory of JSONL files, one
// per metric, appended to by the device bridge. Anchors encode the
// byte offset just past the last consumed line, so a resumed
// subscription rereads nothing.
type feedSource struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config FeedConfig

	mu     sync.Mutex
	closed bool
	subs   map[Metric]*feedStream

	stopChan chan struct{}

	// drainChan serializes file reads: timers and Subscribe only
	// request a drain here, and the processEvents goroutine performs
	// it. That goroutine is the sole sender on every subscription
	// channel; doneChan marks its exit.
	drainChan chan string
	doneChan  chan struct{}

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
}

// feedStream tracks one open subscription and its read offset.
type feedStream struct {
	sub    *Subscription
	path   string
	offset int64
}

// NewFeed creates a Source reading metric samples from JSONL files
// under cfg.Dir.
//
// Parameters:
//   - cfg: Feed configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Source
//   - Error if the directory cannot be watched
func NewFeed(cfg FeedConfig, log logger.Logger) (Source, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("feed directory is required")
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}

	dir := expandHome(cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat feed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("feed path is not a directory: %s", dir)
	}
	cfg.Dir = dir

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch feed directory: %w", err)
	}

	f := &feedSource{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		subs:           make(map[Metric]*feedStream),
		stopChan:       make(chan struct{}),
		drainChan:      make(chan string, 16),
		doneChan:       make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}

	go f.processEvents()

	log.Info("sample feed created",
		"dir", dir,
		"debounce_interval", cfg.DebounceInterval)

	return f, nil
}

// Subscribe implements Source.Subscribe.
func (f *feedSource) Subscribe(_ context.Context, metric Metric, since Anchor) (*Subscription, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	offset, err := decodeOffsetAnchor(since)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrSourceClosed
	}
	if existing, exists := f.subs[metric]; exists {
		if !existing.sub.stopped() {
			f.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, metric)
		}
		// The event loop may still be sending on the old channel;
		// only it may close it. Dropping the entry is enough.
		delete(f.subs, metric)
	}

	stream := &feedStream{
		sub:    newSubscription(metric, f.config.BatchBuffer),
		path:   filepath.Join(f.config.Dir, string(metric)+".jsonl"),
		offset: offset,
	}
	f.subs[metric] = stream
	f.mu.Unlock()

	f.logger.Debug("metric subscribed",
		"metric", metric,
		"path", stream.path,
		"offset", offset)

	// Deliver everything already on disk past the anchor.
	f.requestDrain(stream.path)

	return stream.sub, nil
}

// Close implements Source.Close.
func (f *feedSource) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stopChan)

	// Subscription channels stay open until the event loop has
	// exited; it is the only sender on them.
	<-f.doneChan

	f.mu.Lock()
	for metric, stream := range f.subs {
		close(stream.sub.batches)
		delete(f.subs, metric)
	}
	f.mu.Unlock()

	// Cancel debounce timers.
	f.debounceMu.Lock()
	for _, timer := range f.debounceTimers {
		timer.Stop()
	}
	f.debounceTimers = nil
	f.debounceMu.Unlock()

	if err := f.fsw.Close(); err != nil {
		f.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close feed: %w", err)
	}

	f.logger.Info("sample feed closed")
	return nil
}

// processEvents handles fsnotify events and performs all drains.
func (f *feedSource) processEvents() {
	defer close(f.doneChan)

	for {
		select {
		case <-f.stopChan:
			return

		case path := <-f.drainChan:
			f.drainPath(path)

		case event, ok := <-f.fsw.Events:
			if !ok {
				return
			}
			f.handleEvent(event)

		case err, ok := <-f.fsw.Errors:
			if !ok {
				return
			}
			f.logger.Error("fsnotify error", "error", err)
		}
	}
}

// requestDrain hands a path to the event loop. Safe to call from any
// goroutine; a closed source drops the request.
func (f *feedSource) requestDrain(path string) {
	select {
	case f.drainChan <- path:
	case <-f.stopChan:
	}
}

// drainPath drains the stream subscribed to the given feed file, if
// any. Runs on the processEvents goroutine only.
func (f *feedSource) drainPath(path string) {
	f.mu.Lock()
	var stream *feedStream
	if !f.closed {
		for _, s := range f.subs {
			if s.path == path {
				stream = s
				break
			}
		}
	}
	f.mu.Unlock()

	if stream != nil {
		f.drain(stream)
	}
}

// handleEvent debounces writes to subscribed metric files.
func (f *feedSource) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	f.debounceMu.Lock()
	defer f.debounceMu.Unlock()
	if f.debounceTimers == nil {
		return
	}

	// Cancel existing timer for this path.
	if timer, exists := f.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	f.debounceTimers[path] = time.AfterFunc(f.config.DebounceInterval, func() {
		f.debounceMu.Lock()
		if f.debounceTimers != nil {
			delete(f.debounceTimers, path)
		}
		f.debounceMu.Unlock()

		f.requestDrain(path)
	})
}

// drain reads everything past the stream's offset and delivers it as
// one batch. A stopped subscription is removed instead. Runs on the
// processEvents goroutine only, so stream offsets and batch sends
// never overlap.
func (f *feedSource) drain(stream *feedStream) {
	if stream.sub.stopped() {
		f.remove(stream.sub.metric)
		return
	}

	samples, newOffset, err := f.readFrom(stream.sub.metric, stream.path, stream.offset)
	if err != nil {
		f.logger.Error("failed to read feed file",
			"metric", stream.sub.metric,
			"path", stream.path,
			"error", err)
		return
	}
	if newOffset == stream.offset {
		return
	}
	stream.offset = newOffset

	batch := Batch{
		Metric:  stream.sub.metric,
		Samples: samples,
		Anchor:  encodeOffsetAnchor(newOffset),
	}

	select {
	case stream.sub.batches <- batch:
	case <-stream.sub.stop:
		f.remove(stream.sub.metric)
	case <-f.stopChan:
	}
}

// remove drops the subscription for the metric and closes its
// channel.
func (f *feedSource) remove(metric Metric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if stream, exists := f.subs[metric]; exists {
		close(stream.sub.batches)
		delete(f.subs, metric)
	}
}

// readFrom reads JSONL samples from the given byte offset. Malformed
// lines are skipped. Returns the samples and the offset just past the
// last complete line.
func (f *feedSource) readFrom(metric Metric, path string, offset int64) ([]Sample, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File not written yet; nothing to deliver.
			return nil, offset, nil
		}
		return nil, 0, fmt.Errorf("failed to stat feed file: %w", err)
	}

	// A truncated file invalidates the offset; start over.
	if offset > info.Size() {
		f.logger.Warn("feed file truncated, resetting offset",
			"path", path,
			"old_offset", offset,
			"file_size", info.Size())
		offset = 0
	}
	if offset == info.Size() {
		return nil, offset, nil
	}

	file, err := os.Open(path) // #nosec G304 -- path is derived from the configured feed dir
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			f.logger.Warn("failed to close feed file", "path", path, "error", closeErr)
		}
	}()

	if offset > 0 {
		if _, seekErr := file.Seek(offset, io.SeekStart); seekErr != nil {
			return nil, 0, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	samples := make([]Sample, 0, 16)
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 4*1024)
	scanner.Buffer(buf, maxFeedLineLength)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var sample Sample
		if unmarshalErr := json.Unmarshal([]byte(line), &sample); unmarshalErr != nil {
			f.logger.Warn("skipping malformed feed line",
				"path", path,
				"error", unmarshalErr)
			continue
		}
		sample.Metric = metric
		samples = append(samples, sample)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, 0, fmt.Errorf("scanner error: %w", scanErr)
	}

	newOffset, seekErr := file.Seek(0, io.SeekCurrent)
	if seekErr != nil {
		return nil, 0, fmt.Errorf("failed to determine new offset: %w", seekErr)
	}

	return samples, newOffset, nil
}

// encodeOffsetAnchor encodes a byte offset as an opaque anchor.
func encodeOffsetAnchor(offset int64) Anchor {
	return Anchor(strconv.FormatInt(offset, 10))
}

// decodeOffsetAnchor decodes an anchor issued by a feed source. The
// empty anchor means offset zero.
func decodeOffsetAnchor(anchor Anchor) (int64, error) {
	if anchor == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(string(anchor), 10, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadAnchor, anchor)
	}
	return offset, nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
