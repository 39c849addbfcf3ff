package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"trainsync/pkg/config"
	"trainsync/pkg/display"
	"trainsync/pkg/identity"
	"trainsync/pkg/logger"
	"trainsync/pkg/rowstore"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// loadConfig loads configuration from the explicit path when given,
// the default search locations otherwise.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.NewLoader(configPath).Load()
	}
	return config.Load()
}

// newStore builds the remote row store from configuration.
func newStore(cfg *config.Config, log logger.Logger) rowstore.Store {
	return rowstore.NewHTTP(rowstore.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, log)
}

// openAnchorDB opens the BoltDB file holding sample anchors, creating
// its directory when needed.
func openAnchorDB(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open anchor database: %w", err)
	}
	return db, nil
}

// recordCommand records a training session interactively.
type recordCommand struct {
	kind       string
	title      string
	planID     string
	format     string
	noFeed     bool
	history    bool
	configPath string

	// currentItem is the exercise that set commands apply to.
	currentItem identity.LocalID
}

// Execute runs the record command.
func (c *recordCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Quiet logging, the terminal belongs to the live view.
	log := logger.New(logger.Config{
		Level:  "error",
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	store := newStore(cfg, log)
	user := rowstore.StaticUser(cfg.API.UserID)

	rec := workout.NewRecorder(workout.RecorderConfig{
		Store: store,
		User:  user,
	}, log)
	defer func() {
		if err := rec.Close(); err != nil {
			log.Error("failed to close recorder", "error", err)
		}
	}()

	// Sample collection is optional; recording works without a feed.
	var collector *samples.Collector
	var vitalsUpdates <-chan samples.Vitals
	if !c.noFeed {
		collector = c.startCollector(cfg, log)
		if collector != nil {
			vitalsUpdates = collector.Updates()
			defer func() {
				if err := collector.Stop(); err != nil {
					log.Error("failed to stop collector", "error", err)
				}
			}()
		}
	}

	ctx := context.Background()
	if err := rec.Start(ctx, c.kind, c.title, c.planID); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	format := display.Format(c.format)
	if c.format == "" {
		format = display.Format(cfg.Display.Format)
	}
	formatter := display.New(display.Config{Format: format, ShowVitals: true})
	live := display.NewLive(os.Stdout, formatter, cfg.Display.ClearScreen && !c.history)

	// Read stdin commands on their own goroutine.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Recording - type 'help' for commands, 'finish' to end the session")

	sess, _ := rec.Snapshot()
	vitals := samples.Vitals{}
	if collector != nil {
		vitals = collector.Snapshot()
	}
	if err := live.Render(sess, vitals); err != nil {
		return err
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nSession left unfinished; run 'trainsync record' to start a new one")
			return nil

		case update := <-rec.Updates():
			sess = update.Session
			if err := live.Render(sess, vitals); err != nil {
				return err
			}

		case err := <-rec.Errs():
			fmt.Fprintf(os.Stderr, "sync error: %v\n", err)

		case v := <-vitalsUpdates:
			vitals = v
			if err := live.Render(sess, vitals); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			finished, err := c.handleLine(rec, collector, formatter, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			if finished {
				return nil
			}
		}
	}
}

// startCollector wires the sample feed and collector; a missing feed
// directory degrades to recording without vitals.
func (c *recordCommand) startCollector(cfg *config.Config, log logger.Logger) *samples.Collector {
	db, err := openAnchorDB(cfg.Storage.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample feed disabled: %v\n", err)
		return nil
	}

	anchors, err := samples.NewBoltAnchorStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample feed disabled: %v\n", err)
		_ = db.Close()
		return nil
	}

	feed, err := samples.NewFeed(samples.FeedConfig{
		Dir:              cfg.Feed.Dir,
		DebounceInterval: cfg.Feed.DebounceInterval,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample feed disabled: %v\n", err)
		_ = db.Close()
		return nil
	}

	collector, err := samples.NewCollector(samples.CollectorConfig{
		Source:  feed,
		Anchors: anchors,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample feed disabled: %v\n", err)
		_ = feed.Close()
		_ = db.Close()
		return nil
	}

	if err := collector.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "sample feed disabled: %v\n", err)
		_ = feed.Close()
		_ = db.Close()
		return nil
	}

	return collector
}

// handleLine dispatches one REPL command. The returned bool reports
// whether the session ended.
func (c *recordCommand) handleLine(rec *workout.Recorder, collector *samples.Collector, formatter display.Formatter, line string) (bool, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "add":
		return false, c.addExercise(rec, fields[1:])
	case "set":
		return false, c.logSet(rec, fields[1:])
	case "interval":
		return false, c.logInterval(rec, fields[1:])
	case "rm":
		return false, c.removeCurrent(rec)
	case "pause":
		return false, rec.Pause()
	case "resume":
		return false, rec.Resume()
	case "finish":
		return true, c.finish(rec, collector, formatter)
	case "quit":
		return true, nil
	case "help":
		c.showReplHelp()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, type 'help'", fields[0])
	}
}

// addExercise handles: add <name...> [#catalog-id]
func (c *recordCommand) addExercise(rec *workout.Recorder, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: add <name> [#catalog-id]")
	}

	ref := workout.ExerciseRef{}
	if last := args[len(args)-1]; strings.HasPrefix(last, "#") {
		ref.CatalogID = strings.TrimPrefix(last, "#")
		args = args[:len(args)-1]
	}
	ref.SnapshotName = strings.Join(args, " ")

	item, err := rec.AddExercise(ref)
	if err != nil {
		return err
	}
	c.currentItem = item.LocalID
	return nil
}

// logSet handles: set <reps>x<weight> [rpe]
func (c *recordCommand) logSet(rec *workout.Recorder, args []string) error {
	if c.currentItem == "" {
		return fmt.Errorf("no exercise yet, use 'add' first")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: set <reps>x<weight> [rpe]")
	}

	parts := strings.SplitN(args[0], "x", 2)
	if len(parts) != 2 {
		return fmt.Errorf("usage: set <reps>x<weight> [rpe]")
	}
	reps, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("bad rep count %q", parts[0])
	}
	weight, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("bad weight %q", parts[1])
	}

	patch := workout.SetPatch{
		Reps:     workout.IntPtr(reps),
		WeightKg: workout.Float64Ptr(weight),
		Done:     workout.BoolPtr(true),
	}
	if len(args) > 1 {
		rpe, rpeErr := strconv.ParseFloat(args[1], 64)
		if rpeErr != nil {
			return fmt.Errorf("bad RPE %q", args[1])
		}
		patch.RPE = workout.Float64Ptr(rpe)
	}

	target, err := c.targetSet(rec)
	if err != nil {
		return err
	}
	return rec.UpdateSet(target, patch)
}

// logInterval handles: interval <duration> [distance-m]
func (c *recordCommand) logInterval(rec *workout.Recorder, args []string) error {
	if c.currentItem == "" {
		return fmt.Errorf("no exercise yet, use 'add' first")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: interval <duration> [distance-m]")
	}

	duration, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("bad duration %q", args[0])
	}

	patch := workout.SetPatch{
		DurationSec: workout.IntPtr(int(duration.Seconds())),
		Done:        workout.BoolPtr(true),
	}
	if len(args) > 1 {
		distance, distErr := strconv.ParseFloat(args[1], 64)
		if distErr != nil {
			return fmt.Errorf("bad distance %q", args[1])
		}
		patch.DistanceM = workout.Float64Ptr(distance)
	}

	target, err := c.targetSet(rec)
	if err != nil {
		return err
	}
	return rec.UpdateSet(target, patch)
}

// targetSet returns the current item's open set, appending a fresh
// one when the last set is already logged.
func (c *recordCommand) targetSet(rec *workout.Recorder) (identity.LocalID, error) {
	sess, err := rec.Snapshot()
	if err != nil {
		return "", err
	}

	for _, item := range sess.Items {
		if item.LocalID != c.currentItem {
			continue
		}
		if n := len(item.Sets); n > 0 && !item.Sets[n-1].Done {
			return item.Sets[n-1].LocalID, nil
		}
		set, addErr := rec.AddSet(c.currentItem)
		if addErr != nil {
			return "", addErr
		}
		return set.LocalID, nil
	}

	return "", fmt.Errorf("current exercise no longer in session")
}

// removeCurrent removes the current exercise from the session.
func (c *recordCommand) removeCurrent(rec *workout.Recorder) error {
	if c.currentItem == "" {
		return fmt.Errorf("no exercise to remove")
	}
	if err := rec.RemoveItem(c.currentItem); err != nil {
		return err
	}
	c.currentItem = ""
	return nil
}

// finish ends the session and prints its report.
func (c *recordCommand) finish(rec *workout.Recorder, collector *samples.Collector, formatter display.Formatter) error {
	sess, err := rec.Finish()
	if err != nil {
		return err
	}

	vitals := samples.Vitals{}
	if collector != nil {
		vitals = collector.Snapshot()
	}

	// Records need history; a failed load just means no record
	// detection this time.
	var history summary.Records
	if cfg, cfgErr := loadConfig(c.configPath); cfgErr == nil {
		log := logger.Noop()
		if prior, loadErr := loadFinishedSessions(context.Background(), newStore(cfg, log), cfg.API.UserID, sess.RemoteID); loadErr == nil {
			history = summary.BestsFromSessions(prior)
		}
	}

	report := summary.Summarize(sess, vitals, history)
	return formatter.FormatReport(os.Stdout, report)
}

func (c *recordCommand) showReplHelp() {
	fmt.Print(`Commands:
  add <name> [#catalog-id]   Add an exercise
  set <reps>x<weight> [rpe]  Log a completed set for the current exercise
  interval <dur> [meters]    Log a timed interval (e.g. interval 4m 800)
  rm                         Remove the current exercise
  pause / resume             Pause or resume the session clock
  finish                     End the session and print the report
  quit                       Leave without finishing
`)
}

// watchCommand provides a live view of biometric samples.
type watchCommand struct {
	refresh     time.Duration
	clearScreen bool
	configPath  string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  "error",
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	db, err := openAnchorDB(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close anchor database", "error", err)
		}
	}()

	anchors, err := samples.NewBoltAnchorStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize anchor store: %w", err)
	}

	feed, err := samples.NewFeed(samples.FeedConfig{
		Dir:              cfg.Feed.Dir,
		DebounceInterval: cfg.Feed.DebounceInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open sample feed: %w", err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			log.Error("failed to close feed", "error", err)
		}
	}()

	collector, err := samples.NewCollector(samples.CollectorConfig{
		Source:  feed,
		Anchors: anchors,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	if err := collector.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start collector: %w", err)
	}
	defer func() {
		if err := collector.Stop(); err != nil {
			log.Error("failed to stop collector", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	fmt.Println("Live vitals - Press Ctrl+C to stop")
	fmt.Printf("Feed: %s | Refresh: %s\n\n", cfg.Feed.Dir, c.refresh)

	for {
		select {
		case <-sigChan:
			fmt.Println("\nStopping watch...")
			return nil

		case <-ticker.C:
			c.displayVitals(collector.Snapshot(), collector.Unavailable())
		}
	}
}

// displayVitals renders one vitals frame.
func (c *watchCommand) displayVitals(vitals samples.Vitals, unavailable []samples.Metric) {
	if c.clearScreen {
		fmt.Print("\033[2J\033[H")
		fmt.Println("Live vitals - Press Ctrl+C to stop")
		fmt.Println()
	}

	show := func(label string, r samples.Reading, unit string) {
		if r.Known {
			fmt.Printf("  %-12s %.0f %s\n", label, r.Value, unit)
		} else {
			fmt.Printf("  %-12s -\n", label)
		}
	}

	show("Heart Rate", vitals.HeartRate, "bpm")
	show("Energy", vitals.Energy, "kcal")
	show("Distance", vitals.Distance, "m")
	show("Steps", vitals.Steps, "")

	if len(unavailable) > 0 {
		names := make([]string, len(unavailable))
		for i, m := range unavailable {
			names[i] = string(m)
		}
		fmt.Printf("\n  unavailable: %s\n", strings.Join(names, ", "))
	}

	if !c.clearScreen {
		fmt.Println()
	}
}
