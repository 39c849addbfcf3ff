// Package main provides the trainsync CLI application.
//
// Trainsync records live training sessions, synchronizes them against
// a remote row store, tracks planned sessions, and folds biometric
// samples from a device feed into the live view.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("trainsync %s\n", version)
		return nil
	}

	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "record":
		return runRecordCommand(*configPath, args[1:])
	case "watch":
		return runWatchCommand(*configPath, args[1:])
	case "plan":
		return runPlanCommand(*configPath, args[1:])
	case "summary":
		return runSummaryCommand(*configPath, args[1:])
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runRecordCommand runs the record command.
func runRecordCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	kind := fs.String("kind", "strength", "session kind (strength, cardio, hiit, mobility, endurance)")
	title := fs.String("title", "", "session title")
	planID := fs.String("plan", "", "planned session id this recording fulfils")
	format := fs.String("format", "", "output format (table, simple)")
	noFeed := fs.Bool("no-feed", false, "disable the biometric sample feed")
	history := fs.Bool("history", false, "append frames instead of clearing the screen")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &recordCommand{
		kind:       *kind,
		title:      *title,
		planID:     *planID,
		format:     *format,
		noFeed:     *noFeed,
		history:    *history,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	refresh := fs.Duration("refresh", time.Second, "vitals refresh interval (e.g. 1s, 500ms)")
	history := fs.Bool("history", false, "append frames instead of clearing the screen")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &watchCommand{
		refresh:     *refresh,
		clearScreen: !*history, // history mode appends frames instead of clearing
		configPath:  configPath,
	}

	return cmd.Execute()
}

// runPlanCommand runs the plan command.
func runPlanCommand(configPath string, args []string) error {
	cmd := &planCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// runSummaryCommand runs the summary command.
func runSummaryCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id (default: most recent finished session)")
	format := fs.String("format", "", "output format (table, json, simple)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &summaryCommand{
		sessionID:  *sessionID,
		format:     *format,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// showUsage displays usage information.
func showUsage() error {
	usage := `Trainsync - live training session recorder

Usage:
  trainsync [flags] <command> [command flags]

Commands:
  record      Record a training session interactively
  watch       Live view of biometric samples from the device feed
  plan        Planned session management (list, add, rm)
  summary     Post-session report for a finished session
  config      Configuration management (show, path, init)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Record Command Flags:
  -kind       Session kind (default: strength)
  -title      Session title
  -plan       Planned session id this recording fulfils
  -format     Output format (table, simple)
  -no-feed    Disable the biometric sample feed
  -history    Append frames instead of clearing the screen

Watch Command Flags:
  -refresh    Refresh interval (default: 1s, e.g., 500ms, 2s)
  -history    Append frames instead of clearing the screen

Summary Command Flags:
  -session    Session id (default: most recent finished session)
  -format     Output format (table, json, simple)

Examples:
  # Record a strength session
  trainsync record -title "Morning push"

  # Record against a planned session
  trainsync record -plan 7f3a... -kind cardio

  # Watch live vitals without recording
  trainsync watch -refresh 500ms

  # List today's planned sessions
  trainsync plan list

  # Add a planned session
  trainsync plan add -date 2025-03-14 -time 07:30 -kind cardio -name "Intervals"

  # Show the report for the last finished session
  trainsync summary

Environment Variables:
  TRAINSYNC_API_URL     Row-store API base URL
  TRAINSYNC_API_TOKEN   API bearer token
  TRAINSYNC_USER_ID     Authenticated user id
  TRAINSYNC_FEED_DIR    Sample feed directory
  TRAINSYNC_LOG_LEVEL   Log level (debug, info, warn, error)
`

	fmt.Print(usage)
	return nil
}
