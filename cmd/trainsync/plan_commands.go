package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"trainsync/pkg/config"
	"trainsync/pkg/display"
	"trainsync/pkg/logger"
	"trainsync/pkg/planner"
	"trainsync/pkg/rowstore"
)

// planCommand handles planned-session subcommands.
type planCommand struct {
	configPath string
}

// Execute runs the plan command with given arguments.
func (c *planCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "list":
		return c.runList(subargs)
	case "add":
		return c.runAdd(subargs)
	case "rm":
		return c.runRemove(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown plan subcommand: %s", subcommand)
	}
}

// newPlannerStore builds the planner store and loads its window.
func (c *planCommand) newPlannerStore(ctx context.Context) (*planner.Store, *config.Config, error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	store := planner.New(planner.Config{
		Store:      newStore(cfg, log),
		User:       rowstore.StaticUser(cfg.API.UserID),
		WindowDays: cfg.Planner.WindowDays,
	}, log)

	if err := store.LoadRange(ctx, time.Now()); err != nil {
		return nil, nil, fmt.Errorf("failed to load planned sessions: %w", err)
	}

	return store, cfg, nil
}

// runList lists planned sessions for a day or the loaded window.
func (c *planCommand) runList(args []string) error {
	fs := flag.NewFlagSet("plan list", flag.ExitOnError)
	day := fs.String("day", "", "day to list (YYYY-MM-DD, default: today)")
	all := fs.Bool("all", false, "list every day in the loaded window")
	format := fs.String("format", "", "output format (table, json, simple)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, cfg, err := c.newPlannerStore(ctx)
	if err != nil {
		return err
	}

	outFormat := display.Format(*format)
	if *format == "" {
		outFormat = display.Format(cfg.Display.Format)
	}
	formatter := display.New(display.Config{Format: outFormat})

	if *all {
		days := store.Days()
		if len(days) == 0 {
			fmt.Println("No planned sessions in the loaded window")
			return nil
		}
		for _, key := range days {
			if err := formatter.FormatPlans(os.Stdout, key, store.SessionsFor(key)); err != nil {
				return err
			}
		}
		return nil
	}

	dayKey := *day
	if dayKey == "" {
		dayKey = planner.DayKey(time.Now())
	}

	plans := store.SessionsFor(dayKey)
	if len(plans) == 0 {
		fmt.Printf("No planned sessions on %s\n", dayKey)
		return nil
	}
	return formatter.FormatPlans(os.Stdout, dayKey, plans)
}

// runAdd creates a planned session.
func (c *planCommand) runAdd(args []string) error {
	fs := flag.NewFlagSet("plan add", flag.ExitOnError)
	date := fs.String("date", "", "session date (YYYY-MM-DD, required)")
	at := fs.String("time", "", "session time (HH:MM, optional)")
	kind := fs.String("kind", "strength", "session kind")
	name := fs.String("name", "", "session name")
	duration := fs.Int("duration", 0, "planned duration in minutes")
	note := fs.String("note", "", "free-form note")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, _, err := c.newPlannerStore(ctx)
	if err != nil {
		return err
	}

	plan, err := store.Upsert(ctx, planner.Plan{
		Date:            *date,
		Time:            *at,
		Kind:            *kind,
		Name:            *name,
		DurationMinutes: *duration,
		Note:            *note,
	})
	if err != nil {
		return fmt.Errorf("failed to add planned session: %w", err)
	}

	fmt.Printf("Planned %s on %s (id %s)\n", plan.Name, plan.Date, plan.ID)
	return nil
}

// runRemove deletes a planned session by id.
func (c *planCommand) runRemove(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: trainsync plan rm <id>")
	}

	ctx := context.Background()
	store, _, err := c.newPlannerStore(ctx)
	if err != nil {
		return err
	}

	for _, id := range args {
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to remove plan %s: %w", id, err)
		}
		fmt.Printf("Removed plan %s\n", id)
	}
	return nil
}

// showHelp displays help for the plan command.
func (c *planCommand) showHelp() error {
	help := `Plan - planned session management

Usage:
  trainsync plan <subcommand> [flags]

Subcommands:
  list      List planned sessions (default: today)
  add       Add a planned session
  rm        Remove planned sessions by id

List Flags:
  -day      Day to list (YYYY-MM-DD)
  -all      List every day in the loaded window
  -format   Output format (table, json, simple)

Add Flags:
  -date     Session date (YYYY-MM-DD, required)
  -time     Session time (HH:MM)
  -kind     Session kind (default: strength)
  -name     Session name
  -duration Planned duration in minutes
  -note     Free-form note

Examples:
  trainsync plan list
  trainsync plan list -day 2025-03-14
  trainsync plan add -date 2025-03-14 -time 07:30 -kind cardio -name "Intervals" -duration 30
  trainsync plan rm 7f3a2b...
`

	fmt.Print(help)
	return nil
}
