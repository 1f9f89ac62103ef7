package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notesync/internal"
	pkgconfig "github.com/starford/notesync/pkg/config"
)

// version is set at build time.
var version = "dev"

// loadConfig reads the optional config file and applies global flags.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Notes.Directory = dir
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp opens the note directory for the duration of fn. File events are
// printed unless quiet is set.
func withApp(quiet bool, fn func(ctx context.Context, cmd *cli.Command, a *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{internal.WithConfig(cfg)}
		if !quiet {
			opts = append(opts, internal.WithEventCallback(printEvent))
		}
		a, err := internal.Open(opts...)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer a.Close()
		return fn(ctx, cmd, a)
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "notesync",
		Usage:   "Keep a directory of plain text notes in two-way sync with Simplenote",
		Version: version,
		// Without a subcommand the arguments are edit terms.
		Action:   withApp(false, editAction),
		Commands: commands(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Notes directory (overrides notes.directory)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Sync continuously: pull on an interval, push edits once they settle",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between pulls (overrides watch.fetch_interval)",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "How long an edited file must stay untouched before it is pushed (overrides watch.send_wait)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("interval") {
				cfg.Watch.FetchInterval = cmd.Duration("interval")
			}
			if cmd.IsSet("wait") {
				cfg.Watch.SendWait = cmd.Duration("wait")
			}
			if err := cfg.Watch.Validate(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return internal.Run(ctx, internal.WithConfig(cfg), internal.WithEventCallback(printEvent))
		},
	}
}
