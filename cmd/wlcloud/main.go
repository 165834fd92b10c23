package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/chrissnell/wlcloud/internal/log"
	"github.com/chrissnell/wlcloud/pkg/config"
)

var version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Exit codes let scripts tell rejected credentials from network trouble.
const (
	exitError         = 1
	exitInvalidAuth   = 2
	exitCannotConnect = 3
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wlcloud: %v\n", err)
		os.Exit(exitError)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "wlcloud",
		Usage:   "poll a Davis WeatherLink station and publish normalized observations",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML file or SQLite database holding the configuration",
				Sources: cli.EnvVars("WLCLOUD_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "config-backend",
				Value:   "yaml",
				Usage:   "configuration backend: yaml or sqlite",
				Sources: cli.EnvVars("WLCLOUD_CONFIG_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file with WLCLOUD_* overrides; missing files are ignored",
				Sources: cli.EnvVars("WLCLOUD_ENV_FILE"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "turn on debugging output",
				Sources: cli.EnvVars("WLCLOUD_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "also write JSON logs to this file, rotated by size",
				Sources: cli.EnvVars("WLCLOUD_LOG_FILE"),
			},
		},
		Before: setup,
		After: func(ctx context.Context, _ *cli.Command) error {
			log.Sync()
			return nil
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start polling and serve the configured controllers (default)",
				Action: runAction,
			},
			validateCommand(),
			stationsCommand(),
			normalizeCommand(),
			migrateCommand(),
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Printf("wlcloud %s\n", version)
					return nil
				},
			},
		},
	}
}

// setup loads the dotenv file and initializes logging before any command runs.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := config.LoadEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}
	if err := log.Init(log.Options{Debug: cmd.Bool("debug"), File: cmd.String("log-file")}); err != nil {
		return ctx, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return ctx, nil
}

// openProvider opens the configured backend. The caller closes it.
func openProvider(cmd *cli.Command) (config.ConfigProvider, error) {
	filename, err := filepath.Abs(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	switch backend := cmd.String("config-backend"); backend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
	}
}

// loadEntry reads the station entry with environment overrides applied.
func loadEntry(cmd *cli.Command) (*config.EntryData, error) {
	provider, err := openProvider(cmd)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	entry, err := provider.GetEntry()
	if err != nil {
		return nil, fmt.Errorf("error reading configuration. Did you pass the --config flag? Run with -h for help: %w", err)
	}
	if err := config.ApplyEnv(entry); err != nil {
		return nil, err
	}
	return entry, nil
}
