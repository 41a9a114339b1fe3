// insightdesk - A terminal client for the insights research assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/cli"
	"github.com/jeranaias/insightdesk/internal/config"
	"github.com/jeranaias/insightdesk/internal/logging"
	"github.com/jeranaias/insightdesk/internal/prefs"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	errOut := io.Writer(os.Stderr)
	if args.JSON {
		errOut = os.Stdout
	}
	fail := func(err error) int {
		cli.DisplayError(errOut, err, args.JSON)
		return cli.GetExitCode(err)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}

	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		// config commands must still work on a broken file.
		if cmd != cli.CmdConfig {
			return fail(err)
		}
		cfg = config.Default()
	}

	level := cfg.Logging.Level
	if args.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		File:   cfg.Logging.File,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fail(err)
	}
	defer logger.Sync()

	// In chat, Ctrl+C cancels the current answer instead of the program.
	signals := []os.Signal{syscall.SIGTERM}
	if cmd != cli.CmdChat {
		signals = append(signals, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	var store prefs.Store
	defer func() {
		if store != nil {
			store.Close()
		}
	}()

	app := &cli.App{
		Config:     cfg,
		ConfigPath: args.ConfigPath,
		Logger:     logger,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		TTY:        cli.IsStdoutTTY(),
		Width:      cli.GetTerminalWidth(),
		Connect: func(ctx context.Context) (*assistant.Client, error) {
			store = openPrefs(cfg, logger)
			return connect(ctx, cfg, store, logger)
		},
	}

	if err := app.Run(ctx, cmd, args); err != nil {
		return fail(err)
	}
	return cli.ExitSuccess
}

// openPrefs opens the SQLite preference store, falling back to memory when
// the file cannot be used.
func openPrefs(cfg *config.Config, logger *zap.Logger) prefs.Store {
	store, err := prefs.OpenSQLite(cfg.PrefsPath())
	if err != nil {
		logger.Warn("preferences will not be saved", zap.String("path", cfg.PrefsPath()), zap.Error(err))
		return prefs.NewMemoryStore()
	}
	return store
}

func connect(ctx context.Context, cfg *config.Config, store prefs.Store, logger *zap.Logger) (*assistant.Client, error) {
	transport := backend.NewClient(cfg.Server.BaseURL,
		backend.WithTimeout(cfg.Timeout()),
		backend.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		backend.WithLogger(logger),
		backend.WithUserAgent("insightdesk/"+Version),
	)

	return assistant.New(ctx, assistant.Config{
		Transport: transport,
		Prefs:     store,
		Defaults: prefs.Settings{
			Topic:       cfg.Chat.DefaultTopic,
			Model:       cfg.Chat.DefaultModel,
			SizingMode:  cfg.Sizing(),
			CustomLimit: cfg.Chat.CustomLimit,
		},
		Capabilities:     cfg.Capabilities(),
		OrgProfileID:     cfg.Server.OrgProfileID,
		ResearchDisabled: !cfg.Research.Enabled,
		Logger:           logger,
	})
}
