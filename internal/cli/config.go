// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Show the configuration file path
//   init [--force]      Write a default configuration file
//   get <key>           Print one setting
//   set <key> <value>   Change one setting in the configuration file
//   keys                List every setting key
//
// Examples:
//   insightdesk config
//   insightdesk config show --json
//   insightdesk config set server.base_url https://insights.example.com
//   insightdesk config set chat.capabilities web_search,charts
//   insightdesk config get chat.sizing_mode
//
// show and get report the effective values, environment overrides
// included. set edits the file only.

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/config"
)

func (a *App) runConfig(args Args) error {
	p := NewArgParser(args.Raw, "force", "f")

	sub := strings.ToLower(p.Subcommand())
	switch sub {
	case "", "show":
		return a.configShow(args)
	case "path":
		return a.configPath(args)
	case "init":
		return a.configInit(args, p.BoolFlag("force") || p.BoolFlag("f"))
	case "get":
		return a.configGet(args, p.Positional(1))
	case "set":
		return a.configSet(args, p.Positional(1), strings.Join(p.PositionalFrom(2), " "))
	case "keys":
		return a.configKeys(args)
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"must be show, path, init, get, set or keys"+didYouMean(sub, configSubcommands), "insightdesk config get chat.default_model")
	}
}

// configFile returns the file config commands edit.
func (a *App) configFile() (string, error) {
	if a.ConfigPath != "" {
		return a.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

// loadConfigFile reads path without environment overrides. A missing file
// yields the defaults.
func loadConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	load := config.LoadTOML
	if isJSONPath(path) {
		load = config.LoadJSON
	}
	if err := load(cfg, path); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func saveConfigFile(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func (a *App) configShow(args Args) error {
	if args.JSON {
		return writeJSON(a.Out, CmdConfig.String(), a.config(), nil)
	}
	if !args.Quiet {
		if path, err := a.configFile(); err == nil {
			fmt.Fprintln(a.Out, DimStyle.Render("# "+path))
		}
	}
	fmt.Fprint(a.Out, a.config().String())
	return nil
}

func (a *App) configPath(args Args) error {
	path, err := a.configFile()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if args.JSON {
		return writeJSON(a.Out, CmdConfig.String(), map[string]any{
			"path":   path,
			"exists": exists,
		}, nil)
	}
	fmt.Fprintln(a.Out, path)
	if !exists && !args.Quiet {
		fmt.Fprintln(a.Err, DimStyle.Render("(not created yet; run: insightdesk config init)"))
	}
	return nil
}

func (a *App) configInit(args Args, force bool) error {
	path, err := a.configFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewValidationErrorWithExample("config", path,
			"already exists (use --force to overwrite)", "insightdesk config init --force")
	}
	if err := saveConfigFile(config.Default(), path); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(a.Out, CmdConfig.String(), map[string]any{"path": path, "created": true}, nil)
	}
	fmt.Fprintf(a.Out, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

func (a *App) configGet(args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "insightdesk config get <key>")
	}
	value, err := a.config().Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "insightdesk config keys")
	}

	if args.JSON {
		return writeJSON(a.Out, CmdConfig.String(), map[string]any{"key": key, "value": value}, nil)
	}
	if list, ok := value.([]string); ok {
		fmt.Fprintln(a.Out, strings.Join(list, ","))
		return nil
	}
	fmt.Fprintln(a.Out, value)
	return nil
}

func (a *App) configSet(args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "insightdesk config set <key> <value>")
	}
	path, err := a.configFile()
	if err != nil {
		return err
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "insightdesk config keys")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return err
	}

	a.Logger.Debug("config updated", zap.String("key", key), zap.String("path", path))
	if args.JSON {
		updated, _ := cfg.Get(key)
		return writeJSON(a.Out, CmdConfig.String(), map[string]any{"key": key, "value": updated, "path": path}, nil)
	}
	fmt.Fprintf(a.Out, "%s %s updated in %s\n", SuccessStyle.Render("[OK]"), key, path)
	return nil
}

func (a *App) configKeys(args Args) error {
	keys := config.Keys()
	if args.JSON {
		return writeJSON(a.Out, CmdConfig.String(), keys, nil)
	}
	for _, key := range keys {
		fmt.Fprintln(a.Out, key)
	}
	return nil
}
