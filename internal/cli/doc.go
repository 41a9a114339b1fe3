// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for insightdesk.
//
// Every command runs through an App, which owns the output writers, the
// loaded configuration and a lazily connected assistant client. Commands
// return errors; the caller displays them and maps them to exit codes.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global flags and command arguments
//   - App: Command dispatcher bound to one configuration
//   - JSONResponse: Envelope of every --json result
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	app := &cli.App{Config: cfg, Out: os.Stdout, Err: os.Stderr, Connect: connect}
//	if err := app.Run(ctx, cmd, args); err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands Overview
//
//   - chat: Interactive chat with slash commands (default)
//   - ask: Single question, streamed to stdout
//   - research: Multi-stage research job with a final report
//   - sessions: List, show, export and delete sessions
//   - budget: Document budget preview for a draft
//   - models: Known models and context windows
//   - config: Configuration management
//
// All commands except chat support --json.
package cli
