// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Command dispatch.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/config"
	"github.com/jeranaias/insightdesk/internal/model"
)

// App runs commands against one configuration. All output goes through
// Out and Err, so commands can be exercised with buffers.
type App struct {
	Config *config.Config

	// ConfigPath is the file config commands read and write. Empty means
	// the default TOML path.
	ConfigPath string

	Logger *zap.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Input reads chat lines. Nil uses a liner prompt with history.
	Input LineReader

	// TTY enables markdown rendering and redrawn progress.
	TTY   bool
	Width int

	// Connect builds the assistant client. It is called once, on the first
	// command that needs the backend.
	Connect func(ctx context.Context) (*assistant.Client, error)

	Now func() time.Time

	client *assistant.Client
	md     *markdown
	cfgMu  sync.RWMutex
}

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	if args.Err != nil {
		return args.Err
	}
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	case CmdVersion:
		return a.runVersion(args)
	case CmdModels:
		return a.runModels(ctx, args)
	case CmdConfig:
		return a.runConfig(args)
	case CmdAsk:
		return a.runAsk(ctx, args)
	case CmdResearch:
		return a.runResearch(ctx, args)
	case CmdSessions:
		return a.runSessions(ctx, args)
	case CmdBudget:
		return a.runBudget(ctx, args)
	case CmdChat:
		return a.runChat(ctx, args)
	default:
		PrintUsage(a.Err)
		return NewValidationError("command", cmd.String(), "unknown command")
	}
}

// connect returns the assistant client, creating it on first use.
func (a *App) connect(ctx context.Context) (*assistant.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.Connect == nil {
		return nil, errors.New("no backend connection configured")
	}
	client, err := a.Connect(ctx)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// prepare connects and applies the setting flags. With needSession, it
// also selects the topic and a session: --new creates one, --session
// continues the named one, otherwise the most recent one is used.
func (a *App) prepare(ctx context.Context, args Args, needSession bool) (*assistant.Client, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	if args.Model != "" {
		if err := client.SetModel(ctx, args.Model); err != nil {
			return nil, err
		}
		if _, known := model.GetModelInfo(args.Model); !known && !args.Quiet && !args.JSON {
			a.warnf("unknown model %q, assuming a %d token context window", args.Model, model.DefaultContextWindow)
		}
	}
	if args.Mode != "" || args.Limit > 0 {
		mode := budget.Mode(args.Mode)
		if mode == "" {
			mode = budget.ModeCustom
		}
		limit := args.Limit
		if limit == 0 {
			limit = client.Settings().CustomLimit
		}
		if err := client.SetSizing(ctx, mode, limit); err != nil {
			return nil, NewValidationErrorWithExample("mode", args.Mode,
				"must be one of auto, balanced, comprehensive, focused, custom", "--mode focused")
		}
	}

	topic := firstNonEmpty(args.Topic, client.Settings().Topic, a.config().Chat.DefaultTopic)
	if topic == "" {
		return nil, ErrMissingArgument("topic", "--topic NAME")
	}
	if err := client.SetTopic(ctx, topic); err != nil {
		return nil, err
	}
	if !needSession {
		return client, nil
	}

	switch {
	case args.NewSession:
		_, err = client.NewSession(ctx, "")
	case args.Session != "":
		_, err = client.SwitchSession(ctx, args.Session)
	default:
		_, err = client.SelectTopic(ctx, topic)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// config returns the current configuration. Chat swaps it when the file
// changes.
func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.Config
}

func (a *App) setConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	a.Config = cfg
	a.cfgMu.Unlock()
}

func (a *App) renderer() markdown {
	if a.md == nil {
		width := a.Width
		if width <= 0 {
			width = DefaultTerminalWidth
		}
		m := newMarkdown(width)
		a.md = &m
	}
	return *a.md
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) warnf(format string, v ...any) {
	fmt.Fprintf(a.Err, "%s %s\n", WarningStyle.Render("[WARN]"), fmt.Sprintf(format, v...))
}

// status writes a progress line to Err unless output is quiet or JSON.
func (a *App) status(args Args, format string, v ...any) {
	if args.Quiet || args.JSON {
		return
	}
	fmt.Fprintln(a.Err, DimStyle.Render(fmt.Sprintf(format, v...)))
}
