// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command.
//
// Command: chat
// Short:   Interactive chat in the current topic (default command)
// Aliases: repl
//
// Chat Commands:
//   /topic [name]        Show or select the topic
//   /sessions, /ls       List the sessions of the topic
//   /switch <id|#>       Continue another session
//   /new [title]         Start a new session
//   /delete <id|#>       Delete a session
//   /model [id]          Show or switch model
//   /mode [mode] [n]     Show or set document sizing
//   /research [on|off]   Route input to deep research
//   /budget [draft]      Show the document budget for a draft
//   /history             Show the transcript
//   /help, /h            Show commands
//   /quit, /q            Exit chat
//
// Ctrl+C cancels the answer in progress. Ctrl+C at the prompt or Ctrl+D
// exits.

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/chat"
	"github.com/jeranaias/insightdesk/internal/config"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/util"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// LineReader reads chat input. io.EOF or liner.ErrPromptAborted end the
// chat.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerInput provides history and line editing for interactive chat.
type linerInput struct {
	line        *liner.State
	historyFile string
}

// newLinerInput creates a line reader with history kept in the config
// directory.
func newLinerInput() *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &linerInput{line: line, historyFile: filepath.Join(dir, "chat_history")}

	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *linerInput) ReadLine(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (in *linerInput) Close() error {
	if in.historyFile != "" {
		var buf bytes.Buffer
		if _, err := in.line.WriteHistory(&buf); err == nil {
			util.WritePrivateFile(in.historyFile, buf.Bytes())
		}
	}
	return in.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession is the state of one interactive chat.
type chatSession struct {
	app     *App
	client  *assistant.Client
	args    Args
	started time.Time
	turns   int

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (a *App) runChat(ctx context.Context, args Args) error {
	if args.JSON {
		return NewValidationErrorWithExample("json", "",
			"is not supported by interactive chat", `insightdesk ask --json "question"`)
	}

	client, err := a.prepare(ctx, args, true)
	if err != nil {
		return err
	}

	input := a.Input
	if input == nil {
		input = newLinerInput()
	}
	defer input.Close()

	s := &chatSession{app: a, client: client, args: args, started: time.Now()}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		for range sigChan {
			if s.cancelTurn() {
				fmt.Fprintln(a.Err, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	s.watchConfig(watchCtx)

	if !args.Quiet {
		s.printWelcome()
	}
	return s.loop(ctx, input)
}

// watchConfig reloads the config file while the chat runs. A reload that
// fails keeps the current configuration.
func (s *chatSession) watchConfig(ctx context.Context) {
	path, err := s.app.configFile()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	err = config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			s.app.Logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		s.app.setConfig(cfg)
		s.app.Logger.Info("config reloaded", zap.String("path", path))
	})
	if err != nil {
		s.app.Logger.Debug("config watch unavailable", zap.Error(err))
	}
}

// loop reads and handles input until the user exits or ctx ends.
func (s *chatSession) loop(ctx context.Context, input LineReader) error {
	out := s.app.Out
	for {
		if ctx.Err() != nil {
			s.printExitSummary()
			return nil
		}

		line, err := input.ReadLine(s.prompt())
		if err != nil {
			fmt.Fprintln(out)
			s.printExitSummary()
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := s.handleSlash(ctx, line)
			if err != nil {
				s.printError(err)
			}
			if !keepGoing {
				s.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			s.printExitSummary()
			return nil
		}

		if err := s.submit(ctx, line); err != nil {
			s.printError(err)
		}
	}
}

// submit sends line as a chat turn, or as a research query in research
// mode. Cancelling the turn is not an error.
func (s *chatSession) submit(ctx context.Context, line string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer s.cancelTurn()

	fmt.Fprintln(s.app.Out)
	var err error
	if s.client.Settings().ResearchMode {
		_, err = s.app.streamResearch(turnCtx, s.client, line, s.args)
	} else {
		_, err = s.app.streamTurn(turnCtx, s.client, line, s.args)
	}
	fmt.Fprintln(s.app.Out)

	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	if err == nil {
		s.turns++
	}
	return err
}

func (s *chatSession) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// cancelTurn cancels the turn in flight and reports whether there was one.
func (s *chatSession) cancelTurn() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (s *chatSession) prompt() string {
	settings := s.client.Settings()
	label := settings.Topic
	if settings.ResearchMode {
		label += " [research]"
	}
	return PromptStyle.Render(label + "> ")
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlash runs a chat command and reports whether the chat continues.
func (s *chatSession) handleSlash(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	rest := parts[1:]
	out := s.app.Out

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/topic", "/t":
		if len(rest) == 0 {
			fmt.Fprintf(out, "Topic: %s\n", HighlightStyle.Render(s.client.Settings().Topic))
			return true, nil
		}
		sess, err := s.client.SelectTopic(ctx, strings.Join(rest, " "))
		if err != nil {
			return true, err
		}
		fmt.Fprintf(out, "Topic %s, session %s (%d messages)\n",
			HighlightStyle.Render(sess.Topic), sess.DisplayTitle(), len(sess.Messages))

	case "/sessions", "/ls":
		infos, err := s.client.Sessions(ctx)
		if err != nil {
			return true, err
		}
		if len(infos) == 0 {
			fmt.Fprintln(out, "No sessions yet.")
			return true, nil
		}
		activeID := ""
		if active := s.client.Active(); active != nil {
			activeID = active.ID
		}
		printSessionTable(out, infos, activeID, s.app.now())

	case "/switch", "/s":
		if len(rest) == 0 {
			return true, ErrMissingArgument("session", "/switch <id|#>")
		}
		info, err := resolveSession(ctx, s.client, rest[0])
		if err != nil {
			return true, err
		}
		sess, err := s.client.SwitchSession(ctx, info.ID)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(out, "Switched to %s (%d messages)\n", sess.DisplayTitle(), len(sess.Messages))
		if last, ok := sess.LastMessage(); ok {
			s.app.printMessage(last)
		}

	case "/new", "/n":
		sess, err := s.client.NewSession(ctx, strings.Join(rest, " "))
		if err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s New session %s\n", SuccessStyle.Render("[OK]"), DimStyle.Render(sess.ID))

	case "/delete", "/rm":
		if len(rest) == 0 {
			return true, ErrMissingArgument("session", "/delete <id|#>")
		}
		info, err := resolveSession(ctx, s.client, rest[0])
		if err != nil {
			return true, err
		}
		if err := s.client.DeleteSession(ctx, info.ID); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s Session deleted: %s\n", SuccessStyle.Render("[OK]"), info.ID)
		if s.client.Active() == nil {
			fmt.Fprintln(out, DimStyle.Render("No active session. Use /new or /switch."))
		}

	case "/model", "/m":
		return true, s.handleModel(ctx, rest)

	case "/mode":
		return true, s.handleMode(ctx, rest)

	case "/research", "/r":
		on := !s.client.Settings().ResearchMode
		if len(rest) > 0 {
			v, err := ParseBoolString(rest[0])
			if err != nil {
				return true, NewValidationErrorWithExample("research", rest[0], "must be on or off", "/research on")
			}
			on = v
		}
		if err := s.client.SetResearchMode(ctx, on); err != nil {
			return true, err
		}
		if on {
			fmt.Fprintln(out, "Research mode on: questions start deep research jobs.")
		} else {
			fmt.Fprintln(out, "Research mode off.")
		}

	case "/budget", "/b":
		printPlan(out, s.client.Settings().Model, s.client.Plan(strings.Join(rest, " ")))

	case "/history":
		sess := s.client.Active()
		if sess == nil {
			return true, chat.ErrNoSession
		}
		s.app.printTranscript(sess)

	default:
		if hint := didYouMean(command, slashCommands); hint != "" {
			return true, fmt.Errorf("unknown command: %s%s", command, hint)
		}
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (s *chatSession) handleModel(ctx context.Context, rest []string) error {
	out := s.app.Out
	if len(rest) == 0 {
		id := s.client.Settings().Model
		fmt.Fprintf(out, "Model: %s (%s context)\n",
			HighlightStyle.Render(id), formatNumber(model.ContextWindow(id)))
		return nil
	}
	if err := s.client.SetModel(ctx, rest[0]); err != nil {
		return err
	}
	if _, known := model.GetModelInfo(rest[0]); !known {
		s.app.warnf("unknown model %q, assuming a %d token context window", rest[0], model.DefaultContextWindow)
	}
	fmt.Fprintf(out, "Model set to %s\n", HighlightStyle.Render(rest[0]))
	return nil
}

func (s *chatSession) handleMode(ctx context.Context, rest []string) error {
	out := s.app.Out
	settings := s.client.Settings()
	if len(rest) == 0 {
		fmt.Fprintf(out, "Sizing: %s (%s)\n", HighlightStyle.Render(string(settings.SizingMode)), settings.SizingMode.Description())
		if settings.SizingMode == budget.ModeCustom {
			fmt.Fprintf(out, "Custom limit: %d documents\n", settings.CustomLimit)
		}
		return nil
	}

	mode := budget.Mode(strings.ToLower(rest[0]))
	limit := settings.CustomLimit
	if len(rest) > 1 {
		n, err := ParsePositiveInt(rest[1], "limit")
		if err != nil {
			return err
		}
		limit = n
	}
	if err := s.client.SetSizing(ctx, mode, limit); err != nil {
		return NewValidationErrorWithExample("mode", rest[0],
			"must be one of auto, balanced, comprehensive, focused, custom", "/mode custom 80")
	}
	fmt.Fprintf(out, "Sizing set to %s\n", HighlightStyle.Render(string(mode)))
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printError(err error) {
	fmt.Fprintf(s.app.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

func (s *chatSession) printWelcome() {
	out := s.app.Out
	settings := s.client.Settings()

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("insightdesk interactive chat"))
	fmt.Fprintln(out, RenderSeparator(30))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Topic:"), HighlightStyle.Render(settings.Topic))
	if sess := s.client.Active(); sess != nil {
		fmt.Fprintf(out, "%s %s (%d messages)\n", RenderLabel("Session:"), sess.DisplayTitle(), len(sess.Messages))
	}
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Model:"), HighlightStyle.Render(settings.Model))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Sizing:"), settings.SizingMode)
	if settings.ResearchMode {
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Research mode:"), WarningStyle.Render("on"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, DimStyle.Render("Type your question and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(out)
}

func (s *chatSession) printHelp() {
	out := s.app.Out
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(out, RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/topic [name]", "Show or select the topic"},
		{"/sessions, /ls", "List sessions of the topic"},
		{"/switch <id|#>", "Continue another session"},
		{"/new [title]", "Start a new session"},
		{"/delete <id|#>", "Delete a session"},
		{"/model [id]", "Show or switch model"},
		{"/mode [mode] [n]", "Show or set document sizing"},
		{"/research [on|off]", "Route questions to deep research"},
		{"/budget [draft]", "Show the document budget"},
		{"/history", "Show the transcript"},
		{"/help, /h", "Show this help"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(out, "  %s  %s\n", HighlightStyle.Render(fmt.Sprintf("%-20s", c.cmd)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, DimStyle.Render("Tip: Ctrl+C cancels the current answer, Ctrl+D exits"))
	fmt.Fprintln(out)
}

func (s *chatSession) printExitSummary() {
	out := s.app.Out
	if s.args.Quiet {
		return
	}
	if s.turns == 0 {
		fmt.Fprintln(out, DimStyle.Render("Goodbye!"))
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %d\n", RenderLabel("Questions:"), s.turns)
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Duration:"), time.Since(s.started).Round(time.Second))
	fmt.Fprintln(out, DimStyle.Render("Goodbye!"))
}
