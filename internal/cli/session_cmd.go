// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Session management commands.
//
// Command: sessions [subcommand]
// Short:   List, view, export and delete the sessions of a topic
// Aliases: session
//
// Subcommands:
//   list (default)      List sessions, most recent first (aliases: ls, l)
//   show <id|#>         Print a session transcript
//   export <id|#>       Print a session transcript as markdown
//   delete <id|#>       Delete a session (aliases: rm)
//
// Examples:
//   insightdesk sessions --topic retail
//   insightdesk sessions show 2
//   insightdesk sessions export 5f2c... > notes.md
//   insightdesk sessions delete 3 --confirm
//
// Flags:
//   --confirm           Skip the confirmation prompt of delete
//   --json              Output in JSON format

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/util"
)

func (a *App) runSessions(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "yes", "y")

	sub := strings.ToLower(p.Subcommand())
	switch sub {
	case "", "list", "ls", "l":
		return a.sessionList(ctx, args)
	case "show", "view":
		return a.sessionShow(ctx, args, p.Positional(1), false)
	case "export":
		return a.sessionShow(ctx, args, p.Positional(1), true)
	case "delete", "rm":
		confirmed := p.BoolFlag("confirm") || p.BoolFlag("yes") || p.BoolFlag("y")
		return a.sessionDelete(ctx, args, p.Positional(1), confirmed)
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"must be list, show, export or delete"+didYouMean(sub, sessionSubcommands), "insightdesk sessions show 1")
	}
}

// =============================================================================
// SESSION LIST
// =============================================================================

func (a *App) sessionList(ctx context.Context, args Args) error {
	client, err := a.prepare(ctx, args, false)
	if err != nil {
		return err
	}
	infos, err := client.Sessions(ctx)
	if err != nil {
		return err
	}

	if args.JSON {
		list := make([]SessionData, 0, len(infos))
		for _, info := range infos {
			list = append(list, sessionData(info))
		}
		return writeJSON(a.Out, CmdSessions.String(), list, nil)
	}

	topic := client.Settings().Topic
	if len(infos) == 0 {
		fmt.Fprintf(a.Out, "No sessions for topic %s.\n", HighlightStyle.Render(topic))
		a.status(args, "Start one with: insightdesk chat --topic %s", topic)
		return nil
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("Sessions: "+topic))
	fmt.Fprintln(a.Out, RenderSeparator())
	printSessionTable(a.Out, infos, "", a.now())

	if !args.Quiet {
		fmt.Fprintln(a.Out)
		fmt.Fprintf(a.Out, "Total: %d session(s)\n", len(infos))
	}
	return nil
}

// printSessionTable writes one row per session. The row of activeID is
// marked.
func printSessionTable(w io.Writer, infos []backend.SessionInfo, activeID string, now time.Time) {
	fmt.Fprintf(w, "  %-4s %-28s %-10s %s\n", "#", "Title", "Updated", "ID")
	for i, info := range infos {
		title := info.Title
		if title == "" {
			title = "Untitled"
		}
		marker := "  "
		if info.ID == activeID {
			marker = HighlightStyle.Render("* ")
		}
		fmt.Fprintf(w, "%s%-4d %s %-10s %s\n",
			marker,
			i+1,
			util.PadRight(util.TruncateWidth(title, 28), 28),
			formatAge(info.LastActive(), now),
			DimStyle.Render(info.ID))
	}
}

func sessionData(info backend.SessionInfo) SessionData {
	return SessionData{
		ID:           info.ID,
		Topic:        info.Topic,
		Title:        info.Title,
		UpdatedAt:    info.LastActive(),
		MessageCount: info.MessageCount,
	}
}

// =============================================================================
// SESSION SHOW / EXPORT
// =============================================================================

func (a *App) sessionShow(ctx context.Context, args Args, ref string, asMarkdown bool) error {
	if ref == "" {
		return ErrMissingArgument("session", "insightdesk sessions show <id|#>")
	}
	client, err := a.prepare(ctx, args, false)
	if err != nil {
		return err
	}
	info, err := resolveSession(ctx, client, ref)
	if err != nil {
		return err
	}
	sess, err := client.SwitchSession(ctx, info.ID)
	if err != nil {
		return err
	}

	if args.JSON {
		data := TranscriptData{Session: sessionData(info), Messages: sess.Messages}
		data.Session.MessageCount = len(sess.Messages)
		return writeJSON(a.Out, CmdSessions.String(), data, nil)
	}
	if asMarkdown {
		fmt.Fprint(a.Out, transcriptMarkdown(sess))
		return nil
	}
	a.printTranscript(sess)
	return nil
}

// printTranscript writes every message of sess.
func (a *App) printTranscript(sess *model.Session) {
	fmt.Fprintln(a.Out, TitleStyle.Render(sess.DisplayTitle()))
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Session"), sess.ID)
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("Topic"), sess.Topic)
	fmt.Fprintf(a.Out, "%s %d\n", RenderLabel("Messages"), len(sess.Messages))
	fmt.Fprintln(a.Out, RenderSeparator())

	if len(sess.Messages) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("No messages yet."))
		return
	}
	for _, msg := range sess.Messages {
		a.printMessage(msg)
	}
}

func (a *App) printMessage(msg model.Message) {
	label := AssistantStyle.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleUser {
		label = UserStyle.Render(msg.Role.DisplayName())
	}
	if msg.Failed {
		label = ErrorStyle.Render(msg.Role.DisplayName())
	}
	fmt.Fprintln(a.Out, label)

	content := msg.DisplayContent()
	if a.TTY && msg.Role == model.RoleAssistant && !msg.Failed {
		fmt.Fprint(a.Out, a.renderer().Render(content))
	} else {
		fmt.Fprint(a.Out, ensureNewline(content))
	}
	writeCharts(a.Out, msg.Charts)
	fmt.Fprintln(a.Out)
}

// transcriptMarkdown formats a session as a markdown document.
func transcriptMarkdown(sess *model.Session) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", sess.DisplayTitle())
	fmt.Fprintf(&sb, "**Session ID:** %s  \n", sess.ID)
	fmt.Fprintf(&sb, "**Topic:** %s  \n", sess.Topic)
	fmt.Fprintf(&sb, "**Messages:** %d  \n", len(sess.Messages))
	sb.WriteString("\n---\n\n")

	for _, msg := range sess.Messages {
		fmt.Fprintf(&sb, "### %s\n\n", msg.Role.DisplayName())
		sb.WriteString(msg.DisplayContent())
		sb.WriteString("\n\n")
		for i, c := range msg.Charts {
			fmt.Fprintf(&sb, "*Chart %d: %s*\n\n", i+1, strings.TrimSpace(c.Type()+" "+c.Title()))
		}
	}
	return sb.String()
}

// =============================================================================
// SESSION DELETE
// =============================================================================

func (a *App) sessionDelete(ctx context.Context, args Args, ref string, confirmed bool) error {
	if ref == "" {
		return ErrMissingArgument("session", "insightdesk sessions delete <id|#> --confirm")
	}
	client, err := a.prepare(ctx, args, false)
	if err != nil {
		return err
	}
	info, err := resolveSession(ctx, client, ref)
	if err != nil {
		return err
	}

	if !confirmed {
		if !a.TTY || args.JSON {
			return NewValidationErrorWithExample("confirm", "",
				"deletion requires --confirm", "insightdesk sessions delete "+ref+" --confirm")
		}
		title := firstNonEmpty(info.Title, info.ID)
		if !promptConfirm(a.In, a.Err, fmt.Sprintf("Delete session %q?", title)) {
			fmt.Fprintln(a.Err, "Cancelled.")
			return nil
		}
	}

	if err := client.DeleteSession(ctx, info.ID); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(a.Out, CmdSessions.String(), map[string]any{
			"deleted":    true,
			"session_id": info.ID,
		}, nil)
	}
	fmt.Fprintf(a.Out, "%s Session deleted: %s\n", SuccessStyle.Render("[OK]"), info.ID)
	return nil
}

// resolveSession finds a session of the current topic by ID or by its
// 1-based position in the listing.
func resolveSession(ctx context.Context, client *assistant.Client, ref string) (backend.SessionInfo, error) {
	infos, err := client.Sessions(ctx)
	if err != nil {
		return backend.SessionInfo{}, err
	}
	for _, info := range infos {
		if info.ID == ref {
			return info, nil
		}
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 1 && idx <= len(infos) {
		return infos[idx-1], nil
	}
	return backend.SessionInfo{}, ErrNotFound("session", ref)
}
