// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command.
//
// Command: ask [question]
// Short:   Ask a single question in the current topic
// Aliases: a
//
// Examples:
//   insightdesk ask "How did sentiment about pricing change this quarter?"
//   insightdesk ask --topic retail --mode focused "Summarise complaints"
//   insightdesk ask --json "Top three themes"
//
// The answer streams to stdout as it arrives. On a terminal it is collected
// and rendered as markdown instead. The plan summary goes to stderr.

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/chat"
)

// errTurnDiscarded is returned when a turn ends without a final event
// because its session was replaced.
var errTurnDiscarded = errors.New("answer discarded: the session changed")

func (a *App) runAsk(ctx context.Context, args Args) error {
	if args.Query == "" {
		return ErrMissingArgument("question", `insightdesk ask "your question"`)
	}

	client, err := a.prepare(ctx, args, true)
	if err != nil {
		return err
	}

	data, err := a.streamTurn(ctx, client, args.Query, args)
	if args.JSON {
		return writeJSON(a.Out, CmdAsk.String(), data, err)
	}
	return err
}

// streamTurn sends one chat turn and renders the answer.
func (a *App) streamTurn(ctx context.Context, client *assistant.Client, draft string, args Args) (AskData, error) {
	start := time.Now()

	events, plan, err := client.Chat(ctx, draft)
	if err != nil {
		return AskData{}, err
	}

	settings := client.Settings()
	data := AskData{
		Topic:         settings.Topic,
		Model:         settings.Model,
		Query:         draft,
		Plan:          plan,
		DocumentCount: plan.DocumentCount,
	}
	if sess := client.Active(); sess != nil {
		data.SessionID = sess.ID
	}
	a.status(args, "%s", plan.Summary())

	useMarkdown := a.TTY && !args.JSON
	live := &liveText{w: a.Out}

	var final *chat.Event
	for ev := range events {
		switch ev.Kind {
		case chat.EventDelta:
			data.Response, data.Charts = ev.Text, ev.Charts
			if !args.JSON && !useMarkdown {
				live.Update(ev.Text)
			}
		case chat.EventDone:
			data.Response, data.Charts = ev.Text, ev.Charts
			final = &ev
		case chat.EventError:
			final = &ev
		}
	}
	data.DurationMs = time.Since(start).Milliseconds()

	if !args.JSON {
		switch {
		case useMarkdown && data.Response != "":
			fmt.Fprint(a.Out, a.renderer().Render(data.Response))
		case !useMarkdown:
			live.Finish(data.Response)
		}
		writeCharts(a.Out, data.Charts)
	}

	switch {
	case final == nil:
		return data, errTurnDiscarded
	case final.Kind == chat.EventError:
		return data, final.Err
	}
	a.status(args, "answered in %s", formatDuration(time.Since(start)))
	return data, nil
}
