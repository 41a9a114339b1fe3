// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// research_cmd.go - Deep research command.
//
// Command: research [query]
// Short:   Run a multi-stage research job and print the report
// Aliases: r
//
// Examples:
//   insightdesk research "Why did churn rise in March?"
//   insightdesk research --new --topic telecom "Compare carrier NPS"
//
// Stage progress goes to stderr: redrawn bars on a terminal, one line per
// status change otherwise. The report goes to stdout.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/research"
)

func (a *App) runResearch(ctx context.Context, args Args) error {
	if args.Query == "" {
		return ErrMissingArgument("query", `insightdesk research "your question"`)
	}

	client, err := a.prepare(ctx, args, true)
	if err != nil {
		return err
	}

	data, err := a.streamResearch(ctx, client, args.Query, args)
	if args.JSON {
		return writeJSON(a.Out, CmdResearch.String(), data, err)
	}
	return err
}

// streamResearch runs one research job and renders its progress and report.
func (a *App) streamResearch(ctx context.Context, client *assistant.Client, query string, args Args) (ResearchData, error) {
	start := time.Now()

	events, err := client.Research(ctx, query)
	if err != nil {
		return ResearchData{}, err
	}

	data := ResearchData{Topic: client.Settings().Topic, Query: query}
	if sess := client.Active(); sess != nil {
		data.SessionID = sess.ID
	}

	var view *stageView
	if !args.Quiet && !args.JSON {
		view = newStageView(a.Err, a.TTY)
	}

	var final *research.Event
	for ev := range events {
		data.Stages = ev.Job.Stages
		if view != nil && ev.Kind != research.EventReport {
			view.Update(ev.Job)
		}
		switch ev.Kind {
		case research.EventComplete:
			data.Report, data.Charts = ev.Message.Content, ev.Message.Charts
			if data.Report == "" {
				res := chart.Extract(ev.Job.Report)
				data.Report, data.Charts = res.Text, res.Charts
			}
			final = &ev
		case research.EventError:
			final = &ev
		}
	}
	data.DurationMs = time.Since(start).Milliseconds()
	if view != nil {
		view.Done()
	}

	if !args.JSON {
		a.printReport(data.Report, data.Charts)
	}

	switch {
	case final == nil:
		return data, errTurnDiscarded
	case final.Kind == research.EventError:
		return data, final.Err
	}
	return data, nil
}

// printReport writes a research report, rendered as markdown on a terminal.
func (a *App) printReport(report string, charts []chart.Chart) {
	if strings.TrimSpace(report) == "" {
		return
	}
	if a.TTY {
		fmt.Fprint(a.Out, a.renderer().Render(report))
	} else {
		fmt.Fprint(a.Out, ensureNewline(report))
	}
	writeCharts(a.Out, charts)
}
