// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// budget_cmd.go - Document budget preview.
//
// Command: budget [draft]
// Short:   Show how many documents a draft would be sent with
//
// Examples:
//   insightdesk budget "Give me a quick summary of returns"
//   insightdesk budget --model gpt-4 --mode custom --limit 300 "Full analysis"
//   insightdesk budget --session 5f2c... "Follow-up question"
//
// Nothing is sent to the backend. With --session the transcript of that
// session counts against the context window.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/model"
)

func (a *App) runBudget(ctx context.Context, args Args) error {
	if args.Query == "" {
		return ErrMissingArgument("draft", `insightdesk budget "your question"`)
	}

	client, err := a.prepare(ctx, args, args.Session != "")
	if err != nil {
		return err
	}

	plan := client.Plan(args.Query)
	modelID := client.Settings().Model

	if args.JSON {
		return writeJSON(a.Out, CmdBudget.String(), BudgetData{
			Model:   modelID,
			Plan:    plan,
			Savings: plan.Savings(),
		}, nil)
	}

	printPlan(a.Out, modelID, plan)
	return nil
}

// printPlan writes the itemised plan.
func printPlan(w io.Writer, modelID string, plan budget.Plan) {
	name := modelID
	if info, ok := model.GetModelInfo(modelID); ok {
		name = info.Name
	}
	bd := plan.Breakdown

	fmt.Fprintln(w, TitleStyle.Render("Document Budget"))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Model"), ValueStyle.Render(name))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Sizing mode"), fmt.Sprintf("%s (%s)", plan.Mode, plan.Mode.Description()))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Query type"), plan.QueryType.DisplayName())
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Documents"), HighlightStyle.Render(formatNumber(plan.DocumentCount)))
	fmt.Fprintln(w)

	rows := []struct {
		label string
		value int
	}{
		{"System prompt", bd.SystemPrompt},
		{"Conversation", bd.Conversation},
		{"Message", bd.Message},
		{"Response reserve", bd.ResponseReserve},
		{"Documents", bd.Documents},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s %10s tokens\n", RenderLabel(row.label), formatNumber(row.value))
	}
	fmt.Fprintln(w, RenderSeparator(40))
	fmt.Fprintf(w, "%s %10s tokens\n", RenderLabel("Estimated total"), formatNumber(plan.EstimatedTokens))
	fmt.Fprintf(w, "%s %10s tokens (%.0f%% used)\n",
		RenderLabel("Context window"), formatNumber(bd.ContextWindow), plan.UsageRatio()*100)
	fmt.Fprintf(w, "%s %10s tokens per document\n", RenderLabel("Per document"), formatNumber(bd.PerDocument))
	if saved := plan.Savings(); saved > 0 {
		fmt.Fprintf(w, "%s %10s tokens\n", RenderLabel("Saved vs baseline"), formatNumber(saved))
	}

	switch {
	case plan.Overflow:
		fmt.Fprintln(w, WarningStyle.Render("Even the minimum document count exceeds the context window."))
	case plan.Reduced:
		fmt.Fprintln(w, WarningStyle.Render("Document count was reduced to fit the context window."))
	}
}
