// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models_cmd.go - Model listing and version commands.

package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/util"
)

// runModels lists the known models. The current model is the remembered
// one when a backend client is available, the configured default otherwise.
func (a *App) runModels(ctx context.Context, args Args) error {
	current := firstNonEmpty(args.Model, a.config().Chat.DefaultModel)
	if args.Model == "" && a.Connect != nil {
		if client, err := a.connect(ctx); err == nil {
			current = firstNonEmpty(client.Settings().Model, current)
		}
	}

	ids := model.ModelIDs()
	if args.JSON {
		list := make([]ModelData, 0, len(ids))
		for _, id := range ids {
			info, _ := model.GetModelInfo(id)
			list = append(list, ModelData{
				ID:            info.ID,
				Name:          info.Name,
				Provider:      info.Provider,
				ContextWindow: info.ContextWindow,
				Current:       info.ID == current,
			})
		}
		return writeJSON(a.Out, CmdModels.String(), list, nil)
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("Models"))
	fmt.Fprintln(a.Out, RenderSeparator())
	for _, id := range ids {
		info, _ := model.GetModelInfo(id)
		marker := "  "
		if info.ID == current {
			marker = HighlightStyle.Render("* ")
		}
		fmt.Fprintf(a.Out, "%s%s %s %s\n",
			marker,
			util.PadRight(info.ID, 20),
			util.PadRight(info.ContextString(), 14),
			DimStyle.Render(info.Description))
	}
	if _, known := model.GetModelInfo(current); !known && current != "" && !args.Quiet {
		fmt.Fprintf(a.Out, "\n%s %s (unknown, %s token window assumed)\n",
			HighlightStyle.Render("*"), current, formatNumber(model.DefaultContextWindow))
	}
	return nil
}

func (a *App) runVersion(args Args) error {
	if args.JSON {
		return writeJSON(a.Out, CmdVersion.String(), VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}, nil)
	}
	PrintVersion(a.Out)
	fmt.Fprintf(a.Out, "  Go version: %s\n", runtime.Version())
	return nil
}
