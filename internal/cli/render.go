// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Answer, chart and research progress rendering.

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/research"
	"github.com/jeranaias/insightdesk/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdown renders assistant answers on a terminal. A nil renderer or a
// rendering failure falls back to the raw text.
type markdown struct {
	renderer *glamour.TermRenderer
}

func newMarkdown(width int) markdown {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(width, MaxRenderWidth)),
	)
	if err != nil {
		return markdown{}
	}
	return markdown{renderer: r}
}

func (m markdown) Render(content string) string {
	if m.renderer == nil {
		return ensureNewline(content)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return ensureNewline(content)
	}
	return out
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// =============================================================================
// CHARTS
// =============================================================================

// writeCharts lists the charts attached to an answer. Charts are not drawn
// in the terminal.
func writeCharts(w io.Writer, charts []chart.Chart) {
	for i, c := range charts {
		label := c.Type()
		if title := c.Title(); title != "" {
			label += ": " + title
		}
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render(fmt.Sprintf("[chart %d]", i+1)), label)
	}
}

// =============================================================================
// LIVE TEXT
// =============================================================================

// liveText writes the growth of an accumulated, marker-free text. When a
// chart marker completes the text can shrink; output then pauses until the
// text grows past what was already written.
type liveText struct {
	w       io.Writer
	written string
}

func (l *liveText) Update(text string) {
	if len(text) <= len(l.written) || !strings.HasPrefix(text, l.written) {
		return
	}
	io.WriteString(l.w, text[len(l.written):])
	l.written = text
}

// Finish writes whatever of final has not been written yet.
func (l *liveText) Finish(final string) {
	l.Update(final)
	if l.written != "" && !strings.HasSuffix(l.written, "\n") {
		io.WriteString(l.w, "\n")
	}
}

// =============================================================================
// RESEARCH STAGES
// =============================================================================

// stageView shows research progress. On a terminal it redraws one bar per
// stage; otherwise it prints a line whenever a stage changes status.
type stageView struct {
	w        io.Writer
	live     bool
	bar      progress.Model
	redraw   *redrawer
	last     []research.StageRecord
	started  time.Time
	finished bool
}

func newStageView(w io.Writer, live bool) *stageView {
	bar := progress.New(
		progress.WithWidth(30),
		progress.WithSolidFill("39"),
		progress.WithoutPercentage(),
		progress.WithColorProfile(GetColorProfile()),
	)
	v := &stageView{w: w, live: live, bar: bar, started: time.Now()}
	if live {
		v.redraw = newRedrawer(w)
	}
	return v
}

// Update renders a job snapshot.
func (v *stageView) Update(job research.Snapshot) {
	if v.live {
		lines := make([]string, 0, len(job.Stages))
		for _, rec := range job.Stages {
			lines = append(lines, v.line(rec))
		}
		v.redraw.Draw(lines)
		v.last = job.Stages
		return
	}

	for i, rec := range job.Stages {
		if i < len(v.last) && v.last[i].Status == rec.Status {
			continue
		}
		if i >= len(v.last) && rec.Status == research.StatusPending {
			continue
		}
		fmt.Fprintf(v.w, "%s %s%s\n", RenderStageStatus(rec.Status), rec.Stage.DisplayName(), stageDetail(rec))
	}
	v.last = job.Stages
}

// Done prints the elapsed time once.
func (v *stageView) Done() {
	if v.finished || v.last == nil {
		return
	}
	v.finished = true
	fmt.Fprintln(v.w, DimStyle.Render("research finished in "+formatDuration(time.Since(v.started))))
}

func (v *stageView) line(rec research.StageRecord) string {
	name := util.PadRight(rec.Stage.DisplayName(), 12)
	pct := fmt.Sprintf("%3.0f%%", rec.Progress*100)
	return fmt.Sprintf("%s %s %s %s%s",
		RenderStageStatus(rec.Status), name, v.bar.ViewAs(rec.Progress), pct, stageDetail(rec))
}

func stageDetail(rec research.StageRecord) string {
	var parts []string
	if rec.Objectives > 0 {
		parts = append(parts, fmt.Sprintf("%d objectives", rec.Objectives))
	}
	if rec.ResultsCount > 0 {
		parts = append(parts, fmt.Sprintf("%d results", rec.ResultsCount))
	}
	if len(parts) == 0 {
		return ""
	}
	return DimStyle.Render(" (" + strings.Join(parts, ", ") + ")")
}
