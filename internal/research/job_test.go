// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func statuses(j *Job) []Status {
	var out []Status
	for _, rec := range j.Stages() {
		out = append(out, rec.Status)
	}
	return out
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in   string
		want Stage
		ok   bool
	}{
		{"planning", StagePlanning, true},
		{"Search", StageSearching, true},
		{" synthesizing ", StageSynthesis, true},
		{"writing", StageWriting, true},
		{"report", StageWriting, true},
		{"reviewing", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStage(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusInProgress, ParseStatus("started"))
	assert.Equal(t, StatusInProgress, ParseStatus("whatever"))
	assert.Equal(t, StatusComplete, ParseStatus("Completed"))
	assert.Equal(t, StatusError, ParseStatus("failed"))
}

func TestJob_ForceCompletesEarlierStages(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())
	assert.Equal(t, []Status{StatusPending, StatusPending, StatusPending, StatusPending}, statuses(j))

	j.Apply(Update{Stage: StageSynthesis, Status: StatusInProgress, Progress: ptr(0.4)})

	assert.Equal(t, []Status{StatusComplete, StatusComplete, StatusInProgress, StatusPending}, statuses(j))
	for _, rec := range j.Stages()[:2] {
		assert.Equal(t, 1.0, rec.Progress)
	}
	assert.Equal(t, StageSynthesis, j.CurrentStage())

	// Applying the same update again changes nothing.
	before := j.Stages()
	j.Apply(Update{Stage: StageSynthesis, Status: StatusInProgress, Progress: ptr(0.4)})
	assert.Equal(t, before, j.Stages())
}

func TestJob_StatusMonotonic(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())

	j.Apply(Update{Stage: StagePlanning, Status: StatusComplete})
	j.Apply(Update{Stage: StagePlanning, Status: StatusInProgress, Progress: ptr(0.1)})

	rec, ok := j.Stage(StagePlanning)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, rec.Status, "complete must never return to in-progress")
	assert.Equal(t, 1.0, rec.Progress)

	// Every sequence of updates keeps each stage's status rank non-decreasing.
	sequence := []Update{
		{Stage: StageSearching, Status: StatusInProgress},
		{Stage: StagePlanning, Status: StatusInProgress},
		{Stage: StageWriting, Status: StatusInProgress},
		{Stage: StageSearching, Status: StatusInProgress},
		{Stage: StageSynthesis, Status: StatusComplete},
	}
	prev := statuses(j)
	for _, u := range sequence {
		j.Apply(u)
		cur := statuses(j)
		for i := range cur {
			assert.GreaterOrEqual(t, cur[i].rank(), prev[i].rank(), "stage %d regressed after %+v", i, u)
		}
		prev = cur
	}
	assert.Equal(t, []Status{StatusComplete, StatusComplete, StatusComplete, StatusInProgress}, prev)
}

func TestJob_ProgressClampedAndNonDecreasing(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())

	j.Apply(Update{Stage: StagePlanning, Status: StatusInProgress, Progress: ptr(0.6)})
	j.Apply(Update{Stage: StagePlanning, Status: StatusInProgress, Progress: ptr(0.2)})
	rec, _ := j.Stage(StagePlanning)
	assert.Equal(t, 0.6, rec.Progress)

	j.Apply(Update{Stage: StagePlanning, Status: StatusInProgress, Progress: ptr(7.0)})
	rec, _ = j.Stage(StagePlanning)
	assert.Equal(t, 1.0, rec.Progress)

	j.Apply(Update{Stage: StageSearching, Status: StatusInProgress, Progress: ptr(-3.0)})
	rec, _ = j.Stage(StageSearching)
	assert.Equal(t, 0.0, rec.Progress)
}

func TestJob_AuxiliaryFields(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())
	j.Apply(Update{Stage: StagePlanning, Status: StatusInProgress, Objectives: 3})
	j.Apply(Update{Stage: StageSearching, Status: StatusInProgress, ResultsCount: ptr(42)})

	plan, _ := j.Stage(StagePlanning)
	search, _ := j.Stage(StageSearching)
	assert.Equal(t, 3, plan.Objectives)
	assert.Equal(t, 42, search.ResultsCount)
}

func TestJob_FailMarksCurrentStage(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())
	j.Apply(Update{Stage: StageSearching, Status: StatusInProgress})
	j.Fail()

	assert.True(t, j.Failed())
	assert.Equal(t, []Status{StatusComplete, StatusError, StatusPending, StatusPending}, statuses(j))

	// An errored stage is terminal too.
	j.Apply(Update{Stage: StageSearching, Status: StatusComplete})
	rec, _ := j.Stage(StageSearching)
	assert.Equal(t, StatusError, rec.Status)
}

func TestJob_Report(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())
	j.AppendReport("Result ")
	j.AppendReport("A")
	assert.Equal(t, "Result A", j.Report())

	j.ReplaceReport("# Final")
	assert.Equal(t, "# Final", j.Report())

	snap := j.Snapshot()
	assert.Equal(t, "# Final", snap.Report)
	assert.Len(t, snap.Stages, 4)
}

func TestSnapshot_OverallProgress(t *testing.T) {
	j := NewJob("s1", "t", "q", time.Now())
	j.Apply(Update{Stage: StageSearching, Status: StatusInProgress, Progress: ptr(0.5)})
	// planning complete (1.0) + searching 0.5 over four stages
	assert.InDelta(t, 0.375, j.Snapshot().OverallProgress(), 1e-9)
	assert.Zero(t, Snapshot{}.OverallProgress())
}
