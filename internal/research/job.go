// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STAGES
// =============================================================================

// Stage is one step of the research pipeline.
type Stage string

const (
	StagePlanning  Stage = "planning"
	StageSearching Stage = "searching"
	StageSynthesis Stage = "synthesis"
	StageWriting   Stage = "writing"
)

// AllStages returns the stages in pipeline order.
func AllStages() []Stage {
	return []Stage{StagePlanning, StageSearching, StageSynthesis, StageWriting}
}

// stageAliases maps backend spellings to stages.
var stageAliases = map[string]Stage{
	"planning":     StagePlanning,
	"plan":         StagePlanning,
	"searching":    StageSearching,
	"search":       StageSearching,
	"synthesis":    StageSynthesis,
	"synthesizing": StageSynthesis,
	"synthesize":   StageSynthesis,
	"writing":      StageWriting,
	"write":        StageWriting,
	"report":       StageWriting,
}

// ParseStage maps a backend stage name to a Stage.
func ParseStage(name string) (Stage, bool) {
	s, ok := stageAliases[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Index returns the position of the stage in the pipeline, or -1.
func (s Stage) Index() int {
	for i, st := range AllStages() {
		if st == s {
			return i
		}
	}
	return -1
}

// DisplayName returns a human-readable stage label.
func (s Stage) DisplayName() string {
	switch s {
	case StagePlanning:
		return "Planning"
	case StageSearching:
		return "Searching"
	case StageSynthesis:
		return "Synthesizing"
	case StageWriting:
		return "Writing report"
	default:
		return string(s)
	}
}

// =============================================================================
// STAGE STATUS
// =============================================================================

// Status is the lifecycle of one stage.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusComplete
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// rank orders statuses for the monotonic transition rule. Complete and
// error are both terminal.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	default:
		return 2
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s.rank() == 2
}

// ParseStatus maps a backend status word. Unknown words mean the stage is
// running.
func ParseStatus(word string) Status {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "complete", "completed", "done", "finished", "success":
		return StatusComplete
	case "error", "failed", "failure":
		return StatusError
	default:
		return StatusInProgress
	}
}

// =============================================================================
// STAGE RECORD
// =============================================================================

// StageRecord is the progress of one stage.
type StageRecord struct {
	Stage        Stage   `json:"stage"`
	Status       Status  `json:"status"`
	Progress     float64 `json:"progress"`
	Objectives   int     `json:"objectives,omitempty"`
	ResultsCount int     `json:"results_count,omitempty"`
}

// setStatus applies a transition if it respects the monotonic order.
func (r *StageRecord) setStatus(s Status) bool {
	if r.Status == s {
		return false
	}
	if s.rank() <= r.Status.rank() {
		return false
	}
	r.Status = s
	if s == StatusComplete {
		r.Progress = 1
	}
	return true
}

// setProgress raises progress, clamped to [0,1]. Progress never decreases.
func (r *StageRecord) setProgress(p float64) {
	if r.Status.Terminal() {
		return
	}
	p = min(max(p, 0), 1)
	if p > r.Progress {
		r.Progress = p
	}
}

// =============================================================================
// JOB
// =============================================================================

// Job is one research run. It is owned by the controller goroutine; readers
// get a Snapshot.
type Job struct {
	ID        string
	SessionID string
	Topic     string
	Query     string
	StartedAt time.Time

	stages [4]StageRecord
	report strings.Builder
	failed bool
}

// NewJob creates a job with every stage pending.
func NewJob(sessionID, topic, query string, at time.Time) *Job {
	j := &Job{
		ID:        "job_" + uuid.NewString(),
		SessionID: sessionID,
		Topic:     topic,
		Query:     query,
		StartedAt: at,
	}
	for i, s := range AllStages() {
		j.stages[i] = StageRecord{Stage: s, Status: StatusPending}
	}
	return j
}

// Update is one stage frame applied to a job.
type Update struct {
	Stage        Stage
	Status       Status
	Progress     *float64
	Objectives   int
	ResultsCount *int
}

// Apply records a stage update. Every stage before the named one is forced
// to complete; applying the same update twice has no further effect.
func (j *Job) Apply(u Update) {
	idx := u.Stage.Index()
	if idx < 0 {
		return
	}
	for i := 0; i < idx; i++ {
		j.stages[i].setStatus(StatusComplete)
	}

	rec := &j.stages[idx]
	if u.Progress != nil {
		rec.setProgress(*u.Progress)
	}
	rec.setStatus(u.Status)
	if u.Objectives > 0 {
		rec.Objectives = u.Objectives
	}
	if u.ResultsCount != nil && *u.ResultsCount >= 0 {
		rec.ResultsCount = *u.ResultsCount
	}
}

// CurrentStage returns the first stage that is not complete, or the last
// stage when all are.
func (j *Job) CurrentStage() Stage {
	for _, rec := range j.stages {
		if rec.Status != StatusComplete {
			return rec.Stage
		}
	}
	return StageWriting
}

// Fail marks the current stage as errored.
func (j *Job) Fail() {
	idx := j.CurrentStage().Index()
	j.stages[idx].setStatus(StatusError)
	j.failed = true
}

// CompleteAll marks every remaining stage complete.
func (j *Job) CompleteAll() {
	for i := range j.stages {
		j.stages[i].setStatus(StatusComplete)
	}
}

// AppendReport adds a report chunk.
func (j *Job) AppendReport(chunk string) {
	j.report.WriteString(chunk)
}

// ReplaceReport replaces the report with the final artifact.
func (j *Job) ReplaceReport(report string) {
	j.report.Reset()
	j.report.WriteString(report)
}

// Report returns the accumulated report.
func (j *Job) Report() string {
	return j.report.String()
}

// Failed reports whether the job ended with an error.
func (j *Job) Failed() bool {
	return j.failed
}

// Stages returns a copy of the stage records in pipeline order.
func (j *Job) Stages() []StageRecord {
	out := make([]StageRecord, len(j.stages))
	copy(out, j.stages[:])
	return out
}

// Stage returns the record of one stage.
func (j *Job) Stage(s Stage) (StageRecord, bool) {
	idx := s.Index()
	if idx < 0 {
		return StageRecord{}, false
	}
	return j.stages[idx], true
}

// Snapshot is a read-only copy of a job for renderers.
type Snapshot struct {
	ID      string
	Query   string
	Stages  []StageRecord
	Current Stage
	Report  string
	Failed  bool
}

// Snapshot returns a copy of the job state.
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:      j.ID,
		Query:   j.Query,
		Stages:  j.Stages(),
		Current: j.CurrentStage(),
		Report:  j.Report(),
		Failed:  j.failed,
	}
}

// OverallProgress returns the average progress over all stages.
func (s Snapshot) OverallProgress() float64 {
	if len(s.Stages) == 0 {
		return 0
	}
	total := 0.0
	for _, rec := range s.Stages {
		total += rec.Progress
	}
	return total / float64(len(s.Stages))
}
