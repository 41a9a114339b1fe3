// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package research runs the four-stage deep research workflow.
//
// A job streams stage updates (planning, searching, synthesis, writing),
// report chunks and an optional final report. When the stream reports done,
// or simply ends, the accumulated report is added to the session as an
// assistant message.
package research

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/session"
	"github.com/jeranaias/insightdesk/internal/stream"
)

const eventBuffer = 64

var (
	// ErrBusy is returned when a research job is already in progress.
	ErrBusy = errors.New("a research job is already in progress")

	// ErrNoSession is returned when there is no active session.
	ErrNoSession = errors.New("no active session")

	// ErrNoTopic is returned when no topic is selected.
	ErrNoTopic = errors.New("no topic selected")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("research query is empty")
)

// JobError is an error reported by the backend inside the research stream.
type JobError struct {
	Stage   Stage
	Message string
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return "research failed during " + string(e.Stage) + ": " + e.Message
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventStage EventKind = iota
	EventReport
	EventComplete
	EventError
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventStage:
		return "stage"
	case EventReport:
		return "report"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one update of a research job.
type Event struct {
	Kind EventKind
	Job  Snapshot

	// Message is the report message (EventComplete) or the synthetic error
	// message (EventError), when one was recorded.
	Message model.Message

	Err error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Transport opens research streams. *backend.Client satisfies it.
type Transport interface {
	StreamResearch(ctx context.Context, req backend.ResearchRequest) (io.ReadCloser, error)
}

// Query is one research request.
type Query struct {
	Topic string
	Text  string
}

// Config holds the collaborators of a Controller.
type Config struct {
	Transport Transport
	State     *session.State

	// NewDecoder builds the frame decoder for each job. Defaults to a
	// blank-line framed decoder logging to Logger.
	NewDecoder func() *stream.Decoder

	Logger *zap.Logger
}

// Controller runs at most one research job at a time.
type Controller struct {
	transport  Transport
	sessions   *session.State
	newDecoder func() *stream.Decoder
	logger     *zap.Logger

	inProgress atomic.Bool

	mu      sync.Mutex
	current *Snapshot
}

// NewController creates a controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newDecoder := cfg.NewDecoder
	if newDecoder == nil {
		newDecoder = func() *stream.Decoder {
			return stream.NewDecoder(
				stream.WithSeparator(stream.EventSeparator),
				stream.WithLogger(logger))
		}
	}
	return &Controller{
		transport:  cfg.Transport,
		sessions:   cfg.State,
		newDecoder: newDecoder,
		logger:     logger.Named("research"),
	}
}

// InProgress reports whether a job is running.
func (c *Controller) InProgress() bool {
	return c.inProgress.Load()
}

// Current returns the snapshot of the running job, if any.
func (c *Controller) Current() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Snapshot{}, false
	}
	return *c.current, true
}

// Run starts a research job. The returned channel is closed when the job
// ends; the caller should drain it.
func (c *Controller) Run(ctx context.Context, q Query) (<-chan Event, error) {
	if c.InProgress() {
		return nil, ErrBusy
	}
	switch {
	case strings.TrimSpace(q.Topic) == "":
		return nil, ErrNoTopic
	case strings.TrimSpace(q.Text) == "":
		return nil, ErrEmptyQuery
	}
	if !c.inProgress.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	lease, err := c.sessions.Bind(ctx)
	if err != nil {
		c.inProgress.Store(false)
		return nil, ErrNoSession
	}
	if err := c.sessions.Append(lease, model.NewUserMessage(q.Text, c.sessions.Now())); err != nil {
		lease.Release()
		c.inProgress.Store(false)
		return nil, ErrNoSession
	}

	job := NewJob(lease.SessionID(), q.Topic, q.Text, c.sessions.Now())
	c.publish(job)

	out := make(chan Event, eventBuffer)
	go c.run(ctx, lease, job, out)
	return out, nil
}

func (c *Controller) publish(job *Job) {
	snap := job.Snapshot()
	c.mu.Lock()
	c.current = &snap
	c.mu.Unlock()
}

// =============================================================================
// JOB LOOP
// =============================================================================

type jobRun struct {
	c     *Controller
	ctx   context.Context
	lease *session.Lease
	job   *Job
	out   chan<- Event
}

func (c *Controller) run(ctx context.Context, lease *session.Lease, job *Job, out chan<- Event) {
	r := &jobRun{c: c, ctx: ctx, lease: lease, job: job, out: out}
	defer func() {
		lease.Release()
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		c.inProgress.Store(false)
		close(out)
	}()

	body, err := c.transport.StreamResearch(lease.Context(), backend.ResearchRequest{
		SessionID: lease.SessionID(),
		Query:     job.Query,
		Topic:     job.Topic,
	})
	if err != nil {
		r.fail(err)
		return
	}
	defer body.Close()

	reader := stream.NewReader(body, c.newDecoder())
	for {
		p, err := reader.Next(lease.Context())
		if errors.Is(err, io.EOF) {
			// Stream ended without done; a report that arrived still counts.
			r.complete(false)
			return
		}
		if err != nil {
			r.fail(err)
			return
		}
		if !r.apply(p) {
			return
		}
	}
}

// apply handles one frame and reports whether the job continues.
func (r *jobRun) apply(p stream.Payload) bool {
	if !r.lease.Valid() {
		r.discard(session.ErrStaleLease)
		return false
	}

	if p.Error.Set() {
		r.fail(&JobError{Stage: r.job.CurrentStage(), Message: p.Error.String()})
		return false
	}

	if p.Stage != "" {
		if stage, ok := ParseStage(p.Stage); ok {
			r.job.Apply(Update{
				Stage:        stage,
				Status:       ParseStatus(p.Status),
				Progress:     p.Progress,
				Objectives:   p.ObjectiveCount(),
				ResultsCount: p.ResultsCount,
			})
			r.emit(EventStage)
		} else {
			r.c.logger.Debug("ignoring unknown research stage", zap.String("stage", p.Stage))
		}
	}

	if text := p.ReportText(); text != "" {
		r.job.AppendReport(text)
		r.emit(EventReport)
	}
	if p.FinalReport != nil {
		r.job.ReplaceReport(*p.FinalReport)
		r.emit(EventReport)
	}

	if p.Done {
		r.complete(true)
		return false
	}
	return true
}

// complete ends the job and records the report as an assistant message.
func (r *jobRun) complete(done bool) {
	if done {
		r.job.CompleteAll()
	}
	r.c.publish(r.job)

	ev := Event{Kind: EventComplete, Job: r.job.Snapshot()}
	if report := r.job.Report(); strings.TrimSpace(report) != "" {
		res := chart.Extract(report)
		msg := model.NewMessage(model.RoleAssistant, res.Text, r.c.sessions.Now())
		msg.Charts = res.Charts
		if err := r.c.sessions.Append(r.lease, msg); err != nil {
			r.discard(err)
			return
		}
		ev.Message = msg
	}
	r.send(ev)
}

// fail marks the current stage as errored and surfaces the error.
func (r *jobRun) fail(err error) {
	if !r.lease.Valid() {
		r.discard(err)
		return
	}
	r.job.Fail()
	r.c.publish(r.job)

	ev := Event{Kind: EventError, Job: r.job.Snapshot(), Err: err}
	if r.ctx.Err() == nil {
		msg := model.NewErrorMessage(errorText(err), r.c.sessions.Now())
		if aerr := r.c.sessions.Append(r.lease, msg); aerr != nil {
			r.discard(aerr)
			return
		}
		ev.Message = msg
	} else {
		ev.Err = r.ctx.Err()
	}

	r.c.logger.Warn("research job failed",
		zap.String("job", r.job.ID),
		zap.String("stage", string(r.job.CurrentStage())),
		zap.Error(err))
	r.send(ev)
}

func (r *jobRun) discard(err error) {
	r.c.logger.Debug("discarding research stream",
		zap.String("job", r.job.ID),
		zap.Error(err))
}

func (r *jobRun) emit(kind EventKind) {
	r.c.publish(r.job)
	r.send(Event{Kind: kind, Job: r.job.Snapshot()})
}

func (r *jobRun) send(ev Event) {
	select {
	case r.out <- ev:
		return
	default:
	}
	select {
	case r.out <- ev:
	case <-r.ctx.Done():
	}
}

func errorText(err error) string {
	var je *JobError
	if errors.As(err, &je) {
		return je.Message
	}
	return err.Error()
}
