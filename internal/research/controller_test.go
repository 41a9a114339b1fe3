// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/session"
)

type fakeTransport struct {
	mu    sync.Mutex
	body  string
	pipe  *io.PipeReader
	err   error
	calls []backend.ResearchRequest
}

func (f *fakeTransport) StreamResearch(ctx context.Context, req backend.ResearchRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.pipe != nil {
		p := f.pipe
		go func() {
			<-ctx.Done()
			p.CloseWithError(ctx.Err())
		}()
		return p, nil
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// frames joins data payloads into a blank-line framed body.
func frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

func newTestController(t *testing.T, tr Transport) (*Controller, *session.State) {
	t.Helper()
	st := session.NewState()
	st.Activate(model.NewSession("s1", "markets", "Markets"))
	return NewController(Config{Transport: tr, State: st}), st
}

func testQuery() Query {
	return Query{Topic: "markets", Text: "How did chip stocks move this quarter?"}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for research events")
		}
	}
}

func TestController_FullRun(t *testing.T) {
	tr := &fakeTransport{body: frames(
		`{"stage":"planning","status":"in_progress","objectives":["a","b","c"]}`,
		`{"stage":"searching","status":"in_progress","progress":0.5,"results_count":12}`,
		`{"stage":"writing","status":"in_progress"}`,
		`{"report_chunk":"# Chips\n"}`,
		`{"report_chunk":"Up CHART_DATA:{\"type\":\"bar\"}:END_CHART"}`,
		`{"done":true}`,
	)}
	c, st := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventComplete, last.Kind)
	for _, rec := range last.Job.Stages {
		assert.Equal(t, StatusComplete, rec.Status, rec.Stage)
	}
	assert.Equal(t, 3, last.Job.Stages[0].Objectives)
	assert.Equal(t, 12, last.Job.Stages[1].ResultsCount)

	msgs := st.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, testQuery().Text, msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "# Chips\nUp ", msgs[1].Content)
	assert.Len(t, msgs[1].Charts, 1)
	assert.Equal(t, msgs[1].ID, last.Message.ID)

	require.Equal(t, 1, tr.callCount())
	assert.Equal(t, "s1", tr.calls[0].SessionID)
	assert.Equal(t, "markets", tr.calls[0].Topic)
	assert.False(t, c.InProgress())
	_, running := c.Current()
	assert.False(t, running)
}

func TestController_StageEventsNeverRegress(t *testing.T) {
	tr := &fakeTransport{body: frames(
		`{"stage":"synthesis","status":"in_progress","progress":0.3}`,
		`{"stage":"planning","status":"in_progress","progress":0.1}`,
		`{"stage":"synthesis","status":"in_progress","progress":0.2}`,
		`{"done":true}`,
	)}
	c, _ := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	var prev []StageRecord
	for _, ev := range got {
		if prev != nil {
			for i := range ev.Job.Stages {
				assert.GreaterOrEqual(t, ev.Job.Stages[i].Status.rank(), prev[i].Status.rank())
				assert.GreaterOrEqual(t, ev.Job.Stages[i].Progress, prev[i].Progress)
			}
		}
		prev = ev.Job.Stages
	}

	first := got[0]
	assert.Equal(t, EventStage, first.Kind)
	assert.Equal(t, StatusComplete, first.Job.Stages[0].Status)
	assert.Equal(t, StatusComplete, first.Job.Stages[1].Status)
	assert.Equal(t, StageSynthesis, first.Job.Current)
}

func TestController_ReportWithoutDone(t *testing.T) {
	tr := &fakeTransport{body: frames(
		`{"stage":"writing","status":"in_progress"}`,
		`{"chunk":"Result "}`,
		`{"report_chunk":"A"}`,
	)}
	c, st := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, EventComplete, last.Kind)
	assert.Equal(t, "Result A", last.Job.Report)

	msgs := st.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "Result A", msgs[1].Content)
	// Without done the writing stage stays where the backend left it.
	assert.Equal(t, StatusInProgress, last.Job.Stages[3].Status)
}

func TestController_FinalReportReplacesChunks(t *testing.T) {
	tr := &fakeTransport{body: frames(
		`{"chunk":"draft text"}`,
		`{"final_report":"Final text"}`,
		`{"done":true}`,
	)}
	c, st := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, "Final text", st.Snapshot().Messages[1].Content)
}

func TestController_EmptyReportAddsNoMessage(t *testing.T) {
	c, st := newTestController(t, &fakeTransport{body: frames(`{"done":true}`)})

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 1)
	assert.Equal(t, EventComplete, got[0].Kind)
	assert.Empty(t, got[0].Message.ID)
	assert.Len(t, st.Snapshot().Messages, 1)
}

func TestController_ErrorFrame(t *testing.T) {
	tr := &fakeTransport{body: frames(
		`{"stage":"searching","status":"in_progress"}`,
		`{"error":{"message":"search provider unavailable"}}`,
		`{"report_chunk":"never"}`,
	)}
	c, st := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Kind)
	var je *JobError
	require.True(t, errors.As(last.Err, &je))
	assert.Equal(t, StageSearching, je.Stage)
	assert.Equal(t, "search provider unavailable", je.Message)

	assert.True(t, last.Job.Failed)
	assert.Equal(t, StatusError, last.Job.Stages[1].Status)
	assert.Empty(t, last.Job.Report)

	msgs := st.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Failed)
	assert.Equal(t, "Error: search provider unavailable", msgs[1].Content)
	assert.False(t, c.InProgress())
}

func TestController_TransportError(t *testing.T) {
	c, st := newTestController(t, &fakeTransport{err: errors.New("dial tcp: refused")})

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Kind)
	assert.Equal(t, StatusError, got[0].Job.Stages[0].Status)
	assert.Len(t, st.Snapshot().Messages, 2)
}

func TestController_Preconditions(t *testing.T) {
	tr := &fakeTransport{}
	c, st := newTestController(t, tr)

	_, err := c.Run(context.Background(), Query{Text: "q"})
	assert.ErrorIs(t, err, ErrNoTopic)
	_, err = c.Run(context.Background(), Query{Topic: "markets", Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	none := NewController(Config{Transport: tr, State: session.NewState()})
	_, err = none.Run(context.Background(), testQuery())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, none.InProgress())

	assert.Zero(t, tr.callCount())
	assert.Empty(t, st.Snapshot().Messages)
}

func TestController_OneJobAtATime(t *testing.T) {
	pr, pw := io.Pipe()
	tr := &fakeTransport{pipe: pr}
	c, _ := newTestController(t, tr)

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	pw.Write([]byte(frames(`{"stage":"planning","status":"in_progress"}`)))
	first := <-events
	assert.Equal(t, EventStage, first.Kind)
	assert.True(t, c.InProgress())

	snap, running := c.Current()
	require.True(t, running)
	assert.Equal(t, StatusInProgress, snap.Stages[0].Status)

	_, err = c.Run(context.Background(), testQuery())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, tr.callCount())

	pw.Write([]byte(frames(`{"done":true}`)))
	collect(t, events)
	assert.False(t, c.InProgress())
}

func TestController_SessionSwitchDiscardsJob(t *testing.T) {
	pr, pw := io.Pipe()
	c, st := newTestController(t, &fakeTransport{pipe: pr})

	events, err := c.Run(context.Background(), testQuery())
	require.NoError(t, err)
	pw.Write([]byte(frames(`{"report_chunk":"old"}`)))
	<-events

	st.Activate(model.NewSession("s2", "markets", "Other"))
	go pw.Write([]byte(frames(`{"report_chunk":" late"}`, `{"done":true}`)))

	for ev := range events {
		assert.NotEqual(t, EventComplete, ev.Kind)
	}
	assert.Empty(t, st.Snapshot().Messages)
	assert.False(t, c.InProgress())
}
