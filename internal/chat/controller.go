// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs one streamed chat turn at a time against the backend.
//
// A turn moves Idle -> Sending -> Streaming -> Done or Error, and always
// returns to Idle when its event channel closes.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/session"
	"github.com/jeranaias/insightdesk/internal/stream"
)

// eventBuffer is the capacity of a turn's event channel.
const eventBuffer = 64

// Transport opens chat streams. *backend.Client satisfies it.
type Transport interface {
	StreamChat(ctx context.Context, req backend.ChatRequest) (io.ReadCloser, error)
}

// Request is one user turn.
type Request struct {
	Topic         string
	Model         string
	Draft         string
	DocumentCount int
	Tools         backend.Capabilities
}

// Config holds the collaborators of a Controller.
type Config struct {
	Transport Transport
	State     *session.State

	// NewDecoder builds the frame decoder for each turn. Defaults to a
	// line-framed decoder logging to Logger.
	NewDecoder func() *stream.Decoder

	Logger *zap.Logger
}

// Controller owns the chat turn of one session state.
type Controller struct {
	transport  Transport
	sessions   *session.State
	newDecoder func() *stream.Decoder
	logger     *zap.Logger

	state atomic.Int32
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
				stream.WithSeparator(stream.LineSeparator),
				stream.WithLogger(logger))
		}
	}
	return &Controller{
		transport:  cfg.Transport,
		sessions:   cfg.State,
		newDecoder: newDecoder,
		logger:     logger.Named("chat"),
	}
}

// State returns the current turn state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

// Send starts a turn. The returned channel delivers the turn's events and is
// closed when the turn is over; the caller should drain it. Send refuses to
// start while another turn is in flight and when a precondition is unmet; in
// that case nothing is sent to the backend and the transcript is unchanged.
func (c *Controller) Send(ctx context.Context, req Request) (<-chan Event, error) {
	if c.Busy() {
		return nil, ErrBusy
	}
	switch {
	case strings.TrimSpace(req.Topic) == "":
		return nil, ErrNoTopic
	case strings.TrimSpace(req.Model) == "":
		return nil, ErrNoModel
	case strings.TrimSpace(req.Draft) == "":
		return nil, ErrEmptyMessage
	}

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateSending)) {
		return nil, ErrBusy
	}

	lease, err := c.sessions.Bind(ctx)
	if err != nil {
		c.state.Store(int32(StateIdle))
		return nil, ErrNoSession
	}

	if err := c.sessions.Append(lease, model.NewUserMessage(req.Draft, c.sessions.Now())); err != nil {
		lease.Release()
		c.state.Store(int32(StateIdle))
		return nil, ErrNoSession
	}

	out := make(chan Event, eventBuffer)
	go c.run(ctx, lease, req, out)
	return out, nil
}

// =============================================================================
// TURN LOOP
// =============================================================================

// turn carries the mutable state of one running turn.
type turn struct {
	c     *Controller
	ctx   context.Context
	lease *session.Lease
	out   chan<- Event

	msgID string
}

func (c *Controller) run(ctx context.Context, lease *session.Lease, req Request, out chan<- Event) {
	t := &turn{c: c, ctx: ctx, lease: lease, out: out}
	defer func() {
		lease.Release()
		c.state.Store(int32(StateIdle))
		close(out)
	}()

	body, err := c.transport.StreamChat(lease.Context(), backend.ChatRequest{
		SessionID:   lease.SessionID(),
		Message:     req.Draft,
		Model:       req.Model,
		MaxArticles: req.DocumentCount,
		Tools:       req.Tools,
	})
	if err != nil {
		t.fail(err)
		return
	}
	defer body.Close()

	c.state.Store(int32(StateStreaming))
	reader := stream.NewReader(body, c.newDecoder())

	for {
		p, err := reader.Next(lease.Context())
		if errors.Is(err, io.EOF) {
			// Stream ended without done; keep what arrived.
			t.finish()
			return
		}
		if err != nil {
			t.fail(err)
			return
		}

		if !t.apply(p) {
			return
		}
	}
}

// apply handles one frame and reports whether the turn continues.
func (t *turn) apply(p stream.Payload) bool {
	if p.Content != "" {
		if !t.appendContent(p.Content) {
			return false
		}
	}
	if p.Error.Set() {
		t.fail(&TurnError{Message: p.Error.String()})
		return false
	}
	if p.Done {
		t.finish()
		return false
	}
	return true
}

// appendContent adds a delta, creating the assistant message on first use.
func (t *turn) appendContent(delta string) bool {
	if t.msgID == "" {
		id, err := t.c.sessions.BeginAssistant(t.lease)
		if err != nil {
			t.discard(err)
			return false
		}
		t.msgID = id
	}

	text, err := t.c.sessions.AppendContent(t.lease, t.msgID, delta)
	if err != nil {
		t.discard(err)
		return false
	}

	res := chart.Extract(text)
	t.emit(Event{
		Kind:      EventDelta,
		MessageID: t.msgID,
		Delta:     delta,
		Text:      chart.Settled(res.Text),
		Charts:    res.Charts,
	})
	return true
}

// finish finalises the assistant message and ends the turn successfully.
func (t *turn) finish() {
	t.c.state.Store(int32(StateDone))

	ev := Event{Kind: EventDone, MessageID: t.msgID}
	if t.msgID != "" {
		msg, err := t.c.sessions.Finalize(t.lease, t.msgID)
		if err != nil {
			t.discard(err)
			return
		}
		ev.Message = msg
		ev.Text = msg.Content
		ev.Charts = msg.Charts
	}
	t.emit(ev)
}

// fail ends the turn with an error. Partial content is kept and the error is
// recorded as a synthetic assistant message, except for caller cancellation.
func (t *turn) fail(err error) {
	if !t.lease.Valid() {
		t.discard(err)
		return
	}
	t.c.state.Store(int32(StateError))

	if t.msgID != "" {
		if _, ferr := t.c.sessions.Finalize(t.lease, t.msgID); ferr != nil {
			t.discard(ferr)
			return
		}
	}

	ev := Event{Kind: EventError, MessageID: t.msgID, Err: err}
	if t.ctx.Err() == nil {
		msg := model.NewErrorMessage(errorText(err), t.c.sessions.Now())
		if aerr := t.c.sessions.Append(t.lease, msg); aerr != nil {
			t.discard(aerr)
			return
		}
		ev.Message = msg
	} else {
		ev.Err = t.ctx.Err()
	}

	t.c.logger.Warn("chat turn failed",
		zap.String("session", t.lease.SessionID()),
		zap.Error(err))
	t.emit(ev)
}

// discard drops the rest of a turn whose session is no longer active.
func (t *turn) discard(err error) {
	t.c.logger.Debug("discarding chat stream",
		zap.String("session", t.lease.SessionID()),
		zap.Error(err))
}

// emit delivers ev unless the caller has gone away.
func (t *turn) emit(ev Event) {
	select {
	case t.out <- ev:
		return
	default:
	}
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
	}
}

func errorText(err error) string {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
