// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant composes the insights client: session selection over
// REST, context budgeting, and the chat and research controllers sharing
// one session state.
//
// A Client has no global state. Every collaborator (transport, preference
// store, planner, clock, logger) is injected, so several clients can run
// side by side.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/chat"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/prefs"
	"github.com/jeranaias/insightdesk/internal/research"
	"github.com/jeranaias/insightdesk/internal/session"
	"github.com/jeranaias/insightdesk/internal/stream"
)

var (
	// ErrBusy is returned when a chat turn or research job is in flight.
	ErrBusy = errors.New("a request is already in flight")

	// ErrNoTopic is returned when an operation needs a selected topic.
	ErrNoTopic = errors.New("no topic selected")

	// ErrResearchDisabled is returned when research is turned off in config.
	ErrResearchDisabled = errors.New("research is disabled")

	// ErrInvalidSizing is returned for an unknown sizing mode.
	ErrInvalidSizing = errors.New("invalid sizing mode")
)

// Config holds the collaborators of a Client.
type Config struct {
	// Transport reaches the backend. Required.
	Transport backend.Transport

	// Prefs seeds and records user defaults. Nil keeps them in memory.
	Prefs prefs.Store

	// Defaults apply where no preference is stored.
	Defaults prefs.Settings

	// Planner memoizes budget plans. Nil creates one with the default TTL.
	Planner *budget.Planner

	// Capabilities are the tools requested with each chat turn.
	Capabilities backend.Capabilities

	// OrgProfileID is sent when creating sessions, if set.
	OrgProfileID string

	// ResearchDisabled rejects research queries.
	ResearchDisabled bool

	// ChatDecoder and ResearchDecoder override the frame decoders.
	ChatDecoder     func() *stream.Decoder
	ResearchDecoder func() *stream.Decoder

	Clock  func() time.Time
	Logger *zap.Logger
}

// Client is one interactive insights session.
type Client struct {
	transport backend.Transport
	prefs     prefs.Store
	planner   *budget.Planner
	state     *session.State
	chat      *chat.Controller
	research  *research.Controller
	logger    *zap.Logger

	caps            backend.Capabilities
	orgProfileID    string
	researchEnabled bool

	// start serializes the busy check with starting a turn or job.
	start sync.Mutex

	mu       sync.RWMutex
	settings prefs.Settings
}

// New creates a client and loads stored preferences.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, errors.New("assistant: transport is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Prefs
	if store == nil {
		store = prefs.NewMemoryStore()
	}
	planner := cfg.Planner
	if planner == nil {
		planner = budget.NewPlanner(budget.DefaultPlanTTL)
	}

	var stateOpts []session.Option
	if cfg.Clock != nil {
		stateOpts = append(stateOpts, session.WithClock(cfg.Clock))
	}
	state := session.NewState(stateOpts...)

	defaults := cfg.Defaults
	if defaults.SizingMode == "" {
		defaults.SizingMode = budget.ModeAuto
	}

	c := &Client{
		transport: cfg.Transport,
		prefs:     store,
		planner:   planner,
		state:     state,
		chat: chat.NewController(chat.Config{
			Transport:  cfg.Transport,
			State:      state,
			NewDecoder: cfg.ChatDecoder,
			Logger:     logger,
		}),
		research: research.NewController(research.Config{
			Transport:  cfg.Transport,
			State:      state,
			NewDecoder: cfg.ResearchDecoder,
			Logger:     logger,
		}),
		logger:          logger.Named("assistant"),
		caps:            cfg.Capabilities,
		orgProfileID:    cfg.OrgProfileID,
		researchEnabled: !cfg.ResearchDisabled,
		settings:        prefs.Load(ctx, store, defaults),
	}
	if !c.researchEnabled {
		c.settings.ResearchMode = false
	}
	return c, nil
}

// State returns the shared session state for renderers.
func (c *Client) State() *session.State {
	return c.state
}

// Active returns a copy of the active session, or nil.
func (c *Client) Active() *model.Session {
	return c.state.Snapshot()
}

// Settings returns the current user settings.
func (c *Client) Settings() prefs.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Capabilities returns the tools requested with each chat turn.
func (c *Client) Capabilities() backend.Capabilities {
	return c.caps
}

// Busy reports whether a chat turn or research job is in flight.
func (c *Client) Busy() bool {
	return c.chat.Busy() || c.research.InProgress()
}

// =============================================================================
// SESSIONS
// =============================================================================

// SelectTopic makes topic current and activates its most recently used
// session, creating one when the topic has none.
func (c *Client) SelectTopic(ctx context.Context, topic string) (*model.Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrNoTopic
	}

	infos, err := c.transport.ListSessions(ctx, topic)
	if err != nil {
		return nil, err
	}

	c.update(ctx, func(s *prefs.Settings) { s.Topic = topic })

	if len(infos) == 0 {
		return c.NewSession(ctx, "")
	}
	sortByActivity(infos)
	return c.activate(ctx, infos[0], topic)
}

// SetTopic makes topic current without activating a session. The active
// session, if it belongs to another topic, is cleared.
func (c *Client) SetTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrNoTopic
	}
	if active := c.state.Topic(); active != "" && active != topic {
		c.state.Clear()
	}
	c.update(ctx, func(s *prefs.Settings) { s.Topic = topic })
	return nil
}

// NewSession creates a session under the current topic and activates it.
func (c *Client) NewSession(ctx context.Context, title string) (*model.Session, error) {
	topic := c.Settings().Topic
	if topic == "" {
		return nil, ErrNoTopic
	}

	id, err := c.transport.CreateSession(ctx, backend.CreateSessionRequest{
		Topic:        topic,
		Title:        title,
		OrgProfileID: c.orgProfileID,
	})
	if err != nil {
		return nil, err
	}

	sess := model.NewSession(id, topic, title)
	now := c.state.Now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	c.state.Activate(sess)

	c.logger.Debug("session created", zap.String("session", id), zap.String("topic", topic))
	return c.state.Snapshot(), nil
}

// SwitchSession activates an existing session of the current topic and
// loads its transcript. Streams bound to the previous session are discarded.
func (c *Client) SwitchSession(ctx context.Context, id string) (*model.Session, error) {
	topic := c.Settings().Topic
	if topic == "" {
		return nil, ErrNoTopic
	}

	info := backend.SessionInfo{ID: id, Topic: topic}
	if infos, err := c.transport.ListSessions(ctx, topic); err == nil {
		for _, candidate := range infos {
			if candidate.ID == id {
				info = candidate
				break
			}
		}
	}
	return c.activate(ctx, info, topic)
}

func (c *Client) activate(ctx context.Context, info backend.SessionInfo, topic string) (*model.Session, error) {
	records, err := c.transport.FetchMessages(ctx, info.ID)
	if err != nil {
		return nil, err
	}

	sess := info.ToSession()
	if sess.Topic == "" {
		sess.Topic = topic
	}
	sess.Messages = make([]model.Message, 0, len(records))
	for _, rec := range records {
		msg := rec.ToMessage()
		if msg.Role == model.RoleAssistant && chart.HasMarker(msg.Content) {
			res := chart.Extract(msg.Content)
			msg.Content, msg.Charts = res.Text, res.Charts
		}
		sess.Messages = append(sess.Messages, msg)
	}
	c.state.Activate(sess)

	c.logger.Debug("session activated",
		zap.String("session", sess.ID),
		zap.Int("messages", len(sess.Messages)))
	return c.state.Snapshot(), nil
}

// Sessions lists the sessions of the current topic, most recent first.
func (c *Client) Sessions(ctx context.Context) ([]backend.SessionInfo, error) {
	topic := c.Settings().Topic
	if topic == "" {
		return nil, ErrNoTopic
	}
	infos, err := c.transport.ListSessions(ctx, topic)
	if err != nil {
		return nil, err
	}
	sortByActivity(infos)
	return infos, nil
}

// DeleteSession deletes a session. Deleting the active session leaves no
// session active.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.transport.DeleteSession(ctx, id); err != nil {
		return err
	}
	if c.state.ActiveID() == id {
		c.state.Clear()
	}
	return nil
}

func sortByActivity(infos []backend.SessionInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastActive().After(infos[j].LastActive())
	})
}

// =============================================================================
// SETTINGS
// =============================================================================

// SetModel selects the target model.
func (c *Client) SetModel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return chat.ErrNoModel
	}
	c.update(ctx, func(s *prefs.Settings) { s.Model = id })
	return nil
}

// SetSizing selects the document sizing mode. limit is used by custom mode.
func (c *Client) SetSizing(ctx context.Context, mode budget.Mode, limit int) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSizing, mode)
	}
	c.update(ctx, func(s *prefs.Settings) {
		s.SizingMode = mode
		if mode == budget.ModeCustom {
			s.CustomLimit = limit
		}
	})
	return nil
}

// SetResearchMode routes submitted queries to research instead of chat.
func (c *Client) SetResearchMode(ctx context.Context, on bool) error {
	if on && !c.researchEnabled {
		return ErrResearchDisabled
	}
	c.update(ctx, func(s *prefs.Settings) { s.ResearchMode = on })
	return nil
}

// update applies fn and persists the result. Persistence failures are
// logged; preferences only seed defaults.
func (c *Client) update(ctx context.Context, fn func(*prefs.Settings)) {
	c.mu.Lock()
	fn(&c.settings)
	snapshot := c.settings
	c.mu.Unlock()

	if err := prefs.Save(ctx, c.prefs, snapshot); err != nil {
		c.logger.Warn("failed to save preferences", zap.Error(err))
	}
}

// =============================================================================
// TURNS
// =============================================================================

// Plan computes the document budget for a draft against the active
// transcript.
func (c *Client) Plan(draft string) budget.Plan {
	s := c.Settings()
	return c.planner.Plan(budget.Input{
		Model:       s.Model,
		Mode:        s.SizingMode,
		CustomLimit: s.CustomLimit,
		Draft:       draft,
		History:     c.state.HistoryText(),
	})
}

// Chat sends a chat turn sized by Plan.
func (c *Client) Chat(ctx context.Context, draft string) (<-chan chat.Event, budget.Plan, error) {
	c.start.Lock()
	defer c.start.Unlock()

	if c.Busy() {
		return nil, budget.Plan{}, ErrBusy
	}

	s := c.Settings()
	plan := c.Plan(draft)
	events, err := c.chat.Send(ctx, chat.Request{
		Topic:         s.Topic,
		Model:         s.Model,
		Draft:         draft,
		DocumentCount: plan.DocumentCount,
		Tools:         c.caps,
	})
	if err != nil {
		return nil, plan, err
	}

	c.logger.Debug("chat turn started",
		zap.String("mode", string(plan.Mode)),
		zap.Int("documents", plan.DocumentCount),
		zap.Int("estimated_tokens", plan.EstimatedTokens))
	return events, plan, nil
}

// Research starts a research job.
func (c *Client) Research(ctx context.Context, query string) (<-chan research.Event, error) {
	if !c.researchEnabled {
		return nil, ErrResearchDisabled
	}

	c.start.Lock()
	defer c.start.Unlock()

	if c.Busy() {
		return nil, ErrBusy
	}
	return c.research.Run(ctx, research.Query{Topic: c.Settings().Topic, Text: query})
}

// ResearchJob returns the snapshot of the running research job, if any.
func (c *Client) ResearchJob() (research.Snapshot, bool) {
	return c.research.Current()
}
