// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"errors"
	"strconv"

	"github.com/jeranaias/insightdesk/internal/budget"
)

// Settings are the typed preferences of the assistant.
type Settings struct {
	Topic        string
	Model        string
	SizingMode   budget.Mode
	CustomLimit  int
	ResearchMode bool
}

// Load reads settings from store. Keys that are missing or unreadable keep
// the value from defaults.
func Load(ctx context.Context, store Store, defaults Settings) Settings {
	s := defaults
	if store == nil {
		return s
	}

	if v, ok := get(ctx, store, KeyTopic); ok {
		s.Topic = v
	}
	if v, ok := get(ctx, store, KeyModel); ok && v != "" {
		s.Model = v
	}
	if v, ok := get(ctx, store, KeySizingMode); ok {
		if m := budget.Mode(v); m.IsValid() {
			s.SizingMode = m
		}
	}
	if v, ok := get(ctx, store, KeyCustomLimit); ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.CustomLimit = n
		}
	}
	if v, ok := get(ctx, store, KeyResearchMode); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.ResearchMode = b
		}
	}
	return s
}

// Save writes every setting. Failures are joined; a failing key does not
// stop the rest.
func Save(ctx context.Context, store Store, s Settings) error {
	if store == nil {
		return nil
	}
	values := []struct{ key, value string }{
		{KeyTopic, s.Topic},
		{KeyModel, s.Model},
		{KeySizingMode, string(s.SizingMode)},
		{KeyCustomLimit, strconv.Itoa(s.CustomLimit)},
		{KeyResearchMode, strconv.FormatBool(s.ResearchMode)},
	}
	var errs []error
	for _, kv := range values {
		if err := store.Set(ctx, kv.key, kv.value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func get(ctx context.Context, store Store, key string) (string, bool) {
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return v, true
}
