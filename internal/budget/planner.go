// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package budget

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// PERFORMANCE: the plan is recomputed on every draft edit, so identical
// inputs are served from a short-lived cache.

const (
	// DefaultPlanTTL is how long a memoised plan stays valid.
	DefaultPlanTTL = 2 * time.Minute

	planCleanupInterval = 5 * time.Minute
)

// Planner memoises Allocate (plus Recheck where it applies). Safe for
// concurrent use.
type Planner struct {
	cache  *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewPlanner creates a planner whose entries expire after ttl.
// A non-positive ttl uses DefaultPlanTTL.
func NewPlanner(ttl time.Duration) *Planner {
	if ttl <= 0 {
		ttl = DefaultPlanTTL
	}
	return &Planner{cache: cache.New(ttl, planCleanupInterval)}
}

// Plan returns the checked plan for the input.
func (p *Planner) Plan(in Input) Plan {
	key := planKey(in)
	if v, ok := p.cache.Get(key); ok {
		p.hits.Add(1)
		return v.(Plan)
	}
	p.misses.Add(1)

	plan := Allocate(in)
	if NeedsRecheck(plan.Mode) {
		plan = Recheck(plan)
	}
	p.cache.SetDefault(key, plan)
	return plan
}

// Stats returns the cache hit and miss counts.
func (p *Planner) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}

// Flush drops every memoised plan.
func (p *Planner) Flush() {
	p.cache.Flush()
}

// planKey hashes the text inputs so long transcripts do not become map keys.
func planKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Model))
	h.Write([]byte{0})
	h.Write([]byte(in.Mode))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(in.CustomLimit)))
	h.Write([]byte{0})
	h.Write([]byte(in.Draft))
	h.Write([]byte{0})
	h.Write([]byte(in.History))
	return hex.EncodeToString(h.Sum(nil))
}
