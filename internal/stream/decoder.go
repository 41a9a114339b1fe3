// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"
)

// STREAMING: One decoder for both chat and research streams. The framing
// differs only in the event separator.

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

const (
	// LineSeparator frames chat turns: one "data: {json}" line per event.
	LineSeparator = "\n"

	// EventSeparator frames research jobs: blank-line delimited events.
	EventSeparator = "\n\n"

	// MaxEventSize caps the size of a single event (1MB). Larger events are
	// dropped whole, however they are chunked.
	MaxEventSize = 1 << 20

	// doneSentinel is the OpenAI-style end marker some proxies inject.
	doneSentinel = "[DONE]"
)

var (
	dataPrefix = []byte("data:")
	crlf       = []byte("\r\n")
	lf         = []byte("\n")
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a chunked byte stream into an ordered sequence of payloads.
// The output does not depend on where the chunk boundaries fall.
//
// A Decoder is not safe for concurrent use; each stream owns its own.
type Decoder struct {
	sep     []byte
	buf     []byte
	logger  *zap.Logger
	dropped int

	// skipping is set while the rest of an oversized event is discarded.
	skipping bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithSeparator sets the event separator (LineSeparator or EventSeparator).
func WithSeparator(sep string) Option {
	return func(d *Decoder) {
		if sep != "" {
			d.sep = []byte(sep)
		}
	}
}

// WithLogger sets the logger that receives malformed-frame diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDecoder creates a decoder. The default separator is LineSeparator.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		sep:    []byte(LineSeparator),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Separator returns the configured event separator.
func (d *Decoder) Separator() string {
	return string(d.sep)
}

// Dropped returns how many non-empty frames failed to parse so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Pending returns the number of buffered bytes not yet forming an event.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Feed appends chunk to the running buffer and returns every payload that
// became complete. The trailing remainder is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Payload {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	d.normalize()

	var out []Payload
	for {
		idx := bytes.Index(d.buf, d.sep)
		if idx < 0 {
			break
		}
		event := d.buf[:idx]
		switch {
		case d.skipping:
			d.skipping = false
		case len(event) > MaxEventSize:
			d.dropOversized(len(event))
		default:
			if p, ok := d.parseEvent(event); ok {
				out = append(out, p)
			}
		}
		d.buf = d.buf[idx+len(d.sep):]
	}

	// The remainder may end in a partial separator or a CR awaiting its LF,
	// so it only proves the event oversized once it passes the cap by more
	// than len(sep).
	if !d.skipping && len(d.buf) > MaxEventSize+len(d.sep) {
		d.dropOversized(len(d.buf))
		d.skipping = true
	}
	if d.skipping && len(d.buf) > len(d.sep) {
		// Keep a tail that may hold the start of the next separator.
		d.buf = append(d.buf[:0:0], d.buf[len(d.buf)-len(d.sep):]...)
	}

	// Compact so the backing array does not grow without bound.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
	return out
}

func (d *Decoder) dropOversized(size int) {
	d.logger.Warn("discarding oversized stream event",
		zap.Int("bytes", size),
		zap.Int("limit", MaxEventSize))
	d.dropped++
}

// Flush makes one final attempt to parse the remainder at end of input.
// The remainder is only considered when it still looks like a data line.
func (d *Decoder) Flush() []Payload {
	rest := bytes.TrimRight(d.buf, "\r")
	d.buf = nil
	if d.skipping {
		d.skipping = false
		return nil
	}
	if len(rest) > MaxEventSize {
		d.dropOversized(len(rest))
		return nil
	}
	if !bytes.Contains(rest, dataPrefix) {
		return nil
	}
	if p, ok := d.parseEvent(rest); ok {
		return []Payload{p}
	}
	return nil
}

// Reset discards any buffered input and diagnostic counters.
func (d *Decoder) Reset() {
	d.buf = nil
	d.dropped = 0
	d.skipping = false
}

// normalize folds CRLF into LF. A trailing CR is left alone until the next
// chunk shows whether an LF follows it.
func (d *Decoder) normalize() {
	if bytes.Contains(d.buf, crlf) {
		d.buf = bytes.ReplaceAll(d.buf, crlf, lf)
	}
}

// parseEvent extracts and decodes the data lines of one event.
func (d *Decoder) parseEvent(event []byte) (Payload, bool) {
	data := eventData(event)
	if len(data) == 0 {
		return Payload{}, false
	}
	if string(data) == doneSentinel {
		return Payload{Done: true}, true
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		d.dropped++
		d.logger.Warn("dropping malformed stream frame",
			zap.Error(err),
			zap.String("payload", preview(data)))
		return Payload{}, false
	}
	return p, true
}

// eventData joins the values of every "data:" line with newlines. Other SSE
// fields (event, id, retry) and comment lines are ignored.
func eventData(event []byte) []byte {
	var data []byte
	found := false
	for _, line := range bytes.Split(event, lf) {
		line = bytes.TrimRight(line, "\r")
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		value := bytes.TrimLeft(line[len(dataPrefix):], " \t")
		if found {
			data = append(data, '\n')
		}
		data = append(data, value...)
		found = true
	}
	return bytes.TrimSpace(data)
}

func preview(data []byte) string {
	const max = 120
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
