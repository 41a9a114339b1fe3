// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// readChunkSize is the size of each read from the response body.
const readChunkSize = 4096

// Reader pulls payloads from an event-stream body through a Decoder.
// The body read is the only point where Next blocks.
type Reader struct {
	src     io.Reader
	dec     *Decoder
	pending []Payload
	scratch []byte
	eof     bool
	err     error
}

// NewReader wraps src. A nil decoder gets a default line-framed one.
func NewReader(src io.Reader, dec *Decoder) *Reader {
	if dec == nil {
		dec = NewDecoder()
	}
	return &Reader{
		src:     src,
		dec:     dec,
		scratch: make([]byte, readChunkSize),
	}
}

// Decoder returns the underlying decoder.
func (r *Reader) Decoder() *Decoder {
	return r.dec
}

// Next returns the next payload. It returns io.EOF once the body is exhausted
// and the remainder has been flushed, or the context error if ctx is done.
func (r *Reader) Next(ctx context.Context) (Payload, error) {
	for {
		if len(r.pending) > 0 {
			p := r.pending[0]
			r.pending = r.pending[1:]
			return p, nil
		}
		if r.err != nil {
			return Payload{}, r.err
		}
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		if r.eof {
			r.err = io.EOF
			continue
		}

		n, err := r.src.Read(r.scratch)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.scratch[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				r.pending = append(r.pending, r.dec.Flush()...)
				continue
			}
			// A read failure after cancellation is reported as the
			// cancellation itself.
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			r.err = err
		}
	}
}

// Each calls fn for every payload until the stream ends, fn returns false,
// or ctx is done. A clean end of stream returns nil.
func (r *Reader) Each(ctx context.Context, fn func(Payload) bool) error {
	for {
		p, err := r.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !fn(p) {
			return nil
		}
	}
}
