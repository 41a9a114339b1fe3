// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// STREAMING: The body is handed to the caller undecoded. Cancelling ctx
// aborts the underlying connection and unblocks any pending read.

// StreamChat posts a chat turn and returns the event-stream body.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	switch {
	case req.SessionID == "":
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	case strings.TrimSpace(req.Message) == "":
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidArgument)
	case req.Model == "":
		return nil, fmt.Errorf("%w: model is required", ErrInvalidArgument)
	}
	body, err := c.openStream(ctx, chatStreamPath, req)
	if err != nil {
		return nil, fmt.Errorf("chat stream: %w", err)
	}
	return body, nil
}

// StreamResearch posts a research query and returns the event-stream body.
func (c *Client) StreamResearch(ctx context.Context, req ResearchRequest) (io.ReadCloser, error) {
	switch {
	case req.SessionID == "":
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	case strings.TrimSpace(req.Query) == "":
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidArgument)
	}
	body, err := c.openStream(ctx, researchStreamPath, req)
	if err != nil {
		return nil, fmt.Errorf("research stream: %w", err)
	}
	return body, nil
}

func (c *Client) openStream(ctx context.Context, path string, in any) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}

	c.logger.Debug("stream opened",
		zap.String("path", path),
		zap.String("content_type", resp.Header.Get("Content-Type")))
	return resp.Body, nil
}
