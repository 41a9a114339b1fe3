// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
//
// # Key Types
//
//   - Session: Server-side conversation bound to a topic, with its transcript
//   - Message: Single turn with role, content, timestamp and extracted charts
//   - ModelInfo: Backend model metadata, most importantly the context window
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
//	window := model.ContextWindow("gpt-4o") // 128000
//	msg := model.NewUserMessage("Summarize the latest filings", time.Now())
package model
