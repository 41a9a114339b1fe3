// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the insightdesk packages.
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadRight: terminal-column aware layout for tables
//
// File Operations:
//   - WritePrivateFile, AtomicWriteFile: crash-safe replacement of a file
//
// # Usage
//
//	title := util.PadRight(session.DisplayTitle(), 40)
//	err := util.WritePrivateFile(path, data)
package util
