// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client-side view of the active session.
//
// State owns the active session identity and its transcript. Renderers read
// it through Snapshot; only the controller that owns the current turn writes
// to it, and every write goes through a Lease.
//
// # Leases
//
// A stream binds to the session that was active when it started:
//
//	lease, err := state.Bind(ctx)
//	if err != nil {
//	    return err // no active session
//	}
//	defer lease.Release()
//
//	if err := state.Append(lease, msg); errors.Is(err, session.ErrStaleLease) {
//	    // the user switched sessions; drop the rest of the stream
//	}
//
// Activating another session cancels the context of every lease bound to the
// previous one and makes all further writes through them fail with
// ErrStaleLease, so a late frame can never land in the wrong transcript.
package session
