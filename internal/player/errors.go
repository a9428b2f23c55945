/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import "errors"

var (
	// ErrRoomNotFound is returned for operations on a room with no session.
	ErrRoomNotFound = errors.New("no session for room")
	// ErrNothingPlaying is returned when an operation needs a current track.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrPerRequesterLimit is returned when a requester hits their queue cap.
	ErrPerRequesterLimit = errors.New("requester queue limit reached")
	// ErrPendingFull is returned when the approval list is at capacity.
	ErrPendingFull = errors.New("pending request list is full")
	// ErrNotPending is returned when a pending request ID is unknown,
	// including the second of two racing approvals.
	ErrNotPending = errors.New("request is not pending")
	// ErrPermissionDenied is the canonical error command surfaces return
	// when a non-DJ attempts a DJ-only decision.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAlreadyVoted is returned for a duplicate skip vote.
	ErrAlreadyVoted = errors.New("already voted to skip")
	// ErrInvalidValue is returned for out-of-range playback parameters.
	ErrInvalidValue = errors.New("value out of range")
	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNoPrevious is returned by Back when no track has finished yet.
	ErrNoPrevious = errors.New("no previous track")
	// ErrNotPaused is returned by Resume when playback is not paused.
	ErrNotPaused = errors.New("playback is not paused")
	// ErrAlreadyPaused is returned by Pause when playback is already paused.
	ErrAlreadyPaused = errors.New("playback is already paused")
	// ErrClosed is returned once the controller has shut down.
	ErrClosed = errors.New("player is closed")
)
