// Package mediasession defines the boundary to the external player's
// session observation channel.
package mediasession

import (
	"context"
	"errors"
)

// Errors
var (
	// ErrPermissionDenied means the process is not authorized to observe
	// media sessions. Fatal until the user grants access.
	ErrPermissionDenied = errors.New("media session observation not authorized")
	// ErrSessionUnavailable means the target player has no active session.
	// Retried periodically; not fatal.
	ErrSessionUnavailable = errors.New("no active media session for target")
)

// PlaybackStatus represents the transport state the session reports.
type PlaybackStatus int

const (
	StatusUnknown PlaybackStatus = iota
	StatusPlaying
	StatusPaused
	StatusStopped
	StatusBuffering
)

// String returns the string representation of the status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// PlaybackInfo is an advisory snapshot of the session's transport state.
type PlaybackInfo struct {
	Status     PlaybackStatus
	PositionMs int64
}

// Handle is a live observation handle for one media session.
// Reads are best-effort snapshots and must not block; callbacks arrive on
// the channel's own delivery goroutine, uncoordinated with any poll loop.
type Handle interface {
	// Metadata returns the track the session currently reports.
	Metadata() (*Metadata, error)
	// Playback returns the current transport state and position.
	Playback() (*PlaybackInfo, error)
	// OnMetadataChanged registers a callback for metadata transitions.
	OnMetadataChanged(func(Metadata))
	// OnStateChanged registers a callback for transport transitions.
	OnStateChanged(func(PlaybackInfo))
	// OnDestroyed registers a callback for session teardown.
	OnDestroyed(func())
	// Close detaches the handle and stops callback delivery.
	Close()
}

// Channel lists active sessions for a target player application.
type Channel interface {
	ListSessions(ctx context.Context, target string) ([]Handle, error)
}
