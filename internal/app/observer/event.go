package observer

import "github.com/uniqueusername/listening-with/internal/app/mediasession"

// AdvanceReason says which detector decided the current track ended.
type AdvanceReason int

const (
	ReasonNaturalEnd     AdvanceReason = iota // Position reached the end threshold while paused/stopped
	ReasonExternalChange                      // Track identity changed under the observer
)

// String returns the string representation of the reason.
func (r AdvanceReason) String() string {
	switch r {
	case ReasonNaturalEnd:
		return "natural_end"
	case ReasonExternalChange:
		return "external_change"
	default:
		return "unknown"
	}
}

// eventKind discriminates the internal events funneled into the observer
// goroutine.
type eventKind int

const (
	evMetadata eventKind = iota
	evState
	evDestroyed
	evAttach
	evDetach
)

// event is one entry in the observer's serialized input stream. Poll ticks
// arrive separately through the timer; everything else goes through here.
type event struct {
	kind     eventKind
	metadata mediasession.Metadata
	playback mediasession.PlaybackInfo
	handle   mediasession.Handle
}
