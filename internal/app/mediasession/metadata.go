package mediasession

import "strings"

// Metadata describes the track a session currently reports. It is decoded
// into this fixed shape at the channel boundary; unknown fields from the
// underlying transport never travel further in.
type Metadata struct {
	TrackID    string // Native track identifier (may be empty)
	Title      string
	Artist     string
	DurationMs int64 // 0 when the player does not report a duration
}

// Identity returns the best-effort stable key used for track-change
// detection: the native id when reported, otherwise a normalized
// title+artist composite.
func (m Metadata) Identity() string {
	if m.TrackID != "" {
		return m.TrackID
	}
	title := strings.ToLower(strings.TrimSpace(m.Title))
	artist := strings.ToLower(strings.TrimSpace(m.Artist))
	if title == "" && artist == "" {
		return ""
	}
	return title + "|" + artist
}
