// Package song provides the Song domain entity.
package song

import "time"

// Song represents a track in the external player's catalog.
// Contains only information retrieved from the catalog lookup.
type Song struct {
	ID          string        // External catalog track ID
	Title       string        // Track title
	Artist      string        // Primary artist (joined if multiple)
	AlbumArtURL string        // Album art URL
	Duration    time.Duration // Track duration
	URL         string        // Catalog URL
}

// ProvenanceKind tags where a queued song came from.
type ProvenanceKind string

const (
	ProvenanceUserSearch ProvenanceKind = "USER_SEARCH" // Individual user submission
	ProvenanceBulkImport ProvenanceKind = "BULK_IMPORT" // Playlist or album import
)

// Provenance records the origin of a queued song.
type Provenance struct {
	Kind       ProvenanceKind // How the song entered the queue
	SourceName string         // Display name of the import source (optional)
	SourceID   string         // Playlist/album identifier of the source (optional)
}

// QueuedSong represents a song waiting in the room queue.
// Immutable once created; owned by the queue store until dequeued.
type QueuedSong struct {
	Song        Song       // Catalog track info
	SubmittedBy string     // Display name of the submitter (optional)
	AddedAt     time.Time  // Time when added to the queue
	Provenance  Provenance // Origin of the submission
}

// NewUserSubmission wraps a song submitted by a single user.
func NewUserSubmission(s Song, submittedBy string) QueuedSong {
	return QueuedSong{
		Song:        s,
		SubmittedBy: submittedBy,
		AddedAt:     time.Now(),
		Provenance:  Provenance{Kind: ProvenanceUserSearch},
	}
}

// NewImported wraps a song that arrived as part of a bulk import.
func NewImported(s Song, submittedBy, sourceName, sourceID string) QueuedSong {
	return QueuedSong{
		Song:        s,
		SubmittedBy: submittedBy,
		AddedAt:     time.Now(),
		Provenance: Provenance{
			Kind:       ProvenanceBulkImport,
			SourceName: sourceName,
			SourceID:   sourceID,
		},
	}
}
