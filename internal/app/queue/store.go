// Package queue provides the room's playback queue store.
package queue

import (
	"sync"

	"github.com/uniqueusername/listening-with/internal/domain/song"
)

// Store holds the songs waiting to be played, in two FIFO tiers:
// primary for individual user submissions and auxiliary for bulk imports.
// Primary always drains fully before auxiliary is touched.
// A song lives in at most one of primary, auxiliary or now-playing.
type Store struct {
	mu sync.RWMutex

	primary    []song.QueuedSong
	auxiliary  []song.QueuedSong
	nowPlaying *song.QueuedSong
}

// Snapshot is a point-in-time copy of the queue contents.
type Snapshot struct {
	Primary    []song.QueuedSong
	Auxiliary  []song.QueuedSong
	NowPlaying *song.QueuedSong
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	return &Store{
		primary:   make([]song.QueuedSong, 0),
		auxiliary: make([]song.QueuedSong, 0),
	}
}

// EnqueuePrimary appends a user submission to the primary queue.
func (s *Store) EnqueuePrimary(qs song.QueuedSong) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.primary = append(s.primary, qs)
}

// EnqueueAuxiliary appends a batch to the auxiliary queue. The append is
// atomic: a concurrent Snapshot sees either none or all of the batch.
func (s *Store) EnqueueAuxiliary(batch []song.QueuedSong) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auxiliary = append(s.auxiliary, batch...)
}

// DequeueNext pops the next song and marks it as now playing, replacing
// the previous one. Returns nil when both tiers are empty; that means
// "queue exhausted", not an error, and repeated calls stay nil with no
// further side effects.
func (s *Store) DequeueNext() *song.QueuedSong {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next song.QueuedSong
	switch {
	case len(s.primary) > 0:
		next = s.primary[0]
		s.primary = s.primary[1:]
	case len(s.auxiliary) > 0:
		next = s.auxiliary[0]
		s.auxiliary = s.auxiliary[1:]
	default:
		s.nowPlaying = nil
		return nil
	}

	s.nowPlaying = &next
	return &next
}

// PeekNext returns the song that DequeueNext would return, without
// removing it.
func (s *Store) PeekNext() *song.QueuedSong {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.primary) > 0 {
		qs := s.primary[0]
		return &qs
	}
	if len(s.auxiliary) > 0 {
		qs := s.auxiliary[0]
		return &qs
	}
	return nil
}

// NowPlaying returns the currently playing song, or nil when idle.
func (s *Store) NowPlaying() *song.QueuedSong {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.nowPlaying == nil {
		return nil
	}
	qs := *s.nowPlaying
	return &qs
}

// ClearNowPlaying empties the now-playing slot without touching the
// waiting tiers. Used when a dequeued song could not be dispatched.
func (s *Store) ClearNowPlaying() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowPlaying = nil
}

// Size returns the number of waiting songs per tier.
func (s *Store) Size() (primary, auxiliary int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primary), len(s.auxiliary)
}

// Snapshot returns a copy of both tiers and the now-playing song.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Primary:   make([]song.QueuedSong, len(s.primary)),
		Auxiliary: make([]song.QueuedSong, len(s.auxiliary)),
	}
	copy(snap.Primary, s.primary)
	copy(snap.Auxiliary, s.auxiliary)
	if s.nowPlaying != nil {
		qs := *s.nowPlaying
		snap.NowPlaying = &qs
	}
	return snap
}

// Clear drops both tiers and the now-playing song.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.primary = make([]song.QueuedSong, 0)
	s.auxiliary = make([]song.QueuedSong, 0)
	s.nowPlaying = nil
}
