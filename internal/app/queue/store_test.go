package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniqueusername/listening-with/internal/domain/song"
)

func qs(id string) song.QueuedSong {
	return song.QueuedSong{Song: song.Song{ID: id, Title: "title-" + id}}
}

func TestStore_DequeueNext_FIFOOrder(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))
	s.EnqueuePrimary(qs("b"))
	s.EnqueuePrimary(qs("c"))

	for _, want := range []string{"a", "b", "c"} {
		got := s.DequeueNext()
		require.NotNil(t, got)
		assert.Equal(t, want, got.Song.ID)
	}
	assert.Nil(t, s.DequeueNext())
}

func TestStore_DequeueNext_PrimaryDrainsBeforeAuxiliary(t *testing.T) {
	s := NewStore()
	s.EnqueueAuxiliary([]song.QueuedSong{qs("x"), qs("y")})
	s.EnqueuePrimary(qs("a"))
	s.EnqueuePrimary(qs("b"))

	var order []string
	for next := s.DequeueNext(); next != nil; next = s.DequeueNext() {
		order = append(order, next.Song.ID)
	}
	assert.Equal(t, []string{"a", "b", "x", "y"}, order)
}

func TestStore_DequeueNext_PrimaryArrivingMidDrainJumpsAhead(t *testing.T) {
	s := NewStore()
	s.EnqueueAuxiliary([]song.QueuedSong{qs("x"), qs("y")})

	got := s.DequeueNext()
	require.NotNil(t, got)
	assert.Equal(t, "x", got.Song.ID)

	// A user submission lands while the auxiliary tier is draining.
	s.EnqueuePrimary(qs("a"))

	got = s.DequeueNext()
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Song.ID)

	got = s.DequeueNext()
	require.NotNil(t, got)
	assert.Equal(t, "y", got.Song.ID)
}

func TestStore_DequeueNext_EmptyIsIdempotent(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))

	require.NotNil(t, s.DequeueNext())
	assert.NotNil(t, s.NowPlaying())

	// First empty dequeue clears now-playing; repeats stay nil.
	assert.Nil(t, s.DequeueNext())
	assert.Nil(t, s.NowPlaying())
	assert.Nil(t, s.DequeueNext())
	assert.Nil(t, s.NowPlaying())
}

func TestStore_DequeueNext_SetsNowPlaying(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))
	s.EnqueuePrimary(qs("b"))

	_ = s.DequeueNext()
	np := s.NowPlaying()
	require.NotNil(t, np)
	assert.Equal(t, "a", np.Song.ID)

	_ = s.DequeueNext()
	np = s.NowPlaying()
	require.NotNil(t, np)
	assert.Equal(t, "b", np.Song.ID, "dequeue replaces the previous now-playing song")
}

func TestStore_PeekNext(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.PeekNext())

	s.EnqueueAuxiliary([]song.QueuedSong{qs("x")})
	peeked := s.PeekNext()
	require.NotNil(t, peeked)
	assert.Equal(t, "x", peeked.Song.ID)

	s.EnqueuePrimary(qs("a"))
	peeked = s.PeekNext()
	require.NotNil(t, peeked)
	assert.Equal(t, "a", peeked.Song.ID, "peek prefers the primary tier")

	primary, auxiliary := s.Size()
	assert.Equal(t, 1, primary, "peek must not consume")
	assert.Equal(t, 1, auxiliary)
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))
	s.EnqueuePrimary(qs("b"))
	s.EnqueueAuxiliary([]song.QueuedSong{qs("x"), qs("y")})
	_ = s.DequeueNext()

	snap := s.Snapshot()
	require.Len(t, snap.Primary, 1)
	assert.Equal(t, "b", snap.Primary[0].Song.ID)
	require.Len(t, snap.Auxiliary, 2)
	assert.Equal(t, "x", snap.Auxiliary[0].Song.ID)
	assert.Equal(t, "y", snap.Auxiliary[1].Song.ID)
	require.NotNil(t, snap.NowPlaying)
	assert.Equal(t, "a", snap.NowPlaying.Song.ID)

	// The snapshot is a copy; mutating the store afterwards must not
	// change it.
	_ = s.DequeueNext()
	assert.Equal(t, "b", snap.Primary[0].Song.ID)
	assert.Equal(t, "a", snap.NowPlaying.Song.ID)
}

func TestStore_ClearNowPlaying(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))
	s.EnqueuePrimary(qs("b"))
	require.NotNil(t, s.DequeueNext())

	s.ClearNowPlaying()

	assert.Nil(t, s.NowPlaying())
	primary, _ := s.Size()
	assert.Equal(t, 1, primary, "the waiting tiers are untouched")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.EnqueuePrimary(qs("a"))
	s.EnqueueAuxiliary([]song.QueuedSong{qs("x")})
	_ = s.DequeueNext()

	s.Clear()

	primary, auxiliary := s.Size()
	assert.Equal(t, 0, primary)
	assert.Equal(t, 0, auxiliary)
	assert.Nil(t, s.NowPlaying())
	assert.Nil(t, s.DequeueNext())
}
