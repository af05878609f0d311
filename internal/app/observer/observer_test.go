package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniqueusername/listening-with/internal/app/mediasession"
)

// fakeSuppressor is a switchable suppression window.
type fakeSuppressor struct {
	active bool
}

func (f *fakeSuppressor) Active() bool { return f.active }

// fakeHandle is a scriptable media session handle.
type fakeHandle struct {
	metadata    mediasession.Metadata
	playback    mediasession.PlaybackInfo
	metadataErr error
	playbackErr error

	onMetadata  func(mediasession.Metadata)
	onState     func(mediasession.PlaybackInfo)
	onDestroyed func()
	closed      bool
}

func (h *fakeHandle) Metadata() (*mediasession.Metadata, error) {
	if h.metadataErr != nil {
		return nil, h.metadataErr
	}
	md := h.metadata
	return &md, nil
}

func (h *fakeHandle) Playback() (*mediasession.PlaybackInfo, error) {
	if h.playbackErr != nil {
		return nil, h.playbackErr
	}
	pb := h.playback
	return &pb, nil
}

func (h *fakeHandle) OnMetadataChanged(cb func(mediasession.Metadata)) { h.onMetadata = cb }
func (h *fakeHandle) OnStateChanged(cb func(mediasession.PlaybackInfo)) {
	h.onState = cb
}
func (h *fakeHandle) OnDestroyed(cb func()) { h.onDestroyed = cb }
func (h *fakeHandle) Close()                { h.closed = true }

// newTestObserver returns an observer whose run goroutine is not started,
// so detection methods can be driven synchronously.
func newTestObserver(sup Suppressor) *Observer {
	return New(Config{}, sup)
}

// drainAdvances collects every advance signal currently queued.
func drainAdvances(o *Observer) []AdvanceReason {
	var out []AdvanceReason
	for {
		select {
		case r := <-o.advanceCh:
			out = append(out, r)
		default:
			return out
		}
	}
}

func TestObserver_NaturalEnd(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	// 3:33 track approaching its end.
	o.noteMetadata(mediasession.Metadata{TrackID: "t1", DurationMs: 213000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 211500})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 212200})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 212900})
	assert.Empty(t, drainAdvances(o), "no advance while still playing")

	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212900})
	assert.Equal(t, []AdvanceReason{ReasonNaturalEnd}, drainAdvances(o))

	// The detection is latched; further paused polls see the same numbers.
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212900})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusStopped, PositionMs: 213000})
	assert.Empty(t, drainAdvances(o), "one advance per track end")
}

func TestObserver_NaturalEnd_RearmsOnResume(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	o.noteMetadata(mediasession.Metadata{TrackID: "t1", DurationMs: 213000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212900})
	require.Equal(t, []AdvanceReason{ReasonNaturalEnd}, drainAdvances(o))

	// The listener seeks back and plays the outro again.
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 200000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212950})
	assert.Equal(t, []AdvanceReason{ReasonNaturalEnd}, drainAdvances(o))
}

func TestObserver_NaturalEnd_Boundaries(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int64
		status     mediasession.PlaybackStatus
		positionMs int64
		want       bool
	}{
		{
			name:       "paused just inside threshold",
			durationMs: 213000,
			status:     mediasession.StatusPaused,
			positionMs: 212000,
			want:       true,
		},
		{
			name:       "stopped at full duration",
			durationMs: 213000,
			status:     mediasession.StatusStopped,
			positionMs: 213000,
			want:       true,
		},
		{
			name:       "paused mid-track",
			durationMs: 213000,
			status:     mediasession.StatusPaused,
			positionMs: 100000,
			want:       false,
		},
		{
			name:       "paused just outside threshold",
			durationMs: 213000,
			status:     mediasession.StatusPaused,
			positionMs: 211999,
			want:       false,
		},
		{
			name:       "no reported duration",
			durationMs: 0,
			status:     mediasession.StatusPaused,
			positionMs: 212900,
			want:       false,
		},
		{
			name:       "buffering near the end",
			durationMs: 213000,
			status:     mediasession.StatusBuffering,
			positionMs: 212900,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestObserver(&fakeSuppressor{})
			o.noteMetadata(mediasession.Metadata{TrackID: "t1", DurationMs: tt.durationMs})
			o.notePlayback(mediasession.PlaybackInfo{Status: tt.status, PositionMs: tt.positionMs})

			got := drainAdvances(o)
			if tt.want {
				assert.Equal(t, []AdvanceReason{ReasonNaturalEnd}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestObserver_ExternalChange(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	// The first observed identity is a baseline, not a transition.
	o.noteMetadata(mediasession.Metadata{TrackID: "a"})
	assert.Empty(t, drainAdvances(o))

	// Redeliveries of the same track are no transition either.
	o.noteMetadata(mediasession.Metadata{TrackID: "a"})
	o.noteMetadata(mediasession.Metadata{TrackID: "a"})
	assert.Empty(t, drainAdvances(o))

	o.noteMetadata(mediasession.Metadata{TrackID: "b"})
	assert.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
	assert.Equal(t, "b", o.lastIdentity)

	// A later poll reporting the same track sees no further delta.
	o.noteMetadata(mediasession.Metadata{TrackID: "b"})
	assert.Empty(t, drainAdvances(o))
}

func TestObserver_ExternalChange_EventAndPollInterleaved(t *testing.T) {
	// One real track change surfaces through both the async callback and
	// the next poll; it must produce exactly one advance.
	o := newTestObserver(&fakeSuppressor{})

	o.noteMetadata(mediasession.Metadata{TrackID: "a", DurationMs: 213000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 212900})

	// Callback lands first.
	o.noteMetadata(mediasession.Metadata{TrackID: "b", DurationMs: 180000})
	// The poll then reads the same new state.
	o.noteMetadata(mediasession.Metadata{TrackID: "b", DurationMs: 180000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 1000})

	assert.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
}

func TestObserver_IdentityFallbackWhenIDMissing(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	o.noteMetadata(mediasession.Metadata{Title: "Song One", Artist: "Band"})
	o.noteMetadata(mediasession.Metadata{Title: "song one", Artist: "BAND"})
	assert.Empty(t, drainAdvances(o), "case-only differences are the same track")

	o.noteMetadata(mediasession.Metadata{Title: "Song Two", Artist: "Band"})
	assert.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
}

func TestObserver_EmptyMetadataIgnored(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	o.noteMetadata(mediasession.Metadata{TrackID: "a"})
	o.noteMetadata(mediasession.Metadata{})
	assert.Empty(t, drainAdvances(o))
	assert.Equal(t, "a", o.lastIdentity, "an empty identity never overwrites the baseline")
}

func TestObserver_SuppressionSwallowsOwnTrigger(t *testing.T) {
	sup := &fakeSuppressor{}
	o := newTestObserver(sup)

	o.noteMetadata(mediasession.Metadata{TrackID: "a"})

	// The coordinator just dispatched a trigger; the resulting change must
	// not be read as an external skip.
	sup.active = true
	o.noteMetadata(mediasession.Metadata{TrackID: "b"})
	assert.Empty(t, drainAdvances(o))
	assert.Equal(t, "b", o.lastIdentity, "bookkeeping advances even when the signal is swallowed")

	// After the window expires, a change to yet another track is external.
	sup.active = false
	o.noteMetadata(mediasession.Metadata{TrackID: "c"})
	assert.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
}

func TestObserver_SuppressionSwallowsNaturalEnd(t *testing.T) {
	sup := &fakeSuppressor{active: true}
	o := newTestObserver(sup)

	o.noteMetadata(mediasession.Metadata{TrackID: "a", DurationMs: 213000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212900})
	assert.Empty(t, drainAdvances(o))
	assert.True(t, o.endLatched, "the latch is set even when the signal is swallowed")

	// Window expiry alone must not re-raise the swallowed end.
	sup.active = false
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPaused, PositionMs: 212900})
	assert.Empty(t, drainAdvances(o))
}

func TestObserver_IdentityChangeClearsStalePosition(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})

	o.noteMetadata(mediasession.Metadata{TrackID: "a", DurationMs: 213000})
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 212900})

	o.noteMetadata(mediasession.Metadata{TrackID: "b", DurationMs: 180000})
	require.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
	assert.Zero(t, o.lastPositionMs, "the old track's position is stale for the new track")
	assert.False(t, o.endLatched)

	// The new track starting from the top must not look like an end.
	o.notePlayback(mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 500})
	assert.Empty(t, drainAdvances(o))
}

func TestObserver_AttachPrimesBaseline(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})
	h := &fakeHandle{
		metadata: mediasession.Metadata{TrackID: "a", DurationMs: 213000},
		playback: mediasession.PlaybackInfo{Status: mediasession.StatusPlaying, PositionMs: 42000},
	}

	o.attach(h)
	assert.Empty(t, drainAdvances(o), "attaching mid-track is not a transition")
	assert.NotNil(t, h.onMetadata)
	assert.NotNil(t, h.onState)
	assert.NotNil(t, h.onDestroyed)
	assert.Equal(t, "a", o.lastIdentity)

	// The first real change after attach is detected against the baseline.
	o.noteMetadata(mediasession.Metadata{TrackID: "b"})
	assert.Equal(t, []AdvanceReason{ReasonExternalChange}, drainAdvances(o))
}

func TestObserver_ReadFailureSignalsLoss(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})
	h := &fakeHandle{
		metadata: mediasession.Metadata{TrackID: "a"},
		playback: mediasession.PlaybackInfo{Status: mediasession.StatusPlaying},
	}
	o.attach(h)

	h.metadataErr = assert.AnError
	o.handlePoll()

	select {
	case <-o.SessionLost():
	default:
		t.Fatal("expected a session-lost signal")
	}
	assert.Nil(t, o.handle)
	assert.Empty(t, drainAdvances(o), "a lost session never advances the queue")

	// With no handle, further polls are no-ops.
	o.handlePoll()
	select {
	case <-o.SessionLost():
		t.Fatal("loss must be signalled once per handle")
	default:
	}
}

func TestObserver_DetachResetsBaseline(t *testing.T) {
	o := newTestObserver(&fakeSuppressor{})
	h := &fakeHandle{
		metadata: mediasession.Metadata{TrackID: "a"},
		playback: mediasession.PlaybackInfo{Status: mediasession.StatusPlaying},
	}
	o.attach(h)

	o.handleEvent(event{kind: evDetach})
	assert.Nil(t, o.handle)
	assert.False(t, o.identityKnown)

	// Re-attaching on a different track establishes a fresh baseline
	// rather than reporting a change.
	h2 := &fakeHandle{
		metadata: mediasession.Metadata{TrackID: "b"},
		playback: mediasession.PlaybackInfo{Status: mediasession.StatusPlaying},
	}
	o.attach(h2)
	assert.Empty(t, drainAdvances(o))
}

func TestObserver_StartStop(t *testing.T) {
	o := New(Config{PollInterval: 10 * time.Millisecond}, &fakeSuppressor{})
	o.Start()
	o.Stop()

	select {
	case <-o.done:
	default:
		t.Fatal("Stop must wait for the run goroutine to exit")
	}
}
