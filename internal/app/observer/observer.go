// Package observer watches an external media session and decides, from the
// session's noisy position and metadata signals, exactly when the room
// queue should advance.
package observer

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/mediasession"
)

// Suppressor reports whether an observed track change is expected to be the
// coordinator's own doing. Implemented by the coordinator's suppression
// window.
type Suppressor interface {
	Active() bool
}

// Config holds observer configuration.
type Config struct {
	PollInterval time.Duration // Cadence of the poll loop
	EndThreshold time.Duration // How close to the duration counts as "played to the end"
}

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultEndThreshold = time.Second
)

// Observer serializes poll ticks and asynchronous channel callbacks into a
// single goroutine and emits at most one advance request per real track
// transition. All track bookkeeping (identity, position, duration) is
// touched only inside that goroutine.
type Observer struct {
	cfg        Config
	suppressor Suppressor

	events    chan event
	advanceCh chan AdvanceReason
	lostCh    chan struct{}

	// State below is owned by the run goroutine.
	handle         mediasession.Handle
	lastIdentity   string
	identityKnown  bool
	lastPositionMs int64
	lastDurationMs int64
	lastStatus     mediasession.PlaybackStatus
	endLatched     bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new session observer.
func New(cfg Config, suppressor Suppressor) *Observer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.EndThreshold <= 0 {
		cfg.EndThreshold = defaultEndThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Observer{
		cfg:        cfg,
		suppressor: suppressor,
		events:     make(chan event, 64),
		advanceCh:  make(chan AdvanceReason, 4),
		lostCh:     make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// AdvanceRequests returns the channel of advance signals.
func (o *Observer) AdvanceRequests() <-chan AdvanceReason {
	return o.advanceCh
}

// SessionLost returns a channel that receives when the observed session
// goes away or becomes unreadable.
func (o *Observer) SessionLost() <-chan struct{} {
	return o.lostCh
}

// Start launches the observer goroutine.
func (o *Observer) Start() {
	go o.run()
}

// Stop terminates the observer and waits for the goroutine to exit.
// No advance signal is emitted after Stop returns.
func (o *Observer) Stop() {
	o.cancel()
	<-o.done
}

// Attach hands a live session handle to the observer. A previously attached
// handle is replaced.
func (o *Observer) Attach(h mediasession.Handle) {
	o.post(event{kind: evAttach, handle: h})
}

// Detach drops the current handle without signalling session loss.
func (o *Observer) Detach() {
	o.post(event{kind: evDetach})
}

// post enqueues an event for the run goroutine without blocking the caller.
func (o *Observer) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
	default:
		zlog.Warn().Msgf("observer: event queue full, dropping %d", ev.kind)
	}
}

// run is the single-writer loop. Each poll tick is scheduled after the
// previous one completes, so ticks never pile up behind a slow read.
func (o *Observer) run() {
	defer close(o.done)

	timer := time.NewTimer(o.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-timer.C:
			o.safely(o.handlePoll)
			timer.Reset(o.cfg.PollInterval)
		case ev := <-o.events:
			o.safely(func() { o.handleEvent(ev) })
		}
	}
}

// safely keeps a failure in one detection path from killing the loop.
func (o *Observer) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("observer: recovered from panic: %v", r)
		}
	}()
	fn()
}

func (o *Observer) handleEvent(ev event) {
	switch ev.kind {
	case evAttach:
		o.attach(ev.handle)
	case evDetach:
		o.handle = nil
		o.resetTrackState()
	case evDestroyed:
		zlog.Info().Msg("observer: session destroyed")
		o.markLost()
	case evMetadata:
		o.noteMetadata(ev.metadata)
	case evState:
		o.notePlayback(ev.playback)
	}
}

func (o *Observer) attach(h mediasession.Handle) {
	o.handle = h
	o.resetTrackState()

	h.OnMetadataChanged(func(md mediasession.Metadata) {
		o.post(event{kind: evMetadata, metadata: md})
	})
	h.OnStateChanged(func(pb mediasession.PlaybackInfo) {
		o.post(event{kind: evState, playback: pb})
	})
	h.OnDestroyed(func() {
		o.post(event{kind: evDestroyed})
	})

	// Prime the bookkeeping from the current snapshot so the first real
	// transition is detected against a known baseline.
	o.handlePoll()
	zlog.Info().Msg("observer: session attached")
}

func (o *Observer) resetTrackState() {
	o.lastIdentity = ""
	o.identityKnown = false
	o.lastPositionMs = 0
	o.lastDurationMs = 0
	o.lastStatus = mediasession.StatusUnknown
	o.endLatched = false
}

// markLost drops the handle and tells the connection manager to rescan.
// Observation is best-effort: read failures never surface as errors.
func (o *Observer) markLost() {
	if o.handle == nil {
		return
	}
	o.handle = nil
	o.resetTrackState()

	select {
	case o.lostCh <- struct{}{}:
	default:
	}
}

// handlePoll reads one advisory snapshot and runs both detectors against it.
func (o *Observer) handlePoll() {
	if o.handle == nil {
		return
	}

	md, err := o.handle.Metadata()
	if err != nil {
		zlog.Debug().Msgf("observer: metadata read failed: %v", err)
		o.markLost()
		return
	}
	pb, err := o.handle.Playback()
	if err != nil {
		zlog.Debug().Msgf("observer: playback read failed: %v", err)
		o.markLost()
		return
	}

	if md != nil {
		o.noteMetadata(*md)
	}
	if pb != nil {
		o.notePlayback(*pb)
	}
}

// noteMetadata runs the identity-based detector. The recorded identity is
// updated synchronously here, before any signal goes out, so a second look
// in the same or a later tick sees no further delta.
func (o *Observer) noteMetadata(md mediasession.Metadata) {
	o.lastDurationMs = md.DurationMs

	id := md.Identity()
	if id == "" {
		return
	}

	if !o.identityKnown {
		o.lastIdentity = id
		o.identityKnown = true
		return
	}
	if id == o.lastIdentity {
		return
	}

	// A different track is loaded. Whatever caused it, the old track's
	// position is stale now; clearing it keeps the position detector from
	// firing against the previous track's numbers.
	o.lastIdentity = id
	o.lastPositionMs = 0
	o.endLatched = false

	if o.suppressor != nil && o.suppressor.Active() {
		zlog.Debug().Msgf("observer: track change to %q inside suppression window, not advancing", id)
		return
	}

	zlog.Info().Msgf("observer: external track change detected: %q", id)
	o.emitAdvance(ReasonExternalChange)
}

// notePlayback runs the position-based detector: a track that stops or
// pauses within the end threshold of its duration ended naturally. The
// detection is latched so it fires once per track, and re-arms when
// playback resumes or the track changes.
func (o *Observer) notePlayback(pb mediasession.PlaybackInfo) {
	o.lastPositionMs = pb.PositionMs
	o.lastStatus = pb.Status

	switch pb.Status {
	case mediasession.StatusPlaying, mediasession.StatusBuffering:
		o.endLatched = false
		return
	case mediasession.StatusPaused, mediasession.StatusStopped:
	default:
		return
	}

	if o.endLatched {
		return
	}
	// Without a reported duration the identity detector is the only one
	// left for this track.
	if o.lastDurationMs <= 0 {
		return
	}
	if pb.PositionMs < o.lastDurationMs-o.cfg.EndThreshold.Milliseconds() {
		return
	}

	o.endLatched = true

	if o.suppressor != nil && o.suppressor.Active() {
		zlog.Debug().Msg("observer: natural end inside suppression window, not advancing")
		return
	}

	zlog.Info().Msgf("observer: natural end detected: position=%dms duration=%dms", pb.PositionMs, o.lastDurationMs)
	o.emitAdvance(ReasonNaturalEnd)
}

func (o *Observer) emitAdvance(reason AdvanceReason) {
	select {
	case o.advanceCh <- reason:
	case <-o.ctx.Done():
	default:
		// A pending advance is already queued; one is enough.
		zlog.Warn().Msgf("observer: advance channel full, dropping %s", reason)
	}
}
