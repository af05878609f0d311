// Package coordinator drives the external player from the room queue.
package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/notification"
	"github.com/uniqueusername/listening-with/internal/app/observer"
	"github.com/uniqueusername/listening-with/internal/app/queue"
	"github.com/uniqueusername/listening-with/internal/domain/song"
)

// Errors
var (
	ErrAdvanceFailed = errors.New("failed to start the next queued song")
	ErrSessionEnded  = errors.New("session has ended")
)

// TriggerStatus is the outcome of a play invocation.
type TriggerStatus int

const (
	TriggerDispatched    TriggerStatus = iota // Request went out; playback is not confirmed
	TriggerTargetMissing                      // Player application is not available
	TriggerFailed                             // Invocation failed for another reason
)

// String returns the string representation of the trigger status.
func (s TriggerStatus) String() string {
	switch s {
	case TriggerDispatched:
		return "dispatched"
	case TriggerTargetMissing:
		return "target_missing"
	case TriggerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TriggerResult carries the trigger outcome and any error detail.
type TriggerResult struct {
	Status TriggerStatus
	Err    error
}

// Trigger fires a one-shot "play this item" request at the external player.
// Dispatched means exactly that the request was sent; the player confirms
// nothing back through this path.
type Trigger interface {
	Play(ctx context.Context, songID string) TriggerResult
}

// Config holds coordinator configuration.
type Config struct {
	// SuppressionWindow must exceed the expected propagation delay of the
	// observation channel (empirically around 2s).
	SuppressionWindow time.Duration
}

const defaultSuppressionWindow = 2500 * time.Millisecond

// maxConsecutiveTriggerFailures bounds one advance cycle: a single bad
// entry is skipped, a second failure in a row stops the cycle.
const maxConsecutiveTriggerFailures = 2

// Coordinator consumes advance requests from the observer, pulls the next
// song from the queue and dispatches the play trigger, arming the
// suppression window so the resulting track change is not misread as an
// external skip.
type Coordinator struct {
	cfg      Config
	store    *queue.Store
	trigger  Trigger
	window   *SuppressionWindow
	obs      *observer.Observer
	notifier *notification.Manager

	// mu serializes advance cycles against submissions that kick playback
	// while idle.
	mu      sync.Mutex
	ended   bool
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new playback coordinator.
func New(cfg Config, store *queue.Store, trigger Trigger, window *SuppressionWindow, obs *observer.Observer, notifier *notification.Manager) *Coordinator {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = defaultSuppressionWindow
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		trigger:  trigger,
		window:   window,
		obs:      obs,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the advance loop.
func (c *Coordinator) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.run()
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case reason := <-c.obs.AdvanceRequests():
			zlog.Debug().Msgf("coordinator: advance requested (%s)", reason)
			if err := c.Advance(c.ctx); err != nil && !errors.Is(err, ErrSessionEnded) {
				zlog.Error().Msgf("coordinator: advance failed: %v", err)
			}
		}
	}
}

// Advance plays the next queued song. An empty queue is not an error: the
// now-playing slot is cleared, queue exhaustion is announced and the
// player is left alone.
func (c *Coordinator) Advance(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked(ctx)
}

// advanceLocked runs one advance cycle. A trigger failure skips to the next
// song once rather than stalling on one bad entry; a second consecutive
// failure stops the cycle and surfaces an error.
func (c *Coordinator) advanceLocked(ctx context.Context) error {
	if c.ended {
		return ErrSessionEnded
	}

	for attempt := 0; attempt < maxConsecutiveTriggerFailures; attempt++ {
		next := c.store.DequeueNext()
		if next == nil {
			zlog.Info().Msg("coordinator: queue exhausted")
			c.notifier.QueueExhausted()
			return nil
		}

		// Arm before dispatching: the channel may report the change before
		// the trigger call returns.
		c.window.Arm(c.cfg.SuppressionWindow)

		res := c.trigger.Play(ctx, next.Song.ID)
		switch res.Status {
		case TriggerDispatched:
			zlog.Info().Msgf("coordinator: dispatched %q by %s (submitted by %q)",
				next.Song.Title, next.Song.Artist, next.SubmittedBy)
			c.notifier.NowPlaying(next)
			c.notifier.QueueUpdated(c.store.Snapshot())
			return nil
		case TriggerTargetMissing:
			zlog.Error().Msgf("coordinator: player not available, skipping %q: %v", next.Song.Title, res.Err)
		default:
			zlog.Error().Msgf("coordinator: trigger failed for %q: %v", next.Song.Title, res.Err)
		}
		c.notifier.TriggerFailed(next)
	}

	// The last dequeued song was never dispatched. Leaving it in the
	// now-playing slot would make the room look busy and block the idle
	// kick on the next submission.
	c.store.ClearNowPlaying()
	return ErrAdvanceFailed
}

// Submit appends a user submission and starts playback if nothing is
// currently playing.
func (c *Coordinator) Submit(ctx context.Context, qs song.QueuedSong) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return ErrSessionEnded
	}

	c.store.EnqueuePrimary(qs)
	zlog.Info().Msgf("coordinator: queued %q by %s (submitted by %q)",
		qs.Song.Title, qs.Song.Artist, qs.SubmittedBy)
	c.notifier.QueueUpdated(c.store.Snapshot())

	return c.kickIfIdleLocked(ctx)
}

// ImportBatch appends a bulk import to the auxiliary queue, optionally
// shuffling the batch first, and starts playback if idle.
func (c *Coordinator) ImportBatch(ctx context.Context, batch []song.QueuedSong, shuffle bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return ErrSessionEnded
	}
	if len(batch) == 0 {
		return nil
	}

	if shuffle {
		shuffleBatch(batch)
	}
	c.store.EnqueueAuxiliary(batch)
	zlog.Info().Msgf("coordinator: imported %d songs", len(batch))
	c.notifier.QueueUpdated(c.store.Snapshot())

	return c.kickIfIdleLocked(ctx)
}

// kickIfIdleLocked starts playback when songs are waiting but nothing is
// playing. An idle player with a non-empty queue must not wait for an
// external event.
func (c *Coordinator) kickIfIdleLocked(ctx context.Context) error {
	if c.store.NowPlaying() != nil {
		return nil
	}
	return c.advanceLocked(ctx)
}

// EndSession tears the coordinator down: the advance loop stops, the
// suppression expiry is cancelled and the queue is cleared, all before
// returning. No advance runs after this.
func (c *Coordinator) EndSession() {
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()

	c.cancel()
	if c.started.Load() {
		<-c.done
	}

	c.window.Cancel()
	c.store.Clear()
	zlog.Info().Msg("coordinator: session ended, queue cleared")
}

// shuffleBatch is a Fisher-Yates shuffle over the batch only; existing
// queue contents are never reordered.
func shuffleBatch(batch []song.QueuedSong) {
	for i := len(batch) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		batch[i], batch[j] = batch[j], batch[i]
	}
}
