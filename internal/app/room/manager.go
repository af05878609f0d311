// Package room wires the queue, observer, coordinator and connection
// manager together for a single listening room.
package room

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/connection"
	"github.com/uniqueusername/listening-with/internal/app/coordinator"
	"github.com/uniqueusername/listening-with/internal/app/mediasession"
	"github.com/uniqueusername/listening-with/internal/app/notification"
	"github.com/uniqueusername/listening-with/internal/app/observer"
	"github.com/uniqueusername/listening-with/internal/app/queue"
	"github.com/uniqueusername/listening-with/internal/domain/song"
	"github.com/uniqueusername/listening-with/internal/infra/config"
)

// Catalog resolves submitted identifiers into playable songs.
type Catalog interface {
	GetSong(ctx context.Context, id string) (*song.Song, error)
	GetPlaylistSongs(ctx context.Context, url string) ([]song.Song, error)
}

// Manager owns one room: the queue, the player observation and the
// coordination between them.
type Manager struct {
	id       string
	cfg      *config.Config
	catalog  Catalog
	store    *queue.Store
	window   *coordinator.SuppressionWindow
	obs      *observer.Observer
	coord    *coordinator.Coordinator
	conn     *connection.Manager
	notifier *notification.Manager

	endOnce sync.Once
	done    chan struct{}
}

// NewManager creates a room manager from configuration and the external
// collaborators.
func NewManager(cfg *config.Config, catalog Catalog, trigger coordinator.Trigger, channel mediasession.Channel) *Manager {
	notifier := notification.NewManager()
	store := queue.NewStore()
	window := coordinator.NewSuppressionWindow()

	obs := observer.New(observer.Config{
		PollInterval: cfg.Observer.PollInterval(),
		EndThreshold: cfg.Observer.EndThreshold(),
	}, window)

	coord := coordinator.New(coordinator.Config{
		SuppressionWindow: cfg.Playback.SuppressionWindow(),
	}, store, trigger, window, obs, notifier)

	conn := connection.NewManager(connection.Config{
		Target:         cfg.Connection.Target,
		RescanInterval: cfg.Connection.RescanInterval(),
	}, channel, obs, func(s connection.Status) {
		switch s {
		case connection.StatusConnected:
			notifier.SessionConnected()
		default:
			notifier.SessionDisconnected()
		}
	})

	return &Manager{
		id:       uuid.New().String(),
		cfg:      cfg,
		catalog:  catalog,
		store:    store,
		window:   window,
		obs:      obs,
		coord:    coord,
		conn:     conn,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

// ID returns the room identifier.
func (m *Manager) ID() string {
	return m.id
}

// Notifications returns the room's notification manager.
func (m *Manager) Notifications() *notification.Manager {
	return m.notifier
}

// Start brings the room up: the observer loop, the coordinator loop and
// the session acquisition.
func (m *Manager) Start() {
	zlog.Info().Msgf("room %s: starting (target=%s)", m.id, m.cfg.Connection.Target)
	m.obs.Start()
	m.coord.Start()
	m.conn.Start()
}

// Submit resolves a track identifier and appends it to the primary queue.
func (m *Manager) Submit(ctx context.Context, trackID, submittedBy string) (*song.QueuedSong, error) {
	s, err := m.catalog.GetSong(ctx, trackID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve submitted track")
	}

	qs := song.NewUserSubmission(*s, submittedBy)
	if err := m.coord.Submit(ctx, qs); err != nil {
		return nil, err
	}
	return &qs, nil
}

// ImportPlaylist resolves a playlist and appends its tracks to the
// auxiliary queue, optionally shuffled.
func (m *Manager) ImportPlaylist(ctx context.Context, playlistURL, displayName, submittedBy string, shuffle bool) (int, error) {
	songs, err := m.catalog.GetPlaylistSongs(ctx, playlistURL)
	if err != nil {
		return 0, errors.Wrap(err, "resolve playlist")
	}

	batch := make([]song.QueuedSong, len(songs))
	for i, s := range songs {
		batch[i] = song.NewImported(s, submittedBy, displayName, playlistURL)
	}
	if err := m.coord.ImportBatch(ctx, batch, shuffle); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Snapshot returns the current queue contents.
func (m *Manager) Snapshot() queue.Snapshot {
	return m.store.Snapshot()
}

// ConnectionStatus returns the observation channel state.
func (m *Manager) ConnectionStatus() connection.Status {
	return m.conn.Status()
}

// RetryConnection requests an immediate session re-scan.
func (m *Manager) RetryConnection() {
	m.conn.Retry()
}

// Resume tells the connection manager the host regained foreground
// visibility.
func (m *Manager) Resume() {
	m.conn.Resume()
}

// EndSession tears the room down. The poll loop is stopped, the pending
// suppression expiry cancelled, the channel detached and the queue
// cleared before this returns; no late callback fires against stale state.
func (m *Manager) EndSession() {
	m.endOnce.Do(func() {
		zlog.Info().Msgf("room %s: ending session", m.id)
		m.conn.Stop()
		m.coord.EndSession()
		m.obs.Stop()
		m.notifier.Close()
		close(m.done)
	})
}

// Done returns a channel closed when the session has ended.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
