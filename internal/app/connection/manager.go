// Package connection manages acquisition and loss of the media session
// observation handle.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/uniqueusername/listening-with/internal/app/mediasession"
)

// Status represents the observation channel state.
type Status int

const (
	StatusDisconnected       Status = iota // No session handle held
	StatusConnected                        // Handle acquired and attached
	StatusPermissionRequired               // Observation not authorized; waiting on the user
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusPermissionRequired:
		return "permission_required"
	default:
		return "unknown"
	}
}

// Attacher consumes acquired handles. Implemented by the session observer.
type Attacher interface {
	Attach(mediasession.Handle)
	Detach()
	SessionLost() <-chan struct{}
}

// StatusListener is notified on connected/disconnected transitions.
type StatusListener func(Status)

// Config holds connection manager configuration.
type Config struct {
	Target         string        // Identifier of the target player application
	RescanInterval time.Duration // Cadence of the periodic re-scan
	ScanTimeout    time.Duration // Per-scan deadline
}

const (
	defaultRescanInterval = 5 * time.Second
	defaultScanTimeout    = 3 * time.Second
	// Scans arrive from several sources (ticker, manual retry, resume,
	// session loss); the limiter bounds their combined frequency.
	scansPerSecond = 2
	scanBurst      = 2
)

// Manager owns the lifecycle of the observation handle: initial
// acquisition, periodic re-scan while disconnected, manual retry, re-scan
// on foreground resume, and reacquisition after session loss.
type Manager struct {
	cfg      Config
	channel  mediasession.Channel
	attacher Attacher
	listener StatusListener

	mu      sync.Mutex
	status  Status
	handle  mediasession.Handle
	limiter *rate.Limiter

	scanCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new connection manager. The listener may be nil.
func NewManager(cfg Config, channel mediasession.Channel, attacher Attacher, listener StatusListener) *Manager {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = defaultRescanInterval
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		channel:  channel,
		attacher: attacher,
		listener: listener,
		status:   StatusDisconnected,
		limiter:  rate.NewLimiter(scansPerSecond, scanBurst),
		scanCh:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start launches the scan loop and performs the initial acquisition.
func (m *Manager) Start() {
	go m.run()
	m.requestScan()
}

// Retry requests an immediate re-scan, e.g. after the user granted access.
func (m *Manager) Retry() {
	m.requestScan()
}

// Resume requests a re-scan because the host process regained foreground
// visibility.
func (m *Manager) Resume() {
	m.requestScan()
}

// Stop detaches and terminates the manager.
func (m *Manager) Stop() {
	m.cancel()
	<-m.done

	m.mu.Lock()
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.mu.Unlock()
	m.attacher.Detach()
}

func (m *Manager) requestScan() {
	select {
	case m.scanCh <- struct{}{}:
	default:
	}
}

func (m *Manager) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.attacher.SessionLost():
			zlog.Info().Msg("connection: session lost, rescanning")
			m.dropHandle()
			m.scan()
		case <-m.scanCh:
			m.scan()
		case <-ticker.C:
			if m.Status() == StatusConnected {
				continue
			}
			m.scan()
		}
	}
}

func (m *Manager) dropHandle() {
	m.mu.Lock()
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.mu.Unlock()
	m.setStatus(StatusDisconnected)
}

// scan attempts one acquisition. The rate limiter paces how often the
// external channel is hit regardless of which path asked for the scan;
// a request beyond the burst waits its turn rather than being dropped,
// so a manual retry always reaches the channel.
func (m *Manager) scan() {
	if m.Status() == StatusConnected {
		return
	}
	if err := m.limiter.Wait(m.ctx); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ScanTimeout)
	defer cancel()

	handles, err := m.channel.ListSessions(ctx, m.cfg.Target)
	switch {
	case errors.Is(err, mediasession.ErrPermissionDenied):
		zlog.Warn().Msgf("connection: observation not authorized for %q", m.cfg.Target)
		m.setStatus(StatusPermissionRequired)
		return
	case errors.Is(err, mediasession.ErrSessionUnavailable):
		m.setStatus(StatusDisconnected)
		return
	case err != nil:
		zlog.Error().Msgf("connection: scan failed: %v", err)
		m.setStatus(StatusDisconnected)
		return
	case len(handles) == 0:
		m.setStatus(StatusDisconnected)
		return
	}

	// One player, one observer: take the first session, release the rest.
	h := handles[0]
	for _, extra := range handles[1:] {
		extra.Close()
	}

	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()

	m.attacher.Attach(h)
	m.setStatus(StatusConnected)
	zlog.Info().Msgf("connection: session acquired for %q", m.cfg.Target)
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	m.mu.Unlock()

	if changed && m.listener != nil {
		m.listener(s)
	}
}
