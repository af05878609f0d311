// Package mpris implements the media session channel over the MPRIS
// D-Bus interface exposed by desktop media players.
package mpris

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/mediasession"
)

const (
	busPrefix       = "org.mpris.MediaPlayer2."
	objectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propsInterface  = "org.freedesktop.DBus.Properties"
)

// Channel lists MPRIS players on the session bus.
type Channel struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewChannel creates an MPRIS channel. The bus connection is established
// lazily on the first scan.
func NewChannel() *Channel {
	return &Channel{}
}

// connect establishes the session bus connection once. A bus that cannot
// be reached means this process is not allowed to observe players at all,
// which is a permission problem, not a missing player.
func (c *Channel) connect() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, errors.Wrapf(mediasession.ErrPermissionDenied, "session bus: %v", err)
	}
	c.conn = conn
	return conn, nil
}

// ListSessions returns observation handles for MPRIS players whose bus
// name matches the target application.
func (c *Channel) ListSessions(ctx context.Context, target string) ([]mediasession.Handle, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}

	var names []string
	call := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0)
	if err := call.Store(&names); err != nil {
		return nil, errors.Wrap(err, "list bus names")
	}

	target = strings.ToLower(target)
	var handles []mediasession.Handle
	for _, name := range names {
		if !strings.HasPrefix(name, busPrefix) {
			continue
		}
		if target != "" && !strings.Contains(strings.ToLower(name), target) {
			continue
		}

		s, err := newSession(conn, name)
		if err != nil {
			zlog.Warn().Msgf("mpris: skipping %s: %v", name, err)
			continue
		}
		handles = append(handles, s)
	}

	if len(handles) == 0 {
		return nil, mediasession.ErrSessionUnavailable
	}
	return handles, nil
}

// Close drops the bus connection.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
