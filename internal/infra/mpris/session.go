package mpris

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/mediasession"
)

// session is an observation handle for one MPRIS player.
type session struct {
	conn *dbus.Conn
	name string
	obj  dbus.BusObject

	mu          sync.Mutex
	onMetadata  func(mediasession.Metadata)
	onState     func(mediasession.PlaybackInfo)
	onDestroyed func()

	signals   chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *dbus.Conn, name string) (*session, error) {
	s := &session{
		conn:    conn,
		name:    name,
		obj:     conn.Object(name, objectPath),
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchSender(name),
	); err != nil {
		return nil, errors.Wrap(err, "subscribe to property changes")
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	); err != nil {
		return nil, errors.Wrap(err, "subscribe to name owner changes")
	}

	conn.Signal(s.signals)
	go s.watch()

	return s, nil
}

// Metadata returns the track the player currently reports.
func (s *session) Metadata() (*mediasession.Metadata, error) {
	v, err := s.obj.GetProperty(playerInterface + ".Metadata")
	if err != nil {
		return nil, errors.Wrap(err, "get metadata")
	}
	raw, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Newf("unexpected metadata shape %T", v.Value())
	}
	return decodeMetadata(raw)
}

// Playback returns the current transport state and position.
func (s *session) Playback() (*mediasession.PlaybackInfo, error) {
	statusV, err := s.obj.GetProperty(playerInterface + ".PlaybackStatus")
	if err != nil {
		return nil, errors.Wrap(err, "get playback status")
	}
	status, _ := statusV.Value().(string)

	// Position is optional; some players do not expose it.
	var posUs int64
	if posV, err := s.obj.GetProperty(playerInterface + ".Position"); err == nil {
		posUs, _ = posV.Value().(int64)
	}

	return &mediasession.PlaybackInfo{
		Status:     parseStatus(status),
		PositionMs: posUs / 1000,
	}, nil
}

// OnMetadataChanged registers the metadata transition callback.
func (s *session) OnMetadataChanged(cb func(mediasession.Metadata)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMetadata = cb
}

// OnStateChanged registers the transport transition callback.
func (s *session) OnStateChanged(cb func(mediasession.PlaybackInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = cb
}

// OnDestroyed registers the teardown callback.
func (s *session) OnDestroyed(cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDestroyed = cb
}

// Close detaches the handle and stops callback delivery.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(propsInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchSender(s.name),
		)
		_ = s.conn.RemoveMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, s.name),
		)
		s.conn.RemoveSignal(s.signals)
	})
}

// watch translates bus signals into handle callbacks.
func (s *session) watch() {
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-s.signals:
			if !ok {
				return
			}
			s.handleSignal(sig)
		}
	}
}

func (s *session) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propsInterface + ".PropertiesChanged":
		s.handlePropertiesChanged(sig)
	case "org.freedesktop.DBus.NameOwnerChanged":
		s.handleNameOwnerChanged(sig)
	}
}

func (s *session) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	if iface != playerInterface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if v, ok := changed["Metadata"]; ok {
		if raw, ok := v.Value().(map[string]dbus.Variant); ok {
			md, err := decodeMetadata(raw)
			if err != nil {
				zlog.Debug().Msgf("mpris: metadata decode failed: %v", err)
			} else if cb := s.metadataCallback(); cb != nil {
				cb(*md)
			}
		}
	}

	if v, ok := changed["PlaybackStatus"]; ok {
		status, _ := v.Value().(string)
		info := mediasession.PlaybackInfo{Status: parseStatus(status)}
		// The signal carries no position; fetch it best-effort so the
		// end-of-track check sees where the transport stopped.
		if posV, err := s.obj.GetProperty(playerInterface + ".Position"); err == nil {
			if posUs, ok := posV.Value().(int64); ok {
				info.PositionMs = posUs / 1000
			}
		}
		if cb := s.stateCallback(); cb != nil {
			cb(info)
		}
	}
}

func (s *session) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	if name != s.name || newOwner != "" {
		return
	}
	if cb := s.destroyedCallback(); cb != nil {
		cb()
	}
}

func (s *session) metadataCallback() func(mediasession.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onMetadata
}

func (s *session) stateCallback() func(mediasession.PlaybackInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onState
}

func (s *session) destroyedCallback() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDestroyed
}

// rawMetadata is the wire shape of the MPRIS metadata map. Unknown keys
// are dropped at this boundary.
type rawMetadata struct {
	TrackID  string   `mapstructure:"mpris:trackid"`
	LengthUs int64    `mapstructure:"mpris:length"`
	Title    string   `mapstructure:"xesam:title"`
	Artists  []string `mapstructure:"xesam:artist"`
}

// noTrackPath is the MPRIS sentinel for "nothing loaded".
const noTrackPath = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

// decodeMetadata converts the player's string-keyed variant map into the
// fixed metadata struct consumed by the rest of the system.
func decodeMetadata(raw map[string]dbus.Variant) (*mediasession.Metadata, error) {
	flat := make(map[string]any, len(raw))
	for k, v := range raw {
		flat[k] = v.Value()
	}

	var rm rawMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rm,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build metadata decoder")
	}
	if err := dec.Decode(flat); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}

	if rm.TrackID == noTrackPath {
		rm.TrackID = ""
	}

	md := &mediasession.Metadata{
		TrackID:    rm.TrackID,
		Title:      rm.Title,
		DurationMs: rm.LengthUs / 1000,
	}
	if len(rm.Artists) > 0 {
		md.Artist = strings.Join(rm.Artists, ", ")
	}
	return md, nil
}

// parseStatus maps the MPRIS PlaybackStatus string to the channel enum.
func parseStatus(s string) mediasession.PlaybackStatus {
	switch s {
	case "Playing":
		return mediasession.StatusPlaying
	case "Paused":
		return mediasession.StatusPaused
	case "Stopped":
		return mediasession.StatusStopped
	default:
		return mediasession.StatusUnknown
	}
}
