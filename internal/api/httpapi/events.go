package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/uniqueusername/listening-with/internal/app/notification"
)

// eventDTO is the wire shape of a notification on the SSE stream.
type eventDTO struct {
	Type       string    `json:"type"`
	SequenceNo uint64    `json:"sequence_no"`
	Song       *songDTO  `json:"song,omitempty"`
	Queue      *queueDTO `json:"queue,omitempty"`
}

// sseStream adapts an HTTP response to a notification stream.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// Send writes one notification as a server-sent event.
func (s *sseStream) Send(n *notification.Notification) error {
	dto := eventDTO{
		Type:       n.Type.String(),
		SequenceNo: n.SequenceNo,
	}
	if n.Song != nil {
		d := toSongDTO(*n.Song)
		dto.Song = &d
	}
	if n.Queue != nil {
		q := toQueueDTO(*n.Queue)
		dto.Queue = &q
	}

	data, err := json.Marshal(dto)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// handleEvents streams room notifications until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := &sseStream{w: w, flusher: flusher}
	id := s.room.Notifications().Subscribe(stream)
	defer s.room.Notifications().Unsubscribe(id)

	select {
	case <-r.Context().Done():
	case <-s.room.Done():
	}
}
