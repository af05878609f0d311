// Package httpapi exposes the room over a small HTTP/JSON surface.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/uniqueusername/listening-with/internal/app/queue"
	"github.com/uniqueusername/listening-with/internal/app/room"
	"github.com/uniqueusername/listening-with/internal/domain/song"
)

// Server serves the room's inbound API.
type Server struct {
	room *room.Manager
}

// New creates a new API server for the given room.
func New(r *room.Manager) *Server {
	return &Server{room: r}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/queue/songs", s.handleSubmit)
	mux.HandleFunc("POST /v1/queue/import", s.handleImport)
	mux.HandleFunc("GET /v1/queue", s.handleQueue)
	mux.HandleFunc("GET /v1/session", s.handleSession)
	mux.HandleFunc("POST /v1/session/end", s.handleEnd)
	mux.HandleFunc("POST /v1/session/retry", s.handleRetry)
	mux.HandleFunc("POST /v1/session/resume", s.handleResume)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

type submitRequest struct {
	TrackID     string `json:"track_id"`
	SubmittedBy string `json:"submitted_by"`
}

type importRequest struct {
	PlaylistURL string `json:"playlist_url"`
	DisplayName string `json:"display_name"`
	SubmittedBy string `json:"submitted_by"`
	Shuffle     bool   `json:"shuffle"`
}

type songDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumArtURL string `json:"album_art_url,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	Source      string `json:"source,omitempty"`
	AddedAt     string `json:"added_at"`
}

type queueDTO struct {
	Primary    []songDTO `json:"primary"`
	Auxiliary  []songDTO `json:"auxiliary"`
	NowPlaying *songDTO  `json:"now_playing,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id is required")
		return
	}

	qs, err := s.room.Submit(r.Context(), req.TrackID, req.SubmittedBy)
	if err != nil {
		zlog.Error().Msgf("api: submit failed: %v", err)
		writeError(w, http.StatusBadGateway, "could not queue track")
		return
	}
	writeJSON(w, http.StatusCreated, toSongDTO(*qs))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlaylistURL == "" {
		writeError(w, http.StatusBadRequest, "playlist_url is required")
		return
	}

	count, err := s.room.ImportPlaylist(r.Context(), req.PlaylistURL, req.DisplayName, req.SubmittedBy, req.Shuffle)
	if err != nil {
		zlog.Error().Msgf("api: import failed: %v", err)
		writeError(w, http.StatusBadGateway, "could not import playlist")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": count})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toQueueDTO(s.room.Snapshot()))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"room_id":    s.room.ID(),
		"connection": s.room.ConnectionStatus().String(),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.room.EndSession()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.room.RetryConnection()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.room.Resume()
	w.WriteHeader(http.StatusAccepted)
}

func toSongDTO(qs song.QueuedSong) songDTO {
	return songDTO{
		ID:          qs.Song.ID,
		Title:       qs.Song.Title,
		Artist:      qs.Song.Artist,
		AlbumArtURL: qs.Song.AlbumArtURL,
		DurationMs:  qs.Song.Duration.Milliseconds(),
		SubmittedBy: qs.SubmittedBy,
		Source:      qs.Provenance.SourceName,
		AddedAt:     qs.AddedAt.Format(time.RFC3339),
	}
}

func toQueueDTO(snap queue.Snapshot) queueDTO {
	dto := queueDTO{
		Primary:   make([]songDTO, len(snap.Primary)),
		Auxiliary: make([]songDTO, len(snap.Auxiliary)),
	}
	for i, qs := range snap.Primary {
		dto.Primary[i] = toSongDTO(qs)
	}
	for i, qs := range snap.Auxiliary {
		dto.Auxiliary[i] = toSongDTO(qs)
	}
	if snap.NowPlaying != nil {
		d := toSongDTO(*snap.NowPlaying)
		dto.NowPlaying = &d
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Msgf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
