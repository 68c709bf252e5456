package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/pipeline"
	"github.com/artinstitute/galleryroom/internal/storage"
	"github.com/google/uuid"
)

type Handler struct {
	sessionStore   *storage.SessionStore
	deps           pipeline.Deps
	analyzeTimeout time.Duration
	httpClient     *http.Client

	// background analyze and retry runs
	wg sync.WaitGroup
}

// New creates a handler whose rooms share deps. Background work started by
// a request is bounded by analyzeTimeout.
func New(deps pipeline.Deps, analyzeTimeout time.Duration) *Handler {
	if deps.Limits == (pipeline.Limits{}) {
		deps.Limits = pipeline.DefaultLimits()
	}
	if analyzeTimeout <= 0 {
		analyzeTimeout = time.Minute
	}
	return &Handler{
		sessionStore:   storage.New(),
		deps:           deps,
		analyzeTimeout: analyzeTimeout,
		httpClient: &http.Client{
			Timeout: analyzeTimeout / 2,
		},
	}
}

// Register installs every API route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/upload", h.HandleUpload)
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("POST /api/sessions/{id}/file", h.HandleSelectFile)
	mux.HandleFunc("POST /api/sessions/{id}/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/sessions/{id}/gallery/retry", h.HandleRetryGallery)
	mux.HandleFunc("GET /api/sessions/{id}/carousel", h.HandleCarousel)
	mux.HandleFunc("POST /api/sessions/{id}/carousel/input", h.HandleCarouselInput)
	mux.HandleFunc("GET /api/sessions/{id}/carousel/ws", h.HandleCarouselStream)
	mux.HandleFunc("POST /api/sessions/{id}/artwork/{index}", h.HandleArtwork)
	mux.HandleFunc("DELETE /api/sessions/{id}/artwork", h.HandleArtwork)
	mux.HandleFunc("GET /api/styles", h.HandleStyles)
	mux.HandleFunc("GET /api/styles/{label}", h.HandleStyles)
	mux.HandleFunc("/static/", h.HandleStatic)
}

// Wait blocks until background analyze and retry runs finish
func (h *Handler) Wait() {
	h.wg.Wait()
}

// SweepSessions drops rooms older than ttl until ctx is done. A ttl of zero
// keeps rooms until they are deleted.
func (h *Handler) SweepSessions(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.expireSessions(now.Add(-ttl))
		}
	}
}

func (h *Handler) expireSessions(cutoff time.Time) int {
	expired := h.sessionStore.Expire(cutoff)
	for _, room := range expired {
		// supersede anything still in flight
		_ = room.SelectFile(nil)
	}
	if len(expired) > 0 {
		slog.Info("Expired sessions", "count", len(expired), "remaining", h.sessionStore.Len())
	}
	return len(expired)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeRoomError maps a pipeline error onto a status code. The message is
// the one already recorded on the room.
func (h *Handler) writeRoomError(w http.ResponseWriter, room *pipeline.Room, err error) {
	snap := room.Snapshot()
	message := snap.Error
	if message == "" {
		message = err.Error()
	}

	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, message, http.StatusBadRequest)
	case errors.Is(err, models.ErrMissingEndpoint):
		h.writeError(w, message, http.StatusServiceUnavailable)
	case errors.Is(err, pipeline.ErrRetryUnavailable):
		h.writeError(w, err.Error(), http.StatusConflict)
	default:
		h.writeError(w, message, http.StatusInternalServerError)
	}
}

// Session helpers
func (h *Handler) getRoomOrError(w http.ResponseWriter, r *http.Request) (*pipeline.Room, bool) {
	room, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return room, true
}

func (h *Handler) newRoom() *pipeline.Room {
	return pipeline.NewRoom(uuid.NewString(), h.deps)
}

// runInBackground runs work detached from the request with the analyze deadline
func (h *Handler) runInBackground(room *pipeline.Room, step string, work func(context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.analyzeTimeout)
		defer cancel()
		if err := work(ctx); err != nil {
			slog.Warn("Background step failed", "session_id", room.ID, "step", step, "err", err)
		}
	}()
}

func viewportWidth(r *http.Request) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get("viewport"), 64)
	if err != nil {
		return 0
	}
	return v
}
