package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artinstitute/galleryroom/internal/carousel"
	"github.com/artinstitute/galleryroom/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleCarousel returns the projected layout for ?viewport=W
func (h *Handler) HandleCarousel(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, room.Layout(viewportWidth(r)))
}

// HandleCarouselInput applies one input event and returns the new layout
func (h *Handler) HandleCarouselInput(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	var ev carousel.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	room.HandleInput(ev)
	h.writeJSON(w, room.Layout(viewportWidth(r)))
}

// HandleArtwork opens (POST .../artwork/{index}) or closes (DELETE) the
// detail view of a carousel item.
func (h *Handler) HandleArtwork(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	if r.Method == "DELETE" {
		room.CloseArtwork()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, "Invalid artwork index", http.StatusBadRequest)
		return
	}
	artwork, err := room.OpenArtwork(index)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotInteractive) {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, artwork)
}

// HandleCarouselStream pushes the layout on every focus change and accepts
// input events from the browser.
func (h *Handler) HandleCarouselStream(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}
	viewport := viewportWidth(r)

	connection, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", "err", err)
		return
	}
	defer connection.Close()

	connection.SetReadLimit(wsReadLimit)
	_ = connection.SetReadDeadline(time.Now().Add(wsReadTimeout))
	connection.SetPongHandler(func(string) error {
		return connection.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	updates, unsubscribe := room.Carousel().Subscribe()
	defer unsubscribe()

	slog.Info("Carousel viewer connected", "session_id", room.ID)

	// the reader owns inbound events; the loop below is the only writer
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var ev carousel.Event
			if err := connection.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("Carousel viewer read failed", "session_id", room.ID, "err", err)
				}
				return
			}
			_ = connection.SetReadDeadline(time.Now().Add(wsReadTimeout))
			room.HandleInput(ev)
		}
	}()

	send := func() error {
		_ = connection.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return connection.WriteJSON(room.Layout(viewport))
	}
	if err := send(); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			slog.Info("Carousel viewer disconnected", "session_id", room.ID)
			return
		case <-r.Context().Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := send(); err != nil {
				slog.Warn("Carousel viewer write failed", "session_id", room.ID, "err", err)
				return
			}
		case <-ping.C:
			_ = connection.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
