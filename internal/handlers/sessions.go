package handlers

import (
	"net/http"

	"github.com/artinstitute/galleryroom/internal/pipeline"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		rooms := h.sessionStore.GetAll()
		sessionList := make([]pipeline.Snapshot, 0, len(rooms))
		for _, room := range rooms {
			sessionList = append(sessionList, room.Snapshot())
		}
		h.writeJSON(w, sessionList)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, room.Snapshot())
	case "DELETE":
		// supersede anything still in flight before dropping the room
		_ = room.SelectFile(nil)
		h.sessionStore.Delete(room.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAnalyze starts reduce, predict and gallery for the room's upload and
// answers 202 with the loading snapshot.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	run, err := room.StartAnalyze()
	if err != nil {
		h.writeRoomError(w, room, err)
		return
	}
	snapshot := room.Snapshot()
	h.runInBackground(room, "analyze", run)

	h.writeJSONStatus(w, http.StatusAccepted, snapshot)
}

// HandleRetryGallery repeats a failed gallery load for the predicted style
func (h *Handler) HandleRetryGallery(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	run, err := room.StartRetryGallery()
	if err != nil {
		h.writeRoomError(w, room, err)
		return
	}
	snapshot := room.Snapshot()
	h.runInBackground(room, "gallery", run)

	h.writeJSONStatus(w, http.StatusAccepted, snapshot)
}
