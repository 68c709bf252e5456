package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/pipeline"
)

// HandleUpload opens a new gallery room from a multipart file or a JSON
// {"image_url": ...} body.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	asset, ok := h.readRequestImage(w, r)
	if !ok {
		return
	}

	room := h.newRoom()
	if err := room.SelectFile(asset); err != nil {
		h.writeRoomError(w, room, err)
		return
	}
	h.sessionStore.Set(room.ID, room)

	h.writeJSONStatus(w, http.StatusCreated, room.Snapshot())
}

// HandleSelectFile replaces the upload of an existing room
func (h *Handler) HandleSelectFile(w http.ResponseWriter, r *http.Request) {
	room, ok := h.getRoomOrError(w, r)
	if !ok {
		return
	}

	asset, ok := h.readRequestImage(w, r)
	if !ok {
		return
	}

	if err := room.SelectFile(asset); err != nil {
		h.writeRoomError(w, room, err)
		return
	}
	h.writeJSON(w, room.Snapshot())
}

func (h *Handler) readRequestImage(w http.ResponseWriter, r *http.Request) (*models.ImageAsset, bool) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return h.readURLImage(w, r)
	}
	return h.readFileImage(w, r)
}

func (h *Handler) readURLImage(w http.ResponseWriter, r *http.Request) (*models.ImageAsset, bool) {
	var request struct {
		ImageURL string `json:"image_url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return nil, false
	}

	asset, err := h.downloadImageFromURL(request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return asset, true
}

func (h *Handler) readFileImage(w http.ResponseWriter, r *http.Request) (*models.ImageAsset, bool) {
	// leave room for the multipart envelope around a file at the limit
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.Limits.MaxUploadBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, pipeline.TooLargeMessage(h.deps.Limits.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	asset, err := readImage(file, header.Filename, header.Header.Get("Content-Type"), h.deps.Limits.MaxUploadBytes)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return asset, true
}
