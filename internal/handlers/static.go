package handlers

import (
	"bytes"
	"net/http"
	"strings"
)

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	filepath := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/static/"), "/")

	if sessionID, ok := strings.CutPrefix(filepath, "uploads/"); ok {
		h.serveUpload(w, r, sessionID)
		return
	}

	if filepath == "" {
		filepath = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(filepath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(filepath, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(filepath, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(filepath, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	// Serve files from the static directory
	fullPath := "static/" + filepath
	http.ServeFile(w, r, fullPath)
}

// serveUpload writes the preview bytes of a session's current upload
func (h *Handler) serveUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	room, exists := h.sessionStore.Get(sessionID)
	if !exists {
		http.NotFound(w, r)
		return
	}
	asset, ok := room.File()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", asset.MediaType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, asset.Name, room.CreatedAt, bytes.NewReader(asset.Data))
}
