package handlers

import (
	"net/http"

	"github.com/artinstitute/galleryroom/internal/styles"
)

type styleResponse struct {
	Label       string          `json:"label"`
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Sources     []styles.Source `json:"sources"`
	Accessed    string          `json:"accessed,omitempty"`
	Known       bool            `json:"known"`
}

// HandleStyles lists every known style, or describes one label
func (h *Handler) HandleStyles(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	if label != "" {
		h.writeJSON(w, h.describeStyle(label))
		return
	}

	labels := h.deps.Styles.Labels()
	list := make([]styleResponse, 0, len(labels))
	for _, l := range labels {
		list = append(list, h.describeStyle(l))
	}
	h.writeJSON(w, list)
}

func (h *Handler) describeStyle(label string) styleResponse {
	meta, known := h.deps.Styles.Get(label)
	return styleResponse{
		Label:       label,
		Name:        styles.FormatName(label),
		Title:       styles.Title(label),
		Description: h.deps.Styles.Description(label),
		Sources:     meta.Sources,
		Accessed:    meta.Accessed,
		Known:       known,
	}
}
