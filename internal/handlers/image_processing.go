package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/reducer"
)

// readImage reads at most limit+1 bytes so an oversized file is still
// reported as too large rather than silently truncated.
func readImage(r io.Reader, filename, contentType string, limit int64) (*models.ImageAsset, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}

	mediaType := imageMediaType(data, filename, contentType)
	if cfg, format, err := reducer.DecodeConfig(data); err == nil {
		slog.Info("Image received", "filename", filename, "format", format, "width", cfg.Width, "height", cfg.Height, "bytes", len(data))
	} else {
		slog.Warn("Failed to get image dimensions", "filename", filename, "err", err)
	}

	return &models.ImageAsset{Data: data, MediaType: mediaType, Name: filename}, nil
}

// imageMediaType prefers the declared type, then the extension, then sniffing
func imageMediaType(data []byte, filename, declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return http.DetectContentType(data)
}

func (h *Handler) downloadImageFromURL(imageURL string) (*models.ImageAsset, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid image URL: %s", imageURL)
	}

	resp, err := h.httpClient.Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	filename := path.Base(parsed.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "image.jpg"
	}

	return readImage(resp.Body, filename, resp.Header.Get("Content-Type"), h.deps.Limits.MaxUploadBytes)
}
