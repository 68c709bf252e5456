package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artinstitute/galleryroom/internal/models"
	"golang.org/x/sync/singleflight"
)

// HTTPSource queries the remote gallery endpoint
type HTTPSource struct {
	BaseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// NewHTTPSource creates a gallery client for baseURL with a request timeout
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a base URL is set
func (s *HTTPSource) Configured() bool {
	return s != nil && s.BaseURL != ""
}

// Fetch returns up to limit works for style. Identical queries in flight at
// the same time share one request. The shared request runs detached from any
// single caller and is bounded by the client timeout; each caller still
// returns as soon as its own ctx is done.
func (s *HTTPSource) Fetch(ctx context.Context, style string, limit int) ([]models.CarouselItem, error) {
	if s.BaseURL == "" {
		return nil, models.ErrMissingEndpoint
	}

	key := strings.ToLower(style) + "|" + strconv.Itoa(limit)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetch(shared, style, limit)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		slog.Debug("Gallery request shared", "style", style, "limit", limit)
	}

	items, ok := res.Val.([]models.CarouselItem)
	if !ok {
		return nil, fmt.Errorf("unexpected gallery result type %T", res.Val)
	}
	out := make([]models.CarouselItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, style string, limit int) ([]models.CarouselItem, error) {
	query := url.Values{}
	query.Set("style", style)
	query.Set("limit", strconv.Itoa(limit))
	endpoint := s.BaseURL + "/gallery?" + query.Encode()

	slog.Info("Gallery request", "style", style, "limit", limit, "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &models.ServiceError{Service: "Gallery", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return nil, &models.ServiceError{Service: "Gallery", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	items := Trim(payload.Items, limit)
	slog.Info("Gallery response", "style", payload.Style, "items", len(payload.Items), "kept", len(items))
	return items, nil
}
