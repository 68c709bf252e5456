package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/artinstitute/galleryroom/internal/models"
)

// HTTPPredictor calls the remote predict-style endpoint
type HTTPPredictor struct {
	BaseURL    string
	httpClient *http.Client
}

// NewHTTPPredictor creates a predictor for baseURL with a request timeout
func NewHTTPPredictor(baseURL string, timeout time.Duration) *HTTPPredictor {
	return &HTTPPredictor{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a base URL is set
func (p *HTTPPredictor) Configured() bool {
	return p != nil && p.BaseURL != ""
}

// Predict uploads the image as multipart field "file" and decodes the ranking
func (p *HTTPPredictor) Predict(ctx context.Context, image models.ImageAsset, topK int) (*Prediction, error) {
	if p.BaseURL == "" {
		return nil, models.ErrMissingEndpoint
	}

	body, contentType, err := multipartImage(image)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/predict-style?top_k=%d", p.BaseURL, topK)
	slog.Info("Predict request",
		"payload_name", image.Name,
		"payload_size", image.Size(),
		"payload_type", image.MediaType,
		"url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &models.ServiceError{Service: "Predict", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return nil, &models.ServiceError{Service: "Predict", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	slog.Info("Predict response", "predicted", prediction.Predicted, "ranked", len(prediction.TopK))
	return &prediction, nil
}

func multipartImage(image models.ImageAsset) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := image.Name
	if name == "" {
		name = "upload"
	}
	mediaType := image.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", mediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
