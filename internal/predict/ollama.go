package predict

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/artinstitute/galleryroom/internal/models"
)

// DefaultOllamaModel is used when OLLAMA_MODEL is not set
const DefaultOllamaModel = "llava"

// OllamaPredictor ranks the known style labels with a local Ollama vision model
type OllamaPredictor struct {
	BaseURL    string
	Model      string
	Labels     []string
	httpClient *http.Client
}

// NewOllamaPredictor returns a predictor for model served at OLLAMA_URL
func NewOllamaPredictor(model string, labels []string, timeout time.Duration) *OllamaPredictor {
	if model == "" {
		model = DefaultOllamaModel
	}
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return &OllamaPredictor{
		BaseURL:    strings.TrimSuffix(ollamaURL, "/"),
		Model:      model,
		Labels:     labels,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict posts to /api/generate with the image attached and parses the reply
func (o *OllamaPredictor) Predict(ctx context.Context, image models.ImageAsset, topK int) (*Prediction, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.Model,
		"prompt": rankingPrompt(o.Labels, topK),
		"images": []string{base64.StdEncoding.EncodeToString(image.Data)},
		"format": "json",
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &models.ServiceError{Service: "Predict", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.ServiceError{
			Service:    "Predict",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("received non-200 status code: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return parseRanking(response.Response, topK)
}
