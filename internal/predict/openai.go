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

const (
	// DefaultOpenAIModel is used when OPENAI_MODEL is not set
	DefaultOpenAIModel = "gpt-4o-mini"
	defaultOpenAIURL   = "https://api.openai.com/v1"
)

// OpenAIPredictor ranks the known style labels with an OpenAI-compatible
// chat completions endpoint
type OpenAIPredictor struct {
	BaseURL    string
	Model      string
	Labels     []string
	httpClient *http.Client
}

// NewOpenAIPredictor returns a predictor for model. OPENAI_BASE_URL overrides
// the public API for compatible gateways.
func NewOpenAIPredictor(model string, labels []string, timeout time.Duration) *OpenAIPredictor {
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAIPredictor{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Model:      model,
		Labels:     labels,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict sends the image inline as a data URL and parses the JSON reply
func (o *OpenAIPredictor) Predict(ctx context.Context, image models.ImageAsset, topK int) (*Prediction, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", image.MediaType, base64.StdEncoding.EncodeToString(image.Data))
	requestBody, err := json.Marshal(map[string]interface{}{
		"model": o.Model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": rankingPrompt(o.Labels, topK)},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"temperature": 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	return parseRanking(response.Choices[0].Message.Content, topK)
}
