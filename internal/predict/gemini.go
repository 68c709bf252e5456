package predict

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when GEMINI_MODEL is not set
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiPredictor asks a Gemini vision model to rank the known style labels
type GeminiPredictor struct {
	Model  string
	Labels []string
}

// NewGeminiPredictor returns a predictor restricted to labels
func NewGeminiPredictor(model string, labels []string) *GeminiPredictor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiPredictor{Model: model, Labels: labels}
}

// Predict sends the image with a ranking prompt and parses the JSON reply
func (g *GeminiPredictor) Predict(ctx context.Context, image models.ImageAsset, topK int) (*Prediction, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	format := strings.TrimPrefix(image.MediaType, "image/")
	if format == "" {
		format = "jpeg"
	}

	resp, err := model.GenerateContent(ctx, genai.ImageData(format, image.Data), genai.Text(g.prompt(topK)))
	if err != nil {
		return nil, &models.ServiceError{Service: "Predict", Err: err}
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini")
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response format from Gemini")
	}

	return parseRanking(string(txt), topK)
}

func (g *GeminiPredictor) prompt(topK int) string {
	return rankingPrompt(g.Labels, topK)
}
