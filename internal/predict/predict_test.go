package predict

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artinstitute/galleryroom/internal/models"
)

func TestPredictionStyle(t *testing.T) {
	tests := []struct {
		name       string
		prediction *Prediction
		expected   string
		wantErr    bool
	}{
		{
			name: "uses designated prediction",
			prediction: &Prediction{
				Predicted: &models.RankedStyle{Style: "Cubism", Confidence: 0.7},
				TopK:      []models.RankedStyle{{Style: "Fauvism"}},
			},
			expected: "Cubism",
		},
		{
			name:       "falls back to first ranked",
			prediction: &Prediction{TopK: []models.RankedStyle{{Style: "Fauvism"}, {Style: "Cubism"}}},
			expected:   "Fauvism",
		},
		{
			name:       "empty designated style falls back",
			prediction: &Prediction{Predicted: &models.RankedStyle{}, TopK: []models.RankedStyle{{Style: "Baroque"}}},
			expected:   "Baroque",
		},
		{
			name:       "no style at all",
			prediction: &Prediction{},
			wantErr:    true,
		},
		{
			name:    "nil prediction",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style, err := tt.prediction.Style()
			if tt.wantErr {
				if !errors.Is(err, ErrNoStyle) {
					t.Errorf("Expected ErrNoStyle, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if style != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, style)
			}
		})
	}
}

func TestHTTPPredictorSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict-style" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("top_k"); got != "5" {
			t.Errorf("Expected top_k=5, got %s", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "jpegbytes" || header.Filename != "cat-predict.jpg" {
			t.Errorf("Unexpected upload %s: %q", header.Filename, data)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg part, got %s", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predicted":{"style":"Impressionism","confidence":0.81},"top_k":[{"style":"Impressionism","confidence":0.81},{"style":"Realism","confidence":0.1}]}`))
	}))
	defer server.Close()

	p := NewHTTPPredictor(server.URL+"/", 5*time.Second)
	prediction, err := p.Predict(context.Background(), models.ImageAsset{Data: []byte("jpegbytes"), MediaType: "image/jpeg", Name: "cat-predict.jpg"}, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	style, err := prediction.Style()
	if err != nil || style != "Impressionism" {
		t.Errorf("Expected Impressionism, got %s (%v)", style, err)
	}
	if len(prediction.TopK) != 2 {
		t.Errorf("Expected 2 ranked styles, got %d", len(prediction.TopK))
	}
}

func TestHTTPPredictorServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPPredictor(server.URL, time.Second).Predict(context.Background(), models.ImageAsset{Data: []byte("x")}, 5)
	var serviceErr *models.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if serviceErr.StatusCode != http.StatusServiceUnavailable || serviceErr.Error() != "model is warming up" {
		t.Errorf("Unexpected service error: %+v", serviceErr)
	}
}

func TestHTTPPredictorEmptyErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPPredictor(server.URL, time.Second).Predict(context.Background(), models.ImageAsset{Data: []byte("x")}, 5)
	if err == nil || err.Error() != "Predict request failed (502)" {
		t.Errorf("Expected status fallback message, got %v", err)
	}
}

func TestHTTPPredictorMissingEndpoint(t *testing.T) {
	_, err := NewHTTPPredictor("", time.Second).Predict(context.Background(), models.ImageAsset{}, 5)
	if !errors.Is(err, models.ErrMissingEndpoint) {
		t.Errorf("Expected ErrMissingEndpoint, got %v", err)
	}
}

func TestHTTPPredictorTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPPredictor(server.URL, 50*time.Millisecond).Predict(context.Background(), models.ImageAsset{Data: []byte("x")}, 5)
	var serviceErr *models.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Expected timeout to surface as ServiceError, got %v", err)
	}
	if serviceErr.Err == nil {
		t.Fatal("Expected transport error to be kept")
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("Expected unwrapped timeout, got %v", err)
	}
	if strings.Contains(serviceErr.Display(), server.URL) {
		t.Errorf("Expected display message without service address, got %q", serviceErr.Display())
	}
}

func TestHTTPPredictorContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPPredictor(server.URL, time.Minute).Predict(ctx, models.ImageAsset{Data: []byte("x")}, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded through ServiceError, got %v", err)
	}
}

func TestParseRanking(t *testing.T) {
	text := "```json\n[{\"style\":\"Realism\",\"confidence\":0.2},{\"style\":\"Baroque\",\"confidence\":0.7},{\"style\":\"Rococo\",\"confidence\":0.1}]\n```"
	prediction, err := parseRanking(text, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(prediction.TopK) != 2 {
		t.Fatalf("Expected ranking trimmed to 2, got %d", len(prediction.TopK))
	}
	style, _ := prediction.Style()
	if style != "Baroque" {
		t.Errorf("Expected Baroque first, got %s", style)
	}

	if _, err := parseRanking("not json", 5); err == nil {
		t.Error("Expected decode error")
	}
}

func TestGeminiPromptListsLabels(t *testing.T) {
	g := NewGeminiPredictor("", []string{"Cubism", "Pop_Art"})
	if g.Model != DefaultGeminiModel {
		t.Errorf("Expected default model, got %s", g.Model)
	}
	prompt := g.prompt(3)
	for _, want := range []string{"3 most likely", "Cubism, Pop_Art"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q: %s", want, prompt)
		}
	}
}

func TestOpenAIPredictorSendsImageURL(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer token, got %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "data:image/jpeg;base64,") {
			t.Errorf("Expected inline data URL in request: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"[{\"style\":\"Cubism\",\"confidence\":0.9}]"}}]}`))
	}))
	defer server.Close()

	p := NewOpenAIPredictor("", []string{"Cubism"}, time.Second)
	p.BaseURL = server.URL
	if p.Model != DefaultOpenAIModel {
		t.Errorf("Expected default model, got %s", p.Model)
	}

	prediction, err := p.Predict(context.Background(), models.ImageAsset{Data: []byte("jpeg"), MediaType: "image/jpeg"}, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	style, _ := prediction.Style()
	if style != "Cubism" {
		t.Errorf("Expected Cubism, got %s", style)
	}
}

func TestOpenAIPredictorRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIPredictor("", nil, time.Second).Predict(context.Background(), models.ImageAsset{}, 5)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("Expected missing key error, got %v", err)
	}
}

func TestOllamaPredictor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string   `json:"model"`
			Images []string `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "llava" || len(req.Images) != 1 {
			t.Errorf("Unexpected request model=%s images=%d", req.Model, len(req.Images))
		}
		_, _ = w.Write([]byte(`{"response":"{\"styles\":[{\"style\":\"Rococo\",\"confidence\":0.3},{\"style\":\"Baroque\",\"confidence\":0.6}]}"}`))
	}))
	defer server.Close()

	p := NewOllamaPredictor("", nil, time.Second)
	p.BaseURL = server.URL

	prediction, err := p.Predict(context.Background(), models.ImageAsset{Data: []byte("jpeg")}, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(prediction.TopK) != 2 || prediction.TopK[0].Style != "Baroque" {
		t.Errorf("Expected Baroque ranked first, got %+v", prediction.TopK)
	}
}

func TestOllamaPredictorServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaPredictor("missing", nil, time.Second)
	p.BaseURL = server.URL

	_, err := p.Predict(context.Background(), models.ImageAsset{Data: []byte("x")}, 5)
	var serviceErr *models.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 ServiceError, got %v", err)
	}
}
