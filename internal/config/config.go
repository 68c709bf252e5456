package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Prediction providers
const (
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var validate = validator.New()

type Config struct {
	Port            string        `validate:"required,numeric"`
	StyleAPIURL     string        `validate:"omitempty,url"`
	PredictProvider string        `validate:"oneof=http gemini openai ollama"`
	PredictModel    string
	GeminiAPIKey    string        `validate:"required_if=PredictProvider gemini"`
	OpenAIAPIKey    string        `validate:"required_if=PredictProvider openai"`
	GalleryFile     string        `validate:"omitempty,file"`
	StylesFile      string        `validate:"omitempty,file"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	SessionTTL      time.Duration `validate:"gte=0"`
	PredictMaxBytes int64         `validate:"min=1"`
	MaxUploadBytes  int64         `validate:"min=1"`
	GalleryLimit    int           `validate:"min=1"`
	TopK            int           `validate:"min=1"`
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8888"),
		StyleAPIURL:     strings.TrimSuffix(getEnv("STYLE_API_URL", ""), "/"),
		PredictProvider: strings.ToLower(getEnv("PREDICT_PROVIDER", ProviderHTTP)),
		PredictModel:    getEnv("PREDICT_MODEL", getEnv("GEMINI_MODEL", "")),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		GalleryFile:     getEnv("GALLERY_FILE", ""),
		StylesFile:      getEnv("STYLES_FILE", ""),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		PredictMaxBytes: getEnvAsInt64("PREDICT_MAX_BYTES", 300*1024),
		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
		GalleryLimit:    getEnvAsInt("GALLERY_LIMIT", 24),
		TopK:            getEnvAsInt("TOP_K", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AnalyzeTimeout bounds one full analyze run
func (c *Config) AnalyzeTimeout() time.Duration {
	return 2 * c.RequestTimeout
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("45s") or bare seconds ("45")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
