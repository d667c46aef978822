package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const (
	defaultDeepgramURL   = "https://api.deepgram.com/v1"
	defaultDeepgramModel = "nova-2"
)

// DeepgramConfig holds configuration for the Deepgram prerecorded API
type DeepgramConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Timeout    time.Duration
}

// Deepgram implements SpeechToText with the Deepgram listen endpoint
type Deepgram struct {
	apiKey     string
	apiBaseURL string
	model      string
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*Deepgram)(nil)

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// ValidateDeepgramConfig validates the DeepgramConfig
func ValidateDeepgramConfig(config DeepgramConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Deepgram API key is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewDeepgram creates a Deepgram speech-to-text adapter
func NewDeepgram(config DeepgramConfig, logger *zap.Logger) (*Deepgram, error) {
	if err := ValidateDeepgramConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := strings.TrimSuffix(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultDeepgramURL
		logger.Info("Using default Deepgram URL", zap.String("apiBaseURL", apiBaseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultDeepgramModel
		logger.Info("Using default Deepgram model", zap.String("model", model))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Deepgram{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		model:      model,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// TranscribeAudio posts the file to Deepgram. Without a language the API
// detects it.
func (d *Deepgram) TranscribeAudio(ctx context.Context, audioPath string, config repositories.AudioConfig) (repositories.Transcript, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("read audio file: %w", err)
	}
	if len(data) == 0 {
		return repositories.Transcript{}, domain.ErrEmptyAudio
	}

	query := url.Values{}
	query.Set("model", d.model)
	query.Set("smart_format", "true")
	if config.Language == "" || strings.EqualFold(config.Language, "auto") {
		query.Set("detect_language", "true")
	} else {
		query.Set("language", config.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBaseURL+"/listen?"+query.Encode(), bytes.NewReader(data))
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to create deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := d.client.Do(req)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("deepgram request: %w: %w", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		d.logger.Error("Deepgram API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(body)))
		return repositories.Transcript{}, fmt.Errorf("deepgram status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return repositories.Transcript{}, fmt.Errorf("decode deepgram: %w: %w", domain.ErrProviderFailure, err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return repositories.Transcript{}, domain.ErrNoSpeech
	}

	channel := parsed.Results.Channels[0]
	text := strings.TrimSpace(channel.Alternatives[0].Transcript)
	if text == "" {
		return repositories.Transcript{}, domain.ErrNoSpeech
	}

	language := channel.DetectedLanguage
	if language == "" {
		language = config.Language
	}

	return repositories.Transcript{
		Text:       text,
		Language:   language,
		Confidence: channel.Alternatives[0].Confidence,
	}, nil
}

// NewDeepgramConfigFromEnv creates a new DeepgramConfig from environment variables
func NewDeepgramConfigFromEnv() DeepgramConfig {
	return DeepgramConfig{
		APIKey:     os.Getenv("DEEPGRAM_API_KEY"),
		APIBaseURL: os.Getenv("DEEPGRAM_API_URL"),
		Model:      os.Getenv("DEEPGRAM_MODEL"),
	}
}
