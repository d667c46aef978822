package grammar

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const (
	defaultGeminiModel          = "gemini-2.0-flash"
	defaultGeminiTemperature    = 0.2
	defaultGeminiMaxTokens      = 256
	defaultGeminiTimeoutSeconds = 30
	geminiMaxAttempts           = 3
)

// GeminiConfig holds configuration for the Gemini grammar corrector
type GeminiConfig struct {
	APIKey          string
	BaseURL         string // optional override, used against test servers
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// Gemini implements GrammarCorrector with a Gemini text model
type Gemini struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeoutSeconds  int
	retryDelay      time.Duration
}

var _ repositories.GrammarCorrector = (*Gemini)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGemini creates a Gemini grammar corrector
func NewGemini(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultGeminiTemperature)
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultGeminiMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultGeminiTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	return &Gemini{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeoutSeconds:  timeoutSeconds,
		retryDelay:      time.Second,
	}, nil
}

// Correct asks the model for a corrected version of text
func (g *Gemini) Correct(ctx context.Context, text string, language string) (repositories.GrammarResult, error) {
	if strings.TrimSpace(text) == "" {
		return repositories.GrammarResult{}, domain.ErrEmptyText
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(correctionSystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < geminiMaxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildCorrectionPrompt(text)), config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate correction, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < geminiMaxAttempts-1 {
			select {
			case <-ctx.Done():
				return repositories.GrammarResult{}, fmt.Errorf("gemini: %w: %w", domain.ErrProviderFailure, ctx.Err())
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}

	if err != nil {
		g.logger.Error("Failed to correct grammar with Gemini", zap.Error(err))
		return repositories.GrammarResult{}, fmt.Errorf("gemini: %w: %w", domain.ErrProviderFailure, err)
	}

	var responseText string
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				responseText += part.Text
			}
		}
	}

	corrected := CleanModelOutput(responseText)
	if corrected == "" {
		g.logger.Warn("Empty correction from Gemini")
		return repositories.GrammarResult{}, fmt.Errorf("gemini returned no text: %w", domain.ErrProviderFailure)
	}

	return repositories.GrammarResult{
		Corrected: corrected,
		Language:  language,
	}, nil
}

// NewGeminiConfigFromEnv creates a new GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
		Model:   os.Getenv("GEMINI_MODEL"),
	}

	if tempStr := os.Getenv("GEMINI_TEMPERATURE"); tempStr != "" {
		if temp, err := strconv.ParseFloat(tempStr, 32); err == nil {
			config.Temperature = float32(temp)
		}
	}

	if tokensStr := os.Getenv("GEMINI_MAX_OUTPUT_TOKENS"); tokensStr != "" {
		if tokens, err := strconv.Atoi(tokensStr); err == nil {
			config.MaxOutputTokens = tokens
		}
	}

	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}
