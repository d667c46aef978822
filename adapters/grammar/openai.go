package grammar

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const defaultOpenAIChatModel = openai.GPT4oMini

// OpenAIConfig holds configuration for the OpenAI chat corrector
type OpenAIConfig struct {
	Model       string
	Temperature float32
}

// OpenAI implements GrammarCorrector with an OpenAI chat model
type OpenAI struct {
	client      *openai.Client
	logger      *zap.Logger
	model       string
	temperature float32
}

var _ repositories.GrammarCorrector = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI chat grammar corrector
func NewOpenAI(client *openai.Client, config OpenAIConfig, logger *zap.Logger) (*OpenAI, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIChatModel
		logger.Info("Using default chat model", zap.String("model", model))
	}

	return &OpenAI{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: config.Temperature,
	}, nil
}

// Correct asks the chat model for a corrected version of text
func (o *OpenAI) Correct(ctx context.Context, text string, language string) (repositories.GrammarResult, error) {
	if strings.TrimSpace(text) == "" {
		return repositories.GrammarResult{}, domain.ErrEmptyText
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: correctionSystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: BuildCorrectionPrompt(text)},
		},
	})
	if err != nil {
		o.logger.Error("Failed to correct grammar with OpenAI", zap.Error(err))
		return repositories.GrammarResult{}, fmt.Errorf("openai chat: %w: %w", domain.ErrProviderFailure, err)
	}

	if len(resp.Choices) == 0 {
		return repositories.GrammarResult{}, fmt.Errorf("openai returned no choices: %w", domain.ErrProviderFailure)
	}

	corrected := CleanModelOutput(resp.Choices[0].Message.Content)
	if corrected == "" {
		return repositories.GrammarResult{}, fmt.Errorf("openai returned no text: %w", domain.ErrProviderFailure)
	}

	return repositories.GrammarResult{
		Corrected: corrected,
		Language:  language,
	}, nil
}

// NewOpenAIConfigFromEnv creates a new OpenAIConfig from environment variables
func NewOpenAIConfigFromEnv() OpenAIConfig {
	config := OpenAIConfig{
		Model: os.Getenv("OPENAI_GRAMMAR_MODEL"),
	}
	if temperature, err := strconv.ParseFloat(os.Getenv("OPENAI_GRAMMAR_TEMPERATURE"), 32); err == nil {
		config.Temperature = float32(temperature)
	}
	return config
}
