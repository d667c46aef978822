package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// OpenAI speech output in pcm format is always 24 kHz 16-bit mono
const openAIPCMSampleRate = 24000

// OpenAIConfig holds configuration for the OpenAI speech adapter
type OpenAIConfig struct {
	Model string
	Voice string
	Speed float64
}

// OpenAITTS implements TextToSpeech with the OpenAI speech endpoint. It has
// no voice cloning; VoiceConfig.VoiceID selects one of the built-in voices.
type OpenAITTS struct {
	client *openai.Client
	logger *zap.Logger
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	speed  float64
}

var _ repositories.TextToSpeech = (*OpenAITTS)(nil)

// NewOpenAITTS creates an OpenAI text-to-speech adapter
func NewOpenAITTS(client *openai.Client, config OpenAIConfig, logger *zap.Logger) (*OpenAITTS, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client is required")
	}
	if config.Speed != 0 && (config.Speed < 0.25 || config.Speed > 4) {
		return nil, fmt.Errorf("speed must be between 0.25 and 4, got %f", config.Speed)
	}

	model := openai.SpeechModel(config.Model)
	if model == "" {
		model = openai.TTSModel1
		logger.Info("Using default speech model", zap.String("model", string(model)))
	}

	voice := openai.SpeechVoice(config.Voice)
	if voice == "" {
		voice = openai.VoiceAlloy
		logger.Info("Using default voice", zap.String("voice", string(voice)))
	}

	return &OpenAITTS{
		client: client,
		logger: logger,
		model:  model,
		voice:  voice,
		speed:  config.Speed,
	}, nil
}

// Synthesize implements repositories.TextToSpeech
func (o *OpenAITTS) Synthesize(ctx context.Context, text string, voice repositories.VoiceConfig) (*repositories.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}

	speechVoice := o.voice
	if voice.VoiceID != "" {
		speechVoice = openai.SpeechVoice(voice.VoiceID)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          speechVoice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          o.speed,
	})
	if err != nil {
		o.logger.Error("OpenAI speech synthesis failed", zap.Error(err))
		return nil, fmt.Errorf("openai speech: %w: %w", domain.ErrProviderFailure, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai returned no audio: %w", domain.ErrProviderFailure)
	}

	return &repositories.Audio{
		Data:       data,
		Format:     repositories.AudioFormatPCM,
		SampleRate: openAIPCMSampleRate,
	}, nil
}

// NewOpenAIConfigFromEnv creates a new OpenAIConfig from environment variables
func NewOpenAIConfigFromEnv() OpenAIConfig {
	config := OpenAIConfig{
		Model: os.Getenv("OPENAI_TTS_MODEL"),
		Voice: os.Getenv("OPENAI_TTS_VOICE"),
	}
	if speed, err := strconv.ParseFloat(os.Getenv("OPENAI_TTS_SPEED"), 64); err == nil {
		config.Speed = speed
	}
	return config
}
