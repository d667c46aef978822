package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// WhisperConfig holds configuration for the Whisper transcription adapter
type WhisperConfig struct {
	Model  string
	Prompt string
}

// Whisper implements SpeechToText with the OpenAI transcription API
type Whisper struct {
	client *openai.Client
	logger *zap.Logger
	model  string
	prompt string
}

var _ repositories.SpeechToText = (*Whisper)(nil)

// whisperLanguages maps the language names reported by verbose_json to ISO 639-1
var whisperLanguages = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"russian":    "ru",
	"ukrainian":  "uk",
	"polish":     "pl",
	"turkish":    "tr",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"hindi":      "hi",
	"indonesian": "id",
	"malay":      "ms",
	"vietnamese": "vi",
	"thai":       "th",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"greek":      "el",
	"czech":      "cs",
	"romanian":   "ro",
	"hungarian":  "hu",
	"hebrew":     "he",
}

// NewWhisper creates a Whisper speech-to-text adapter
func NewWhisper(client *openai.Client, config WhisperConfig, logger *zap.Logger) (*Whisper, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client is required")
	}

	model := config.Model
	if model == "" {
		model = openai.Whisper1
		logger.Info("Using default transcription model", zap.String("model", model))
	}

	return &Whisper{
		client: client,
		logger: logger,
		model:  model,
		prompt: config.Prompt,
	}, nil
}

// TranscribeAudio uploads the file and returns the transcript with the detected language
func (w *Whisper) TranscribeAudio(ctx context.Context, audioPath string, config repositories.AudioConfig) (repositories.Transcript, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Prompt:   w.prompt,
		Language: whisperRequestLanguage(config.Language),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		w.logger.Error("Whisper transcription failed", zap.Error(err))
		return repositories.Transcript{}, fmt.Errorf("whisper transcription: %w: %w", domain.ErrProviderFailure, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return repositories.Transcript{}, domain.ErrNoSpeech
	}

	language := normalizeWhisperLanguage(resp.Language)
	if language == "" {
		language = config.Language
	}

	w.logger.Info("Whisper transcription completed",
		zap.String("language", language),
		zap.Float64("duration", resp.Duration))

	return repositories.Transcript{
		Text:     text,
		Language: language,
	}, nil
}

// whisperRequestLanguage reduces a BCP-47 tag to the ISO 639-1 code Whisper accepts
func whisperRequestLanguage(language string) string {
	if language == "" || strings.EqualFold(language, "auto") {
		return ""
	}
	code, _, _ := strings.Cut(language, "-")
	return strings.ToLower(code)
}

// normalizeWhisperLanguage maps Whisper's language name to an ISO 639-1 code.
// Unknown names return "" so the caller falls back to the requested language.
func normalizeWhisperLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if code, ok := whisperLanguages[language]; ok {
		return code
	}
	if len(language) == 2 && language[0] >= 'a' && language[0] <= 'z' && language[1] >= 'a' && language[1] <= 'z' {
		return language
	}
	return ""
}

// NewWhisperConfigFromEnv creates a new WhisperConfig from environment variables
func NewWhisperConfigFromEnv() WhisperConfig {
	return WhisperConfig{
		Model:  os.Getenv("WHISPER_MODEL"),
		Prompt: os.Getenv("WHISPER_PROMPT"),
	}
}
