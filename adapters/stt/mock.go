package stt

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// MockSpeechToText returns a canned transcript, for development without
// provider credentials
type MockSpeechToText struct {
	logger     *zap.Logger
	transcript string
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service. An empty
// transcript selects one based on the file size.
func NewMockSpeechToText(transcript string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger:     logger,
		transcript: transcript,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioPath string, config repositories.AudioConfig) (repositories.Transcript, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.Size() == 0 {
		return repositories.Transcript{}, domain.ErrEmptyAudio
	}

	s.logger.Info("Processing mock speech-to-text",
		zap.Int64("audioSize", info.Size()),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	text := s.transcript
	if text == "" {
		switch {
		case info.Size() > 64000:
			text = "yesterday i go to the market and buy three apple"
		case info.Size() > 16000:
			text = "she dont like coffee"
		default:
			text = "i has a apple"
		}
	}

	language := config.Language
	if language == "" {
		language = "en"
	}

	return repositories.Transcript{Text: text, Language: language, Confidence: 1}, nil
}
