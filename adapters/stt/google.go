package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// Google Speech limits synchronous recognition to 10 MB of inline content
const googleMaxInlineBytes = 10 << 20

// GoogleSpeechConfig holds configuration for Google Cloud Speech-to-Text
type GoogleSpeechConfig struct {
	CredentialsFile      string
	Model                string
	AlternativeLanguages []string
	DisablePunctuation   bool
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client               *speech.Client
	logger               *zap.Logger
	model                string
	alternativeLanguages []string
	punctuation          bool
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the speech client once. Close must be called
// on shutdown.
func NewGoogleSpeechToText(ctx context.Context, config GoogleSpeechConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{
		client:               client,
		logger:               logger,
		model:                config.Model,
		alternativeLanguages: config.AlternativeLanguages,
		punctuation:          !config.DisablePunctuation,
	}, nil
}

// TranscribeAudio converts a WAV file to text using non-streaming recognition
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioPath string, config repositories.AudioConfig) (repositories.Transcript, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		return repositories.Transcript{}, domain.ErrEmptyAudio
	}
	if len(data) > googleMaxInlineBytes {
		return repositories.Transcript{}, fmt.Errorf("google speech inline limit: %w", domain.ErrAudioTooLarge)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedAudio, err)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               config.Language,
		AlternativeLanguageCodes:   g.alternativeLanguages,
		EnableAutomaticPunctuation: g.punctuation,
		Model:                      g.model,
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		g.logger.Error("Google speech recognition failed", zap.Error(err))
		return repositories.Transcript{}, fmt.Errorf("google recognize: %w: %w", domain.ErrProviderFailure, err)
	}

	return transcriptFromResults(resp.GetResults(), config.Language)
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// transcriptFromResults joins the best alternative of every result
func transcriptFromResults(results []*speechpb.SpeechRecognitionResult, requestLanguage string) (repositories.Transcript, error) {
	var parts []string
	var confidence float64
	var counted int
	language := requestLanguage

	for _, result := range results {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		best := result.GetAlternatives()[0]
		if text := strings.TrimSpace(best.GetTranscript()); text != "" {
			parts = append(parts, text)
			confidence += float64(best.GetConfidence())
			counted++
		}
		if code := result.GetLanguageCode(); code != "" {
			language = code
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return repositories.Transcript{}, domain.ErrNoSpeech
	}

	return repositories.Transcript{
		Text:       text,
		Language:   language,
		Confidence: confidence / float64(counted),
	}, nil
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// NewGoogleSpeechConfigFromEnv creates a new GoogleSpeechConfig from environment variables
func NewGoogleSpeechConfigFromEnv() GoogleSpeechConfig {
	config := GoogleSpeechConfig{
		CredentialsFile:    os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Model:              os.Getenv("GOOGLE_SPEECH_MODEL"),
		DisablePunctuation: os.Getenv("GOOGLE_SPEECH_DISABLE_PUNCTUATION") == "true",
	}

	if alt := os.Getenv("GOOGLE_SPEECH_ALTERNATIVE_LANGUAGES"); alt != "" {
		for _, code := range strings.Split(alt, ",") {
			if code = strings.TrimSpace(code); code != "" {
				config.AlternativeLanguages = append(config.AlternativeLanguages, code)
			}
		}
	}

	return config
}
