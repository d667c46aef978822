package grammar

import (
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
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const (
	defaultLanguageToolURL      = "https://api.languagetool.org/v2"
	defaultLanguageToolLanguage = "en-US"
	defaultLanguageToolTimeout  = 30 * time.Second
	languageAuto                = "auto"
)

// LanguageToolConfig holds configuration for the LanguageTool adapter.
// Username and APIKey are only needed for the premium API and must be set together.
type LanguageToolConfig struct {
	APIBaseURL string
	Language   string
	Username   string
	APIKey     string
	Level      string // "", "default" or "picky"
	Timeout    time.Duration
}

// LanguageTool implements GrammarCorrector against the LanguageTool HTTP API
type LanguageTool struct {
	apiBaseURL string
	language   string
	username   string
	apiKey     string
	level      string
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.GrammarCorrector = (*LanguageTool)(nil)

type languageToolResponse struct {
	Language struct {
		Code             string `json:"code"`
		DetectedLanguage struct {
			Code string `json:"code"`
		} `json:"detectedLanguage"`
	} `json:"language"`
	Matches []languageToolMatch `json:"matches"`
}

type languageToolMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID string `json:"id"`
	} `json:"rule"`
}

// ValidateLanguageToolConfig validates the LanguageToolConfig
func ValidateLanguageToolConfig(config LanguageToolConfig) error {
	if (config.Username == "") != (config.APIKey == "") {
		return fmt.Errorf("languagetool username and api key must be set together")
	}
	switch config.Level {
	case "", "default", "picky":
	default:
		return fmt.Errorf("languagetool level must be default or picky, got %q", config.Level)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewLanguageTool creates a new LanguageTool grammar corrector
func NewLanguageTool(config LanguageToolConfig, logger *zap.Logger) (*LanguageTool, error) {
	if err := ValidateLanguageToolConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := strings.TrimSuffix(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultLanguageToolURL
		logger.Info("Using default LanguageTool URL", zap.String("apiBaseURL", apiBaseURL))
	}

	language := config.Language
	if language == "" {
		language = defaultLanguageToolLanguage
		logger.Info("Using default LanguageTool language", zap.String("language", language))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultLanguageToolTimeout
	}

	return &LanguageTool{
		apiBaseURL: apiBaseURL,
		language:   language,
		username:   config.Username,
		apiKey:     config.APIKey,
		level:      config.Level,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Correct checks text with LanguageTool and applies the first suggested
// replacement of every match
func (l *LanguageTool) Correct(ctx context.Context, text string, language string) (repositories.GrammarResult, error) {
	if strings.TrimSpace(text) == "" {
		return repositories.GrammarResult{}, domain.ErrEmptyText
	}

	if language == "" {
		language = l.language
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("language", language)
	if l.username != "" {
		form.Set("username", l.username)
		form.Set("apiKey", l.apiKey)
	}
	if l.level != "" {
		form.Set("level", l.level)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBaseURL+"/check", strings.NewReader(form.Encode()))
	if err != nil {
		return repositories.GrammarResult{}, fmt.Errorf("failed to create languagetool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return repositories.GrammarResult{}, fmt.Errorf("languagetool request: %w: %w", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		l.logger.Error("LanguageTool API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(body)))
		return repositories.GrammarResult{}, fmt.Errorf("languagetool status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}

	var parsed languageToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return repositories.GrammarResult{}, fmt.Errorf("decode languagetool: %w: %w", domain.ErrProviderFailure, err)
	}

	edits := make([]entities.Edit, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		if len(m.Replacements) == 0 {
			continue
		}
		edits = append(edits, entities.Edit{
			Offset:      m.Offset,
			Length:      m.Length,
			Replacement: m.Replacements[0].Value,
			Message:     m.Message,
			RuleID:      m.Rule.ID,
		})
	}

	corrected, applied := ApplyEdits(text, edits)

	resultLanguage := parsed.Language.Code
	if language == languageAuto && parsed.Language.DetectedLanguage.Code != "" {
		resultLanguage = parsed.Language.DetectedLanguage.Code
	}
	if resultLanguage == "" {
		resultLanguage = language
	}

	l.logger.Info("Grammar check completed",
		zap.Int("matches", len(parsed.Matches)),
		zap.Int("applied", len(applied)),
		zap.String("language", resultLanguage))

	return repositories.GrammarResult{
		Corrected: corrected,
		Language:  resultLanguage,
		Edits:     applied,
	}, nil
}

// NewLanguageToolConfigFromEnv creates a new LanguageToolConfig from environment variables
func NewLanguageToolConfigFromEnv() LanguageToolConfig {
	config := LanguageToolConfig{
		APIBaseURL: os.Getenv("LANGUAGETOOL_API_URL"),
		Language:   os.Getenv("LANGUAGETOOL_LANGUAGE"),
		Username:   os.Getenv("LANGUAGETOOL_USERNAME"),
		APIKey:     os.Getenv("LANGUAGETOOL_API_KEY"),
		Level:      os.Getenv("LANGUAGETOOL_LEVEL"),
	}

	if timeoutStr := os.Getenv("LANGUAGETOOL_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			config.Timeout = timeout
		}
	}

	return config
}
