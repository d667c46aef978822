package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in configuration
const (
	STTWhisper  = "whisper"
	STTGoogle   = "google"
	STTDeepgram = "deepgram"
	STTMock     = "mock"

	GrammarLanguageTool = "languagetool"
	GrammarGemini       = "gemini"
	GrammarOpenAI       = "openai"
	GrammarMock         = "mock"

	TTSElevenLabs = "elevenlabs"
	TTSOpenAI     = "openai"
	TTSMock       = "mock"
	TTSNone       = "none"

	HistoryMemory = "memory"
	HistoryMongo  = "mongo"

	ResponseJSON  = "json"
	ResponseAudio = "audio"
)

// Config holds service-level settings. Adapter specific settings are read by
// each adapter's NewXxxConfigFromEnv.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	STTProvider     string
	GrammarProvider string
	TTSProvider     string

	ResponseMode    string
	VoiceCloning    bool
	DefaultLanguage string
	MockTranscript  string

	MaxUploadBytes int64
	WorkDir        string
	RequestTimeout time.Duration
	FFmpegPath     string

	HistoryStore      string
	HistoryRetention  time.Duration
	RetentionInterval time.Duration

	AuthJWTSecret      string
	CORSAllowedOrigins []string
	AudioArchive       bool
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		STTProvider:     strings.ToLower(getEnv("STT_PROVIDER", STTWhisper)),
		GrammarProvider: strings.ToLower(getEnv("GRAMMAR_PROVIDER", GrammarLanguageTool)),
		TTSProvider:     strings.ToLower(getEnv("TTS_PROVIDER", TTSNone)),

		ResponseMode:    strings.ToLower(getEnv("RESPONSE_MODE", ResponseJSON)),
		VoiceCloning:    getEnvBool("VOICE_CLONING", false),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en-US"),
		MockTranscript:  getEnv("MOCK_TRANSCRIPT", ""),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 25<<20),
		WorkDir:        getEnv("WORK_DIR", os.TempDir()),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 120*time.Second),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),

		HistoryStore:      strings.ToLower(getEnv("HISTORY_STORE", HistoryMemory)),
		HistoryRetention:  getEnvDuration("HISTORY_RETENTION", 720*time.Hour),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", time.Hour),

		AuthJWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AudioArchive:       getEnvBool("AUDIO_ARCHIVE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider names and numeric bounds
func (c *Config) Validate() error {
	if err := oneOf("STT_PROVIDER", c.STTProvider, STTWhisper, STTGoogle, STTDeepgram, STTMock); err != nil {
		return err
	}
	if err := oneOf("GRAMMAR_PROVIDER", c.GrammarProvider, GrammarLanguageTool, GrammarGemini, GrammarOpenAI, GrammarMock); err != nil {
		return err
	}
	if err := oneOf("TTS_PROVIDER", c.TTSProvider, TTSElevenLabs, TTSOpenAI, TTSMock, TTSNone); err != nil {
		return err
	}
	if err := oneOf("RESPONSE_MODE", c.ResponseMode, ResponseJSON, ResponseAudio); err != nil {
		return err
	}
	if err := oneOf("HISTORY_STORE", c.HistoryStore, HistoryMemory, HistoryMongo); err != nil {
		return err
	}
	if c.ResponseMode == ResponseAudio && c.TTSProvider == TTSNone {
		return fmt.Errorf("RESPONSE_MODE=audio requires a TTS_PROVIDER")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION must not be negative, got %s", c.HistoryRetention)
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive, got %s", c.RetentionInterval)
	}
	return nil
}

// SpeechEnabled reports whether a TTS backend is configured
func (c *Config) SpeechEnabled() bool {
	return c.TTSProvider != TTSNone
}

// IsDevelopment reports whether APP_ENV is development
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q, expected one of %s", key, value, strings.Join(allowed, ", "))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
