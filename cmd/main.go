package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/speakfix/adapters/audio"
	"github.com/satriahrh/speakfix/adapters/grammar"
	"github.com/satriahrh/speakfix/adapters/memory"
	"github.com/satriahrh/speakfix/adapters/mongo"
	"github.com/satriahrh/speakfix/adapters/openaiclient"
	"github.com/satriahrh/speakfix/adapters/s3"
	"github.com/satriahrh/speakfix/adapters/stt"
	"github.com/satriahrh/speakfix/adapters/tts"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/api"
	"github.com/satriahrh/speakfix/internal/config"
	"github.com/satriahrh/speakfix/internal/saga"
	"github.com/satriahrh/speakfix/internal/saga/correction"
	"github.com/satriahrh/speakfix/internal/websocket"
	"github.com/satriahrh/speakfix/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer app.close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	apiOptions := api.Options{
		JWTSecret:      []byte(cfg.AuthJWTSecret),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ResponseMode:   cfg.ResponseMode,
		RequestTimeout: cfg.RequestTimeout,
	}
	api.ConfigureMiddleware(e, apiOptions, logger)

	wsHandler := websocket.NewHandler(app.service, websocket.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		ResponseMode:   cfg.ResponseMode,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	// Initialize API routes
	api.InitRoutes(e, api.NewHandler(app.service, apiOptions, logger), wsHandler.Handle, logger)

	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()
	app.service.StartEventListener(listenerCtx)

	app.retention.Start()
	defer app.retention.Stop()

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("stt", cfg.STTProvider),
		zap.String("grammar", cfg.GrammarProvider),
		zap.String("tts", cfg.TTSProvider),
		zap.String("response", cfg.ResponseMode),
		zap.String("history", cfg.HistoryStore))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}

// app holds the wired service and the resources to release on exit
type app struct {
	service   *usecase.CorrectionService
	retention *usecase.RetentionService
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var openaiClient *openai.Client
	getOpenAI := func() (*openai.Client, error) {
		if openaiClient != nil {
			return openaiClient, nil
		}
		client, err := openaiclient.New(openaiclient.NewConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		openaiClient = client
		return client, nil
	}

	speechToText, err := newSpeechToText(ctx, cfg, a, getOpenAI, logger)
	if err != nil {
		return nil, err
	}

	corrector, err := newGrammarCorrector(ctx, cfg, getOpenAI, logger)
	if err != nil {
		return nil, err
	}

	textToSpeech, cloner, err := newTextToSpeech(cfg, getOpenAI, logger)
	if err != nil {
		return nil, err
	}

	history, err := newHistory(ctx, cfg, a, logger)
	if err != nil {
		return nil, err
	}

	var store repositories.AudioStore
	if cfg.AudioArchive {
		audioStore, err := s3.NewAudioStore(ctx, s3.NewConfigFromEnv(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio store: %w", err)
		}
		store = audioStore
	}

	converter := audio.NewFFmpegConverter(cfg.FFmpegPath, logger)
	if err := converter.Available(); err != nil {
		logger.Warn("ffmpeg not available, only 16 kHz mono WAV uploads will work", zap.Error(err))
	}

	deps := correction.Dependencies{
		STT:        speechToText,
		Grammar:    corrector,
		TTS:        textToSpeech,
		Cloner:     cloner,
		Converter:  converter,
		Store:      store,
		Repository: history,
	}

	pipeline := correction.NewPipeline(deps, correction.Options{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		DefaultLanguage: cfg.DefaultLanguage,
		VoiceCloning:    cfg.VoiceCloning,
		Timeout:         cfg.RequestTimeout,
		STTProvider:     cfg.STTProvider,
		GrammarProvider: cfg.GrammarProvider,
		TTSProvider:     cfg.TTSProvider,
	}, logger)

	sagaManager := saga.NewManager(logger)
	a.service = usecase.NewCorrectionService(sagaManager, pipeline, corrector, history, cfg.WorkDir, cfg.DefaultLanguage, logger)
	a.retention = usecase.NewRetentionService(history, sagaManager, cfg.WorkDir, cfg.HistoryRetention, cfg.RetentionInterval, logger)

	ok = true
	return a, nil
}

func newSpeechToText(ctx context.Context, cfg *config.Config, a *app, getOpenAI func() (*openai.Client, error), logger *zap.Logger) (repositories.SpeechToText, error) {
	switch cfg.STTProvider {
	case config.STTWhisper:
		client, err := getOpenAI()
		if err != nil {
			return nil, err
		}
		return stt.NewWhisper(client, stt.NewWhisperConfigFromEnv(), logger)

	case config.STTGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, stt.NewGoogleSpeechConfigFromEnv(), logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := google.Close(); err != nil {
				logger.Warn("Failed to close Google Speech client", zap.Error(err))
			}
		})
		return google, nil

	case config.STTDeepgram:
		return stt.NewDeepgram(stt.NewDeepgramConfigFromEnv(), logger)

	default:
		return stt.NewMockSpeechToText(cfg.MockTranscript, logger), nil
	}
}

func newGrammarCorrector(ctx context.Context, cfg *config.Config, getOpenAI func() (*openai.Client, error), logger *zap.Logger) (repositories.GrammarCorrector, error) {
	switch cfg.GrammarProvider {
	case config.GrammarLanguageTool:
		return grammar.NewLanguageTool(grammar.NewLanguageToolConfigFromEnv(), logger)

	case config.GrammarGemini:
		return grammar.NewGemini(ctx, grammar.NewGeminiConfigFromEnv(), logger)

	case config.GrammarOpenAI:
		client, err := getOpenAI()
		if err != nil {
			return nil, err
		}
		return grammar.NewOpenAI(client, grammar.NewOpenAIConfigFromEnv(), logger)

	default:
		return grammar.NewMock(), nil
	}
}

func newTextToSpeech(cfg *config.Config, getOpenAI func() (*openai.Client, error), logger *zap.Logger) (repositories.TextToSpeech, repositories.VoiceCloner, error) {
	switch cfg.TTSProvider {
	case config.TTSElevenLabs:
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return nil, nil, err
		}
		return elevenLabs, elevenLabs, nil

	case config.TTSOpenAI:
		client, err := getOpenAI()
		if err != nil {
			return nil, nil, err
		}
		openaiTTS, err := tts.NewOpenAITTS(client, tts.NewOpenAIConfigFromEnv(), logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.VoiceCloning {
			logger.Warn("OpenAI TTS has no voice cloning, using a built-in voice")
		}
		return openaiTTS, nil, nil

	case config.TTSMock:
		mock := tts.NewMockTTS()
		return mock, mock, nil

	default:
		return nil, nil, nil
	}
}

func newHistory(ctx context.Context, cfg *config.Config, a *app, logger *zap.Logger) (repositories.CorrectionRepository, error) {
	if cfg.HistoryStore != config.HistoryMongo {
		return memory.NewCorrectionRepository(), nil
	}

	client, err := mongo.NewClient(ctx, mongo.NewConfigFromEnv(), logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	})

	repo := mongo.NewCorrectionRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return repo, nil
}
