package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/config"
	"github.com/satriahrh/speakfix/usecase"
)

// Options configure the HTTP surface
type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	MaxUploadBytes int64
	ResponseMode   string
	RequestTimeout time.Duration
}

// Handler serves the correction endpoints
type Handler struct {
	service CorrectionService
	options Options
	logger  *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(service CorrectionService, options Options, logger *zap.Logger) *Handler {
	if options.ResponseMode == "" {
		options.ResponseMode = config.ResponseJSON
	}
	return &Handler{service: service, options: options, logger: logger}
}

func (h *Handler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if h.options.RequestTimeout > 0 {
		return context.WithTimeout(ctx, h.options.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Health reports service liveness
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "speakfix",
	})
}

// Transcribe corrects an uploaded recording and answers with JSON or WAV
func (h *Handler) Transcribe(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "multipart field \"file\" is required",
		})
	}

	mode := strings.ToLower(strings.TrimSpace(c.FormValue("response")))
	if mode == "" {
		mode = h.options.ResponseMode
	}
	if mode != config.ResponseJSON && mode != config.ResponseAudio {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_response_mode",
			Message: "response must be json or audio",
		})
	}
	if mode == config.ResponseAudio && !h.service.SpeechEnabled() {
		return h.errorResponse(c, domain.ErrSpeechDisabled)
	}
	if h.options.MaxUploadBytes > 0 && file.Size > h.options.MaxUploadBytes {
		return h.errorResponse(c, domain.ErrAudioTooLarge)
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		return h.errorResponse(c, err)
	}
	defer src.Close()

	upload := usecase.AudioUpload{
		Filename: file.Filename,
		Content:  src,
		Language: c.FormValue("language"),
		ClientID: ClientID(c),
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if mode == config.ResponseJSON {
		result, err := h.service.CorrectRecording(ctx, upload)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, domain.NewTranscriptionResponse(result.Correction, string(result.SagaID)))
	}

	result, err := h.service.SpeakCorrection(ctx, upload)
	if err != nil {
		return h.errorResponse(c, err)
	}
	setSpeechHeaders(c.Response().Header(), result)
	return c.Blob(http.StatusOK, "audio/wav", result.Audio)
}

// CorrectGrammar corrects text without audio
func (h *Handler) CorrectGrammar(c echo.Context) error {
	var req domain.GrammarRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.CorrectText(ctx, req.Text, req.Language)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, domain.GrammarResponse{
		Original:  strings.TrimSpace(req.Text),
		Corrected: result.Corrected,
		Language:  result.Language,
		Edits:     result.Edits,
	})
}

// ListCorrections returns recent corrections of the caller
func (h *Handler) ListCorrections(c echo.Context) error {
	filter := repositories.ListFilter{ClientID: ClientID(c)}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		filter.Limit = limit
	}

	corrections, err := h.service.ListCorrections(c.Request().Context(), filter)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, CorrectionListResponse{
		Corrections: corrections,
		Count:       len(corrections),
	})
}

// GetCorrection returns one correction
func (h *Handler) GetCorrection(c echo.Context) error {
	correction, err := h.service.GetCorrection(c.Request().Context(), c.Param("id"), ClientID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, correction)
}

// GetPipeline returns the status of a pipeline run
func (h *Handler) GetPipeline(c echo.Context) error {
	instance, err := h.service.GetPipeline(c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, instance)
}

// StatusFor maps an error to its HTTP status and error code
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyAudio):
		return http.StatusBadRequest, "empty_audio"
	case errors.Is(err, domain.ErrEmptyText):
		return http.StatusBadRequest, "empty_text"
	case errors.Is(err, domain.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge, "audio_too_large"
	case errors.Is(err, domain.ErrUnsupportedAudio):
		return http.StatusUnsupportedMediaType, "unsupported_audio"
	case errors.Is(err, domain.ErrNoSpeech):
		return http.StatusUnprocessableEntity, "no_speech"
	case errors.Is(err, domain.ErrSpeechDisabled):
		return http.StatusUnprocessableEntity, "speech_disabled"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "provider_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) errorResponse(c echo.Context, err error) error {
	status, code := StatusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("code", code), zap.Error(err))
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}

	return c.JSON(status, ErrorResponse{
		Error:      code,
		Message:    message,
		PipelineID: string(usecase.PipelineID(err)),
	})
}
