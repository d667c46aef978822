package api

import (
	"context"

	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
	"github.com/satriahrh/speakfix/usecase"
)

// CorrectionService is what the handlers need from usecase.CorrectionService
type CorrectionService interface {
	SpeechEnabled() bool
	CorrectRecording(ctx context.Context, upload usecase.AudioUpload) (*usecase.RecordingResult, error)
	SpeakCorrection(ctx context.Context, upload usecase.AudioUpload) (*usecase.SpeechResult, error)
	CorrectText(ctx context.Context, text, language string) (repositories.GrammarResult, error)
	GetCorrection(ctx context.Context, id, clientID string) (*entities.Correction, error)
	ListCorrections(ctx context.Context, filter repositories.ListFilter) ([]*entities.Correction, error)
	GetPipeline(id string) (*saga.SagaInstance, error)
}

var _ CorrectionService = (*usecase.CorrectionService)(nil)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

// CorrectionListResponse wraps a page of history
type CorrectionListResponse struct {
	Corrections []*entities.Correction `json:"corrections"`
	Count       int                    `json:"count"`
}
