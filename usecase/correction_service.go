package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/adapters/audio"
	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
	"github.com/satriahrh/speakfix/internal/saga/correction"
)

// WorkspacePrefix names the per-request temp directories
const WorkspacePrefix = "speakfix-"

// AudioUpload is one recording submitted for correction
type AudioUpload struct {
	Filename string
	Content  io.Reader
	Language string
	ClientID string
}

// RecordingResult is a stored correction and the pipeline that produced it
type RecordingResult struct {
	Correction *entities.Correction
	SagaID     saga.SagaID
}

// SpeechResult adds the spoken correction as WAV bytes
type SpeechResult struct {
	RecordingResult
	Audio []byte
}

// CorrectionService orchestrates the correction pipelines
type CorrectionService struct {
	sagaManager     *saga.Manager
	pipeline        *correction.Pipeline
	grammar         repositories.GrammarCorrector
	repository      repositories.CorrectionRepository
	workDir         string
	defaultLanguage string
	logger          *zap.Logger
}

// NewCorrectionService creates the service and registers the pipeline definitions
func NewCorrectionService(
	sagaManager *saga.Manager,
	pipeline *correction.Pipeline,
	grammar repositories.GrammarCorrector,
	repository repositories.CorrectionRepository,
	workDir string,
	defaultLanguage string,
	logger *zap.Logger,
) *CorrectionService {
	pipeline.Register(sagaManager)

	return &CorrectionService{
		sagaManager:     sagaManager,
		pipeline:        pipeline,
		grammar:         grammar,
		repository:      repository,
		workDir:         workDir,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// SpeechEnabled reports whether SpeakCorrection can run
func (s *CorrectionService) SpeechEnabled() bool {
	return s.pipeline.SpeechEnabled()
}

// CorrectRecording transcribes and corrects a recording
func (s *CorrectionService) CorrectRecording(ctx context.Context, upload AudioUpload) (*RecordingResult, error) {
	data, sagaID, err := s.run(ctx, correction.TextDefinitionID, upload)
	if err != nil {
		return nil, err
	}

	return &RecordingResult{Correction: data[correction.DataKeyCorrection].(*entities.Correction), SagaID: sagaID}, nil
}

// SpeakCorrection corrects a recording and speaks the corrected text back
func (s *CorrectionService) SpeakCorrection(ctx context.Context, upload AudioUpload) (*SpeechResult, error) {
	if !s.SpeechEnabled() {
		return nil, domain.ErrSpeechDisabled
	}

	data, sagaID, err := s.run(ctx, correction.SpeechDefinitionID, upload)
	if err != nil {
		return nil, err
	}

	wav, _ := data[correction.DataKeyOutputAudio].([]byte)
	return &SpeechResult{
		RecordingResult: RecordingResult{
			Correction: data[correction.DataKeyCorrection].(*entities.Correction),
			SagaID:     sagaID,
		},
		Audio: wav,
	}, nil
}

// run executes a pipeline inside a fresh workspace that is always removed
func (s *CorrectionService) run(ctx context.Context, definitionID string, upload AudioUpload) (saga.SagaData, saga.SagaID, error) {
	if upload.Content == nil {
		return nil, "", domain.ErrEmptyAudio
	}

	ws, err := audio.NewWorkspace(s.workDir, WorkspacePrefix)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			s.logger.Warn("Failed to remove workspace", zap.String("dir", ws.Dir()), zap.Error(err))
		}
	}()

	data := saga.SagaData{
		correction.DataKeyWorkspace:    ws,
		correction.DataKeyUpload:       upload.Content,
		correction.DataKeyFilename:     upload.Filename,
		correction.DataKeyLanguage:     strings.TrimSpace(upload.Language),
		correction.DataKeyClientID:     upload.ClientID,
		correction.DataKeyCorrectionID: uuid.NewString(),
	}

	s.logger.Info("Processing recording",
		zap.String("pipeline", definitionID),
		zap.String("filename", upload.Filename),
		zap.String("clientID", upload.ClientID))

	instance, err := s.sagaManager.Run(ctx, definitionID, data)
	if err != nil {
		return nil, "", err
	}

	return data, instance.ID, nil
}

// CorrectText corrects text without any audio
func (s *CorrectionService) CorrectText(ctx context.Context, text, language string) (repositories.GrammarResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return repositories.GrammarResult{}, domain.ErrEmptyText
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = s.defaultLanguage
	}

	result, err := s.grammar.Correct(ctx, text, language)
	if err != nil {
		return repositories.GrammarResult{}, fmt.Errorf("grammar correction failed: %w", err)
	}
	if result.Language == "" {
		result.Language = language
	}
	if result.Edits == nil {
		result.Edits = []entities.Edit{}
	}
	return result, nil
}

// GetCorrection returns one stored correction. A clientID other than empty
// hides corrections that belong to someone else.
func (s *CorrectionService) GetCorrection(ctx context.Context, id, clientID string) (*entities.Correction, error) {
	c, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if clientID != "" && c.ClientID != clientID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// ListCorrections returns recent corrections, newest first
func (s *CorrectionService) ListCorrections(ctx context.Context, filter repositories.ListFilter) ([]*entities.Correction, error) {
	corrections, err := s.repository.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	return corrections, nil
}

// GetPipeline returns the status of a pipeline run
func (s *CorrectionService) GetPipeline(id string) (*saga.SagaInstance, error) {
	instance, ok := s.sagaManager.GetSaga(saga.SagaID(id))
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	return instance, nil
}

// PipelineID extracts the pipeline run from an error returned by the service
func PipelineID(err error) saga.SagaID {
	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		return stepErr.SagaID
	}
	return ""
}

// StartEventListener starts listening to saga events for monitoring
func (s *CorrectionService) StartEventListener(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-s.sagaManager.EventChannel():
				s.handleSagaEvent(event)
			}
		}
	}()
}

// handleSagaEvent handles saga events for logging
func (s *CorrectionService) handleSagaEvent(event saga.SagaEvent) {
	switch event.Type {
	case saga.EventSagaStarted:
		s.logger.Debug("Pipeline started", zap.String("sagaID", string(event.SagaID)))
	case saga.EventSagaCompleted:
		s.logger.Info("Pipeline completed", zap.String("sagaID", string(event.SagaID)))
	case saga.EventSagaCompensated:
		s.logger.Warn("Pipeline compensated", zap.String("sagaID", string(event.SagaID)))
	case saga.EventStepFailed:
		eventData, _ := json.Marshal(event)
		s.logger.Warn("Pipeline step failed",
			zap.String("sagaID", string(event.SagaID)),
			zap.String("stepID", string(event.StepID)),
			zap.ByteString("event", eventData))
	default:
		s.logger.Debug("Pipeline event",
			zap.String("type", event.Type),
			zap.String("sagaID", string(event.SagaID)),
			zap.String("stepID", string(event.StepID)))
	}
}
