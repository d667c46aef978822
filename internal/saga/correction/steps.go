package correction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/adapters/audio"
	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
)

// Data keys for correction sagas
const (
	DataKeyWorkspace    = "workspace"     // *audio.Workspace, set by the caller
	DataKeyUpload       = "upload"        // io.Reader, set by the caller
	DataKeyFilename     = "filename"      // string
	DataKeyLanguage     = "language"      // string, requested language
	DataKeyClientID     = "client_id"     // string
	DataKeyCorrectionID = "correction_id" // string
	DataKeyInputPath    = "input_path"
	DataKeyDurationMs   = "duration_ms"
	DataKeyTranscript   = "transcript"
	DataKeyGrammar      = "grammar"
	DataKeyVoiceID      = "voice_id"
	DataKeyOutputPath   = "output_path"
	DataKeyOutputAudio  = "output_audio" // []byte WAV
	DataKeyAudioKey     = "audio_key"
	DataKeyAudioURL     = "audio_url"
	DataKeyCorrection   = "correction" // *entities.Correction
)

const (
	convertedFileName = "input.wav"
	outputFileName    = "output.wav"
	encodedFileName   = "output.mp3"
)

func stringValue(data saga.SagaData, key string) string {
	s, _ := data[key].(string)
	return s
}

func workspaceFrom(data saga.SagaData) (*audio.Workspace, error) {
	ws, ok := data[DataKeyWorkspace].(*audio.Workspace)
	if !ok || ws == nil {
		return nil, errors.New("missing workspace")
	}
	return ws, nil
}

func transcriptFrom(data saga.SagaData) (repositories.Transcript, error) {
	t, ok := data[DataKeyTranscript].(repositories.Transcript)
	if !ok {
		return repositories.Transcript{}, errors.New("missing transcript from previous step")
	}
	return t, nil
}

func grammarFrom(data saga.SagaData) (repositories.GrammarResult, error) {
	g, ok := data[DataKeyGrammar].(repositories.GrammarResult)
	if !ok {
		return repositories.GrammarResult{}, errors.New("missing grammar result from previous step")
	}
	return g, nil
}

// uploadFileName keeps the upload's extension so the converter can sniff it
func uploadFileName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, " /\\") {
		ext = ""
	}
	return "upload" + ext
}

// PrepareAudioStep writes the upload into the workspace and converts it to
// mono WAV
type PrepareAudioStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewPrepareAudioStep(p *Pipeline) *PrepareAudioStep {
	return &PrepareAudioStep{pipeline: p, logger: p.logger}
}

func (s *PrepareAudioStep) ID() saga.StepID {
	return "prepare_audio"
}

func (s *PrepareAudioStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	ws, err := workspaceFrom(data)
	if err != nil {
		return saga.Failed(err)
	}
	upload, ok := data[DataKeyUpload].(io.Reader)
	if !ok || upload == nil {
		return saga.Failed(domain.ErrEmptyAudio)
	}

	uploadPath := ws.Path(uploadFileName(stringValue(data, DataKeyFilename)))
	written, err := s.writeUpload(uploadPath, upload)
	if err != nil {
		return saga.Failed(err)
	}

	inputPath := ws.Path(convertedFileName)
	if err := s.pipeline.deps.Converter.ToWAV(ctx, uploadPath, inputPath, s.pipeline.options.SampleRate); err != nil {
		return saga.Failed(fmt.Errorf("failed to convert audio: %w", err))
	}

	duration, err := audio.WAVDuration(inputPath)
	if err != nil {
		return saga.Failed(fmt.Errorf("failed to read converted audio: %w", err))
	}

	data[DataKeyInputPath] = inputPath
	data[DataKeyDurationMs] = duration.Milliseconds()

	s.logger.Debug("Audio prepared",
		zap.Int64("bytes", written),
		zap.Duration("duration", duration))

	return saga.Succeeded(map[string]interface{}{
		"bytes":       written,
		"duration_ms": duration.Milliseconds(),
	})
}

func (s *PrepareAudioStep) writeUpload(path string, upload io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	limit := s.pipeline.options.MaxUploadBytes
	reader := upload
	if limit > 0 {
		reader = io.LimitReader(upload, limit+1)
	}

	written, err := io.Copy(f, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if written == 0 {
		return 0, domain.ErrEmptyAudio
	}
	if limit > 0 && written > limit {
		return 0, domain.ErrAudioTooLarge
	}
	return written, nil
}

// Compensate is a no-op, the workspace owner removes the files
func (s *PrepareAudioStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}

// TranscribeStep runs speech recognition on the converted audio
type TranscribeStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewTranscribeStep(p *Pipeline) *TranscribeStep {
	return &TranscribeStep{pipeline: p, logger: p.logger}
}

func (s *TranscribeStep) ID() saga.StepID {
	return "transcribe"
}

func (s *TranscribeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	inputPath := stringValue(data, DataKeyInputPath)
	if inputPath == "" {
		return saga.Failed(errors.New("missing converted audio from previous step"))
	}

	transcript, err := s.pipeline.deps.STT.TranscribeAudio(ctx, inputPath, repositories.AudioConfig{
		SampleRate: s.pipeline.options.SampleRate,
		Encoding:   "LINEAR16",
		Language:   stringValue(data, DataKeyLanguage),
	})
	if err != nil {
		return saga.Failed(fmt.Errorf("speech-to-text failed: %w", err))
	}

	transcript.Text = strings.TrimSpace(transcript.Text)
	if transcript.Text == "" {
		return saga.Failed(domain.ErrNoSpeech)
	}

	data[DataKeyTranscript] = transcript

	s.logger.Debug("Transcription completed",
		zap.String("language", transcript.Language),
		zap.Int("characters", len(transcript.Text)))

	return saga.Succeeded(map[string]interface{}{
		"language":   transcript.Language,
		"confidence": transcript.Confidence,
	})
}

func (s *TranscribeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}

// CorrectGrammarStep corrects the transcript
type CorrectGrammarStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewCorrectGrammarStep(p *Pipeline) *CorrectGrammarStep {
	return &CorrectGrammarStep{pipeline: p, logger: p.logger}
}

func (s *CorrectGrammarStep) ID() saga.StepID {
	return "correct_grammar"
}

func (s *CorrectGrammarStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	transcript, err := transcriptFrom(data)
	if err != nil {
		return saga.Failed(err)
	}

	language := stringValue(data, DataKeyLanguage)
	if language == "" {
		language = transcript.Language
	}
	if language == "" {
		language = s.pipeline.options.DefaultLanguage
	}

	result, err := s.pipeline.deps.Grammar.Correct(ctx, transcript.Text, language)
	if err != nil {
		return saga.Failed(fmt.Errorf("grammar correction failed: %w", err))
	}
	if result.Language == "" {
		result.Language = language
	}
	if result.Edits == nil {
		result.Edits = []entities.Edit{}
	}

	data[DataKeyGrammar] = result

	return saga.Succeeded(map[string]interface{}{
		"language": result.Language,
		"edits":    len(result.Edits),
	})
}

func (s *CorrectGrammarStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}

// CloneVoiceStep creates a temporary voice from the speaker's upload
type CloneVoiceStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewCloneVoiceStep(p *Pipeline) *CloneVoiceStep {
	return &CloneVoiceStep{pipeline: p, logger: p.logger}
}

func (s *CloneVoiceStep) ID() saga.StepID {
	return "clone_voice"
}

func (s *CloneVoiceStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	inputPath := stringValue(data, DataKeyInputPath)
	if inputPath == "" {
		return saga.Failed(errors.New("missing converted audio from previous step"))
	}

	name := "speakfix-" + uuid.NewString()[:8]
	voiceID, err := s.pipeline.deps.Cloner.CloneVoice(ctx, name, inputPath)
	if err != nil {
		return saga.Failed(fmt.Errorf("voice cloning failed: %w", err))
	}

	data[DataKeyVoiceID] = voiceID

	s.logger.Debug("Voice cloned", zap.String("voiceID", voiceID))

	return saga.Succeeded(map[string]interface{}{"voice": name})
}

// Compensate deletes the cloned voice unless synthesis already did
func (s *CloneVoiceStep) Compensate(ctx context.Context, data saga.SagaData) error {
	voiceID := stringValue(data, DataKeyVoiceID)
	if voiceID == "" {
		return nil
	}
	if err := s.pipeline.deps.Cloner.DeleteVoice(ctx, voiceID); err != nil {
		return fmt.Errorf("failed to delete cloned voice: %w", err)
	}
	delete(data, DataKeyVoiceID)
	return nil
}

// SynthesizeStep speaks the corrected text and stores it as WAV
type SynthesizeStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewSynthesizeStep(p *Pipeline) *SynthesizeStep {
	return &SynthesizeStep{pipeline: p, logger: p.logger}
}

func (s *SynthesizeStep) ID() saga.StepID {
	return "synthesize"
}

func (s *SynthesizeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	ws, err := workspaceFrom(data)
	if err != nil {
		return saga.Failed(err)
	}
	result, err := grammarFrom(data)
	if err != nil {
		return saga.Failed(err)
	}

	voiceID := stringValue(data, DataKeyVoiceID)
	if voiceID != "" {
		defer s.releaseVoice(ctx, data, voiceID)
	}

	speech, err := s.pipeline.deps.TTS.Synthesize(ctx, result.Corrected, repositories.VoiceConfig{
		VoiceID:  voiceID,
		Language: result.Language,
	})
	if err != nil {
		return saga.Failed(fmt.Errorf("speech synthesis failed: %w", err))
	}

	outputPath := ws.Path(outputFileName)
	if err := s.writeWAV(ctx, ws, outputPath, speech); err != nil {
		return saga.Failed(err)
	}

	wavData, err := os.ReadFile(outputPath)
	if err != nil {
		return saga.Failed(fmt.Errorf("failed to read synthesized audio: %w", err))
	}

	data[DataKeyOutputPath] = outputPath
	data[DataKeyOutputAudio] = wavData

	return saga.Succeeded(map[string]interface{}{
		"bytes":        len(wavData),
		"cloned_voice": voiceID != "",
	})
}

func (s *SynthesizeStep) writeWAV(ctx context.Context, ws *audio.Workspace, outputPath string, speech *repositories.Audio) error {
	switch speech.Format {
	case repositories.AudioFormatPCM:
		if err := audio.WritePCM16WAVFile(outputPath, speech.Data, speech.SampleRate); err != nil {
			return fmt.Errorf("failed to encode synthesized audio: %w", err)
		}
	case repositories.AudioFormatWAV:
		if err := os.WriteFile(outputPath, speech.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write synthesized audio: %w", err)
		}
	case repositories.AudioFormatMP3:
		encodedPath := ws.Path(encodedFileName)
		if err := os.WriteFile(encodedPath, speech.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write synthesized audio: %w", err)
		}
		rate := speech.SampleRate
		if rate <= 0 {
			rate = s.pipeline.options.SampleRate
		}
		if err := s.pipeline.deps.Converter.ToWAV(ctx, encodedPath, outputPath, rate); err != nil {
			return fmt.Errorf("failed to convert synthesized audio: %w", err)
		}
	default:
		return fmt.Errorf("unsupported synthesized audio format %q: %w", speech.Format, domain.ErrProviderFailure)
	}
	return nil
}

// releaseVoice deletes the cloned voice once synthesis is done with it
func (s *SynthesizeStep) releaseVoice(ctx context.Context, data saga.SagaData, voiceID string) {
	if s.pipeline.deps.Cloner == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.pipeline.deps.Cloner.DeleteVoice(ctx, voiceID); err != nil {
		s.logger.Warn("Failed to delete cloned voice",
			zap.String("voiceID", voiceID),
			zap.Error(err))
		return
	}
	delete(data, DataKeyVoiceID)
}

// Compensate removes the synthesized file
func (s *SynthesizeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	outputPath := stringValue(data, DataKeyOutputPath)
	delete(data, DataKeyOutputAudio)
	if outputPath == "" {
		return nil
	}
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove synthesized audio: %w", err)
	}
	return nil
}

// ArchiveAudioStep uploads the synthesized WAV to the audio store
type ArchiveAudioStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewArchiveAudioStep(p *Pipeline) *ArchiveAudioStep {
	return &ArchiveAudioStep{pipeline: p, logger: p.logger}
}

func (s *ArchiveAudioStep) ID() saga.StepID {
	return "archive_audio"
}

func (s *ArchiveAudioStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	wavData, ok := data[DataKeyOutputAudio].([]byte)
	if !ok || len(wavData) == 0 {
		return saga.Failed(errors.New("missing synthesized audio from previous step"))
	}

	id := stringValue(data, DataKeyCorrectionID)
	if id == "" {
		id = uuid.NewString()
		data[DataKeyCorrectionID] = id
	}

	key := "corrections/" + id + ".wav"
	url, err := s.pipeline.deps.Store.Put(ctx, key, bytes.NewReader(wavData), int64(len(wavData)), "audio/wav")
	if err != nil {
		return saga.Failed(fmt.Errorf("failed to archive audio: %w", err))
	}

	data[DataKeyAudioKey] = key
	data[DataKeyAudioURL] = url

	return saga.Succeeded(map[string]interface{}{"key": key})
}

// Compensate deletes the archived object
func (s *ArchiveAudioStep) Compensate(ctx context.Context, data saga.SagaData) error {
	key := stringValue(data, DataKeyAudioKey)
	if key == "" {
		return nil
	}
	if err := s.pipeline.deps.Store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete archived audio: %w", err)
	}
	delete(data, DataKeyAudioKey)
	delete(data, DataKeyAudioURL)
	return nil
}

// PersistStep stores the correction in history
type PersistStep struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewPersistStep(p *Pipeline) *PersistStep {
	return &PersistStep{pipeline: p, logger: p.logger}
}

func (s *PersistStep) ID() saga.StepID {
	return "persist"
}

func (s *PersistStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	transcript, err := transcriptFrom(data)
	if err != nil {
		return saga.Failed(err)
	}
	result, err := grammarFrom(data)
	if err != nil {
		return saga.Failed(err)
	}

	correction := entities.NewCorrection(transcript.Text, result.Corrected, result.Language)
	if id := stringValue(data, DataKeyCorrectionID); id != "" {
		correction.ID = id
	}
	correction.ClientID = stringValue(data, DataKeyClientID)
	correction.Filename = filepath.Base(stringValue(data, DataKeyFilename))
	if correction.Filename == "." {
		correction.Filename = ""
	}
	correction.Edits = result.Edits
	correction.STTProvider = s.pipeline.options.STTProvider
	correction.GrammarProvider = s.pipeline.options.GrammarProvider
	if _, ok := data[DataKeyOutputAudio]; ok {
		correction.TTSProvider = s.pipeline.options.TTSProvider
	}
	if ms, ok := data[DataKeyDurationMs].(int64); ok {
		correction.AudioDurationMs = ms
	}
	correction.AudioURL = stringValue(data, DataKeyAudioURL)

	if err := s.pipeline.deps.Repository.Create(ctx, correction); err != nil {
		return saga.Failed(fmt.Errorf("failed to store correction: %w", err))
	}

	data[DataKeyCorrection] = correction

	return saga.Succeeded(map[string]interface{}{"correction_id": correction.ID})
}

func (s *PersistStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}
