package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/speakfix/adapters/audio"
	"github.com/satriahrh/speakfix/adapters/grammar"
	"github.com/satriahrh/speakfix/adapters/memory"
	"github.com/satriahrh/speakfix/adapters/stt"
	"github.com/satriahrh/speakfix/adapters/tts"
	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
	"github.com/satriahrh/speakfix/internal/saga/correction"
)

type silenceConverter struct{}

func (silenceConverter) ToWAV(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	return audio.WritePCM16WAVFile(outputPath, make([]byte, sampleRate), sampleRate)
}

type serviceFixture struct {
	service *CorrectionService
	manager *saga.Manager
	repo    *memory.CorrectionRepository
	tts     *tts.MockTTS
	workDir string
}

func newServiceFixture(t *testing.T, withSpeech bool) *serviceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &serviceFixture{
		manager: saga.NewManager(logger),
		repo:    memory.NewCorrectionRepository(),
		tts:     tts.NewMockTTS(),
		workDir: t.TempDir(),
	}

	corrector := grammar.NewMock()
	deps := correction.Dependencies{
		STT:        stt.NewMockSpeechToText("i has a apple", logger),
		Grammar:    corrector,
		Converter:  silenceConverter{},
		Repository: f.repo,
	}
	if withSpeech {
		deps.TTS = f.tts
		deps.Cloner = f.tts
	}

	pipeline := correction.NewPipeline(deps, correction.Options{
		MaxUploadBytes:  1 << 20,
		DefaultLanguage: "en-US",
		VoiceCloning:    true,
		STTProvider:     "mock",
		GrammarProvider: "mock",
		TTSProvider:     "mock",
	}, logger)

	f.service = NewCorrectionService(f.manager, pipeline, corrector, f.repo, f.workDir, "en-US", logger)
	return f
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace left behind: %d entries in %s", len(entries), dir)
	}
}

func TestCorrectRecording(t *testing.T) {
	f := newServiceFixture(t, false)

	result, err := f.service.CorrectRecording(context.Background(), AudioUpload{
		Filename: "recording.webm",
		Content:  strings.NewReader("webm bytes"),
		ClientID: "client-1",
	})
	if err != nil {
		t.Fatalf("CorrectRecording() error = %v", err)
	}

	if result.Correction.Original != "i has a apple" {
		t.Errorf("Original = %q", result.Correction.Original)
	}
	if result.Correction.Corrected != "I has a apple." {
		t.Errorf("Corrected = %q", result.Correction.Corrected)
	}
	if result.SagaID == "" {
		t.Error("SagaID is empty")
	}

	stored, err := f.service.GetCorrection(context.Background(), result.Correction.ID, "client-1")
	if err != nil {
		t.Fatalf("GetCorrection() error = %v", err)
	}
	if stored.ClientID != "client-1" {
		t.Errorf("ClientID = %q", stored.ClientID)
	}

	if _, err := f.service.GetCorrection(context.Background(), result.Correction.ID, "someone-else"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetCorrection() for another client err = %v, want ErrNotFound", err)
	}

	pipeline, err := f.service.GetPipeline(string(result.SagaID))
	if err != nil {
		t.Fatalf("GetPipeline() error = %v", err)
	}
	if pipeline.State != saga.SagaStateCompleted {
		t.Errorf("pipeline state = %s", pipeline.State)
	}

	assertWorkDirEmpty(t, f.workDir)
}

func TestCorrectRecordingFailureCleansUp(t *testing.T) {
	f := newServiceFixture(t, false)

	_, err := f.service.CorrectRecording(context.Background(), AudioUpload{
		Filename: "empty.webm",
		Content:  strings.NewReader(""),
	})
	if !errors.Is(err, domain.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}

	id := PipelineID(err)
	if id == "" {
		t.Fatal("PipelineID() returned empty id")
	}
	pipeline, err := f.service.GetPipeline(string(id))
	if err != nil {
		t.Fatalf("GetPipeline() error = %v", err)
	}
	if pipeline.State != saga.SagaStateCompensated {
		t.Errorf("pipeline state = %s", pipeline.State)
	}

	assertWorkDirEmpty(t, f.workDir)
}

func TestCorrectRecordingNilContent(t *testing.T) {
	f := newServiceFixture(t, false)
	if _, err := f.service.CorrectRecording(context.Background(), AudioUpload{}); !errors.Is(err, domain.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestSpeakCorrection(t *testing.T) {
	f := newServiceFixture(t, true)

	result, err := f.service.SpeakCorrection(context.Background(), AudioUpload{
		Filename: "recording.webm",
		Content:  strings.NewReader("webm bytes"),
	})
	if err != nil {
		t.Fatalf("SpeakCorrection() error = %v", err)
	}

	if !bytes.HasPrefix(result.Audio, []byte("RIFF")) {
		t.Error("expected WAV audio")
	}
	if result.Correction.TTSProvider != "mock" {
		t.Errorf("TTSProvider = %q", result.Correction.TTSProvider)
	}
	if len(f.tts.Cloned) != 1 || len(f.tts.Deleted) != 1 {
		t.Errorf("cloned = %v, deleted = %v", f.tts.Cloned, f.tts.Deleted)
	}

	assertWorkDirEmpty(t, f.workDir)
}

func TestSpeakCorrectionDisabled(t *testing.T) {
	f := newServiceFixture(t, false)

	if f.service.SpeechEnabled() {
		t.Fatal("SpeechEnabled() = true without TTS")
	}
	_, err := f.service.SpeakCorrection(context.Background(), AudioUpload{Content: strings.NewReader("x")})
	if !errors.Is(err, domain.ErrSpeechDisabled) {
		t.Fatalf("err = %v, want ErrSpeechDisabled", err)
	}
}

func TestCorrectText(t *testing.T) {
	f := newServiceFixture(t, false)

	tests := []struct {
		name         string
		text         string
		language     string
		wantErr      error
		wantText     string
		wantLanguage string
	}{
		{name: "default language", text: "hello world", wantText: "Hello world.", wantLanguage: "en-US"},
		{name: "explicit language", text: "hello", language: "en-GB", wantText: "Hello.", wantLanguage: "en-GB"},
		{name: "empty", text: "   ", wantErr: domain.ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.CorrectText(context.Background(), tt.text, tt.language)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CorrectText() error = %v", err)
			}
			if result.Corrected != tt.wantText {
				t.Errorf("Corrected = %q, want %q", result.Corrected, tt.wantText)
			}
			if result.Language != tt.wantLanguage {
				t.Errorf("Language = %q, want %q", result.Language, tt.wantLanguage)
			}
		})
	}
}

func TestListCorrections(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	for i, client := range []string{"a", "b", "a"} {
		c := entities.NewCorrection("text", "Text.", "en")
		c.ClientID = client
		c.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := f.repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := f.service.ListCorrections(ctx, repositories.ListFilter{})
	if err != nil {
		t.Fatalf("ListCorrections() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	mine, err := f.service.ListCorrections(ctx, repositories.ListFilter{ClientID: "a", Limit: 1})
	if err != nil {
		t.Fatalf("ListCorrections() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ClientID != "a" {
		t.Errorf("filtered list = %+v", mine)
	}
}

func TestGetPipelineMissing(t *testing.T) {
	f := newServiceFixture(t, false)
	if _, err := f.service.GetPipeline("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartEventListener(t *testing.T) {
	manager := saga.NewManager(zap.NewNop())
	service := &CorrectionService{sagaManager: manager, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.StartEventListener(ctx)

	pipeline := correction.NewPipeline(correction.Dependencies{
		STT:        stt.NewMockSpeechToText("hello", zap.NewNop()),
		Grammar:    grammar.NewMock(),
		Converter:  silenceConverter{},
		Repository: memory.NewCorrectionRepository(),
	}, correction.Options{}, zap.NewNop())
	pipeline.Register(manager)

	ws, err := audio.NewWorkspace(t.TempDir(), WorkspacePrefix)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	defer ws.Cleanup()

	if _, err := manager.Run(ctx, correction.TextDefinitionID, saga.SagaData{
		correction.DataKeyWorkspace: ws,
		correction.DataKeyUpload:    strings.NewReader("bytes"),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(manager.EventChannel()) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(manager.EventChannel()); n != 0 {
		t.Errorf("listener left %d events unread", n)
	}
}
