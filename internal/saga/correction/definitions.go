package correction

import (
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
)

// Definition IDs registered with the saga manager
const (
	TextDefinitionID   = "correction_text"
	SpeechDefinitionID = "correction_speech"
)

const (
	defaultSampleRate = 16000
	defaultTimeout    = 120 * time.Second
)

// Dependencies are the ports the correction steps run against. TTS, Cloner
// and Store are optional.
type Dependencies struct {
	STT        repositories.SpeechToText
	Grammar    repositories.GrammarCorrector
	TTS        repositories.TextToSpeech
	Cloner     repositories.VoiceCloner
	Converter  repositories.AudioConverter
	Store      repositories.AudioStore
	Repository repositories.CorrectionRepository
}

// Options tune the pipeline
type Options struct {
	MaxUploadBytes  int64
	SampleRate      int
	DefaultLanguage string
	VoiceCloning    bool
	Timeout         time.Duration

	// Provider names recorded on every correction
	STTProvider     string
	GrammarProvider string
	TTSProvider     string
}

// Pipeline builds the correction saga definitions
type Pipeline struct {
	deps    Dependencies
	options Options
	logger  *zap.Logger
}

// NewPipeline creates the pipeline, applying option defaults
func NewPipeline(deps Dependencies, options Options, logger *zap.Logger) *Pipeline {
	if options.SampleRate <= 0 {
		options.SampleRate = defaultSampleRate
	}
	if options.Timeout <= 0 {
		options.Timeout = defaultTimeout
	}
	return &Pipeline{deps: deps, options: options, logger: logger}
}

// SpeechEnabled reports whether the speech definition can run
func (p *Pipeline) SpeechEnabled() bool {
	return p.deps.TTS != nil
}

// Register adds the text definition and, when a TTS backend exists, the speech
// definition to the manager
func (p *Pipeline) Register(manager *saga.Manager) {
	manager.RegisterDefinition(&TextDefinition{pipeline: p})
	if p.SpeechEnabled() {
		manager.RegisterDefinition(&SpeechDefinition{pipeline: p})
	}
}

// TextDefinition transcribes, corrects and stores a recording
type TextDefinition struct {
	pipeline *Pipeline
}

func (d *TextDefinition) ID() string {
	return TextDefinitionID
}

func (d *TextDefinition) Timeout() time.Duration {
	return d.pipeline.options.Timeout
}

func (d *TextDefinition) Steps() []saga.Step {
	p := d.pipeline
	return []saga.Step{
		NewPrepareAudioStep(p),
		NewTranscribeStep(p),
		NewCorrectGrammarStep(p),
		NewPersistStep(p),
	}
}

// SpeechDefinition also speaks the corrected text back
type SpeechDefinition struct {
	pipeline *Pipeline
}

func (d *SpeechDefinition) ID() string {
	return SpeechDefinitionID
}

func (d *SpeechDefinition) Timeout() time.Duration {
	return d.pipeline.options.Timeout
}

func (d *SpeechDefinition) Steps() []saga.Step {
	p := d.pipeline
	steps := []saga.Step{
		NewPrepareAudioStep(p),
		NewTranscribeStep(p),
		NewCorrectGrammarStep(p),
	}
	if p.options.VoiceCloning && p.deps.Cloner != nil {
		steps = append(steps, NewCloneVoiceStep(p))
	}
	steps = append(steps, NewSynthesizeStep(p))
	if p.deps.Store != nil {
		steps = append(steps, NewArchiveAudioStep(p))
	}
	return append(steps, NewPersistStep(p))
}
