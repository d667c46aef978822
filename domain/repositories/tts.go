package repositories

import "context"

// Audio formats produced by TextToSpeech implementations
const (
	AudioFormatPCM = "pcm" // 16-bit little endian mono
	AudioFormatWAV = "wav"
	AudioFormatMP3 = "mp3"
)

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Audio, error)
}

// VoiceCloner creates a temporary voice from a reference speaker sample
type VoiceCloner interface {
	CloneVoice(ctx context.Context, name string, samplePath string) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
}

// VoiceConfig selects the voice used for synthesis. Empty fields fall back to
// the provider defaults.
type VoiceConfig struct {
	VoiceID  string `json:"voice_id"`
	Language string `json:"language"`
}

// Audio is raw synthesized voice
type Audio struct {
	Data       []byte
	Format     string
	SampleRate int
}
