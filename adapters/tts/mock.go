package tts

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const mockSampleRate = 16000

// MockTTS produces a short sine tone whose length grows with the text. It also
// acts as a VoiceCloner that records the voices it created.
type MockTTS struct {
	mu      sync.Mutex
	Cloned  []string
	Deleted []string
}

var (
	_ repositories.TextToSpeech = (*MockTTS)(nil)
	_ repositories.VoiceCloner  = (*MockTTS)(nil)
)

// NewMockTTS creates a mock synthesizer
func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTTS) Synthesize(ctx context.Context, text string, voice repositories.VoiceConfig) (*repositories.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}

	// 50ms of a 440Hz tone per word
	words := len(strings.Fields(text))
	samples := words * mockSampleRate / 20
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/mockSampleRate))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}

	return &repositories.Audio{
		Data:       data,
		Format:     repositories.AudioFormatPCM,
		SampleRate: mockSampleRate,
	}, nil
}

// CloneVoice implements repositories.VoiceCloner
func (m *MockTTS) CloneVoice(ctx context.Context, name string, samplePath string) (string, error) {
	id := "mock-" + name
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cloned = append(m.Cloned, id)
	return id, nil
}

// DeleteVoice implements repositories.VoiceCloner
func (m *MockTTS) DeleteVoice(ctx context.Context, voiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, voiceID)
	return nil
}
