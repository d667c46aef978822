package tts

import (
	"context"
	"testing"

	"github.com/satriahrh/speakfix/domain/repositories"
)

func TestMockTTS_Synthesize(t *testing.T) {
	m := NewMockTTS()

	audio, err := m.Synthesize(context.Background(), "one two three", repositories.VoiceConfig{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	wantSamples := 3 * mockSampleRate / 20
	if len(audio.Data) != wantSamples*2 {
		t.Errorf("Expected %d bytes, got %d", wantSamples*2, len(audio.Data))
	}
	if audio.Format != repositories.AudioFormatPCM || audio.SampleRate != mockSampleRate {
		t.Errorf("Unexpected format %s/%d", audio.Format, audio.SampleRate)
	}
}

func TestMockTTS_CloneLifecycle(t *testing.T) {
	m := NewMockTTS()

	id, err := m.CloneVoice(context.Background(), "abc", "/tmp/sample.wav")
	if err != nil {
		t.Fatalf("CloneVoice() error = %v", err)
	}
	if err := m.DeleteVoice(context.Background(), id); err != nil {
		t.Fatalf("DeleteVoice() error = %v", err)
	}
	if len(m.Cloned) != 1 || len(m.Deleted) != 1 || m.Cloned[0] != m.Deleted[0] {
		t.Errorf("Unexpected clone bookkeeping: %v %v", m.Cloned, m.Deleted)
	}
}
