package audio

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/satriahrh/speakfix/domain"
)

func pcmSilence(samples int) []byte {
	return make([]byte, samples*2)
}

func TestEncodePCM16WAV_RoundTrip(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(0xFC18)) // -1000
	binary.LittleEndian.PutUint16(pcm[4:], uint16(int16(32767)))
	binary.LittleEndian.PutUint16(pcm[6:], uint16(0x8000)) // -32768

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WritePCM16WAVFile(path, pcm, 24000); err != nil {
		t.Fatalf("WritePCM16WAVFile() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open wav: %v", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if decoder.SampleRate != 24000 || decoder.NumChans != 1 || decoder.BitDepth != 16 {
		t.Errorf("Unexpected header %d Hz, %d ch, %d bit", decoder.SampleRate, decoder.NumChans, decoder.BitDepth)
	}

	want := []int{1000, -1000, 32767, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Errorf("Sample %d: expected %d, got %d", i, v, buf.Data[i])
		}
	}
}

func TestEncodePCM16WAV_DropsOddByte(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.wav")
	if err := WritePCM16WAVFile(path, []byte{1, 0, 2, 0, 3}, 16000); err != nil {
		t.Fatalf("WritePCM16WAVFile() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open wav: %v", err)
	}
	defer file.Close()

	buf, err := wav.NewDecoder(file).FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(buf.Data) != 2 {
		t.Errorf("Expected 2 samples, got %d", len(buf.Data))
	}
}

func TestEncodePCM16WAV_InvalidRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WritePCM16WAVFile(path, pcmSilence(10), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "second.wav")
	if err := WritePCM16WAVFile(path, pcmSilence(16000), 16000); err != nil {
		t.Fatalf("WritePCM16WAVFile() error = %v", err)
	}

	duration, err := WAVDuration(path)
	if err != nil {
		t.Fatalf("WAVDuration() error = %v", err)
	}
	if duration != time.Second {
		t.Errorf("Expected 1s, got %s", duration)
	}
}

func TestWAVDuration_NotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.webm")
	if err := os.WriteFile(path, []byte("\x1a\x45\xdf\xa3 not a wav file at all"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := WAVDuration(path)
	if !errors.Is(err, domain.ErrUnsupportedAudio) {
		t.Errorf("Expected ErrUnsupportedAudio, got %v", err)
	}
}
