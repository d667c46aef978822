package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satriahrh/speakfix/domain"
)

// EncodePCM16WAV wraps 16-bit little endian mono PCM into a WAV container.
// A trailing odd byte is dropped.
func EncodePCM16WAV(w io.WriteSeeker, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	encoder := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

// WritePCM16WAVFile encodes pcm into a new WAV file at path
func WritePCM16WAVFile(path string, pcm []byte, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	if err := EncodePCM16WAV(file, pcm, sampleRate); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WAVDuration returns the playback duration of the WAV file at path
func WAVDuration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file: %w", domain.ErrUnsupportedAudio)
	}

	if err := decoder.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("failed to read wav data chunk: %w", err)
	}

	bytesPerSecond := int64(decoder.SampleRate) * int64(decoder.NumChans) * int64(decoder.BitDepth/8)
	if bytesPerSecond == 0 {
		return 0, fmt.Errorf("invalid wav header: %w", domain.ErrUnsupportedAudio)
	}
	return time.Duration(decoder.PCMLen() * int64(time.Second) / bytesPerSecond), nil
}
