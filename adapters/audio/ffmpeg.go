package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const (
	defaultFFmpegBinary = "ffmpeg"
	stderrTailBytes     = 512
)

// FFmpegConverter normalizes uploads with the ffmpeg binary
type FFmpegConverter struct {
	binary string
	logger *zap.Logger
}

var _ repositories.AudioConverter = (*FFmpegConverter)(nil)

// NewFFmpegConverter creates a converter. An empty binary uses ffmpeg from PATH.
func NewFFmpegConverter(binary string, logger *zap.Logger) *FFmpegConverter {
	if binary == "" {
		binary = defaultFFmpegBinary
	}
	return &FFmpegConverter{binary: binary, logger: logger}
}

// Available reports whether the ffmpeg binary can be found
func (f *FFmpegConverter) Available() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return fmt.Errorf("ffmpeg binary %q not found: %w", f.binary, err)
	}
	return nil
}

// ToWAV converts inputPath to 16-bit mono WAV at sampleRate. Files that
// already match are copied instead of re-encoded.
func (f *FFmpegConverter) ToWAV(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.Size() == 0 {
		return domain.ErrEmptyAudio
	}

	if isTargetWAV(inputPath, sampleRate) {
		f.logger.Debug("Input already in target format, copying", zap.String("input", inputPath))
		return copyFile(inputPath, outputPath)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outputPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		f.logger.Warn("ffmpeg conversion failed",
			zap.String("input", inputPath),
			zap.Error(err),
			zap.String("stderr", tail(stderr.String(), stderrTailBytes)))
		return fmt.Errorf("ffmpeg: %w: %s", domain.ErrUnsupportedAudio, tail(stderr.String(), stderrTailBytes))
	}

	return nil
}

// isTargetWAV reports whether path is a valid 16-bit PCM mono WAV at sampleRate
func isTargetWAV(path string, sampleRate int) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return false
	}
	return decoder.WavAudioFormat == 1 &&
		decoder.NumChans == 1 &&
		decoder.BitDepth == 16 &&
		int(decoder.SampleRate) == sampleRate
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy audio: %w", err)
	}
	return out.Close()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
