package repositories

import "context"

// AudioConverter normalizes arbitrary uploads into mono PCM WAV
type AudioConverter interface {
	ToWAV(ctx context.Context, inputPath, outputPath string, sampleRate int) error
}
