package domain

import "errors"

// Sentinel errors shared by adapters, the pipeline and the API layer.
// Adapters wrap them with fmt.Errorf("...: %w", ErrX) so callers can use errors.Is.
var (
	ErrEmptyAudio       = errors.New("audio upload is empty")
	ErrAudioTooLarge    = errors.New("audio upload exceeds the size limit")
	ErrUnsupportedAudio = errors.New("audio format is not supported")
	ErrNoSpeech         = errors.New("no speech detected in audio")
	ErrEmptyText        = errors.New("text cannot be empty")
	ErrNotFound         = errors.New("not found")
	ErrProviderFailure  = errors.New("upstream provider failed")
	ErrSpeechDisabled   = errors.New("speech synthesis is not configured")
)
