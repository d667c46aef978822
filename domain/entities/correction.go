package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Correction is the stored outcome of one transcription and grammar pass
type Correction struct {
	ID              string    `json:"id" bson:"_id"`
	ClientID        string    `json:"client_id,omitempty" bson:"client_id,omitempty"`
	Filename        string    `json:"filename,omitempty" bson:"filename,omitempty"`
	Original        string    `json:"original" bson:"original"`
	Corrected       string    `json:"corrected" bson:"corrected"`
	Language        string    `json:"language,omitempty" bson:"language,omitempty"`
	Edits           []Edit    `json:"edits" bson:"edits"`
	STTProvider     string    `json:"stt_provider" bson:"stt_provider"`
	GrammarProvider string    `json:"grammar_provider" bson:"grammar_provider"`
	TTSProvider     string    `json:"tts_provider,omitempty" bson:"tts_provider,omitempty"`
	AudioDurationMs int64     `json:"audio_duration_ms" bson:"audio_duration_ms"`
	AudioURL        string    `json:"audio_url,omitempty" bson:"audio_url,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// NewCorrection creates a correction with a fresh ID and creation time
func NewCorrection(original, corrected, language string) *Correction {
	return &Correction{
		ID:        uuid.NewString(),
		Original:  original,
		Corrected: corrected,
		Language:  language,
		Edits:     make([]Edit, 0),
		CreatedAt: time.Now().UTC(),
	}
}

// HasChanges reports whether grammar correction altered the transcript
func (c *Correction) HasChanges() bool {
	return strings.TrimSpace(c.Original) != strings.TrimSpace(c.Corrected)
}

// Validate validates the correction data
func (c *Correction) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(c.Original) == "" {
		return errors.New("original text is required")
	}
	if c.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}
