package domain

import "github.com/satriahrh/speakfix/domain/entities"

// TranscriptionResponse is the JSON body returned by the transcribe endpoint
type TranscriptionResponse struct {
	ID        string          `json:"id"`
	Original  string          `json:"original"`
	Corrected string          `json:"corrected"`
	Language  string          `json:"language,omitempty"`
	Edits     []entities.Edit `json:"edits"`
	AudioURL  string          `json:"audio_url,omitempty"`
	SagaID    string          `json:"pipeline_id,omitempty"`
}

// GrammarRequest is the body of a text-only correction request
type GrammarRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// GrammarResponse is returned for text-only corrections
type GrammarResponse struct {
	Original  string          `json:"original"`
	Corrected string          `json:"corrected"`
	Language  string          `json:"language,omitempty"`
	Edits     []entities.Edit `json:"edits"`
}

// NewTranscriptionResponse builds the response body for a stored correction
func NewTranscriptionResponse(c *entities.Correction, sagaID string) TranscriptionResponse {
	edits := c.Edits
	if edits == nil {
		edits = []entities.Edit{}
	}
	return TranscriptionResponse{
		ID:        c.ID,
		Original:  c.Original,
		Corrected: c.Corrected,
		Language:  c.Language,
		Edits:     edits,
		AudioURL:  c.AudioURL,
		SagaID:    sagaID,
	}
}
