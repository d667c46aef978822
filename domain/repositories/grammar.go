package repositories

import (
	"context"

	"github.com/satriahrh/speakfix/domain/entities"
)

// GrammarCorrector abstracts grammar correction backends, either a text model
// or a grammar checking API
type GrammarCorrector interface {
	// Correct returns the corrected form of text. An empty language lets the
	// backend pick its default or detect it.
	Correct(ctx context.Context, text string, language string) (GrammarResult, error)
}

// GrammarResult is the output of a grammar correction pass
type GrammarResult struct {
	Corrected string          `json:"corrected"`
	Language  string          `json:"language,omitempty"`
	Edits     []entities.Edit `json:"edits"`
}
