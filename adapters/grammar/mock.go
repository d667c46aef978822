package grammar

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// Mock is a development corrector. It capitalizes the first letter and makes
// sure the text ends with punctuation.
type Mock struct{}

var _ repositories.GrammarCorrector = (*Mock)(nil)

// NewMock creates a mock grammar corrector
func NewMock() *Mock {
	return &Mock{}
}

// Correct implements repositories.GrammarCorrector
func (m *Mock) Correct(ctx context.Context, text string, language string) (repositories.GrammarResult, error) {
	if strings.TrimSpace(text) == "" {
		return repositories.GrammarResult{}, domain.ErrEmptyText
	}

	var edits []entities.Edit

	// leading whitespace offset in UTF-16 units
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	first, _ := utf8.DecodeRuneInString(text[lead:])
	if unicode.IsLower(first) {
		edits = append(edits, entities.Edit{
			Offset:      len(utf16.Encode([]rune(text[:lead]))),
			Length:      len(utf16.Encode([]rune{first})),
			Replacement: string(unicode.ToUpper(first)),
			Message:     "Sentence should start with a capital letter.",
			RuleID:      "MOCK_UPPERCASE_SENTENCE_START",
		})
	}

	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if !strings.ContainsRune(".!?", last) {
		edits = append(edits, entities.Edit{
			Offset:      len(utf16.Encode([]rune(trimmed))),
			Length:      0,
			Replacement: ".",
			Message:     "Sentence should end with punctuation.",
			RuleID:      "MOCK_PUNCTUATION_PARAGRAPH_END",
		})
	}

	corrected, applied := ApplyEdits(text, edits)
	if language == "" {
		language = "en"
	}

	return repositories.GrammarResult{
		Corrected: corrected,
		Language:  language,
		Edits:     applied,
	}, nil
}
