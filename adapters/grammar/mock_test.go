package grammar

import (
	"context"
	"errors"
	"testing"

	"github.com/satriahrh/speakfix/domain"
)

func TestMock_Correct(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      string
		wantEdits int
	}{
		{"already correct", "Hello there.", "Hello there.", 0},
		{"lowercase start", "hello there.", "Hello there.", 1},
		{"missing punctuation", "Hello there", "Hello there.", 1},
		{"both", "hello there", "Hello there.", 2},
		{"leading space", "  hello there!", "  Hello there!", 1},
		{"trailing space", "hello there  ", "Hello there.  ", 2},
		{"non-ascii start", "élan is nice", "Élan is nice.", 2},
	}

	m := NewMock()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Correct(context.Background(), tt.text, "")
			if err != nil {
				t.Fatalf("Correct() error = %v", err)
			}
			if result.Corrected != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.text, result.Corrected, tt.want)
			}
			if len(result.Edits) != tt.wantEdits {
				t.Errorf("Expected %d edits, got %d", tt.wantEdits, len(result.Edits))
			}
			if result.Language != "en" {
				t.Errorf("Expected default language en, got %s", result.Language)
			}
		})
	}
}

func TestMock_EmptyText(t *testing.T) {
	_, err := NewMock().Correct(context.Background(), " \n", "")
	if !errors.Is(err, domain.ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}
