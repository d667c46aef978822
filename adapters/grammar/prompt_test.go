package grammar

import "testing"

func TestBuildCorrectionPrompt(t *testing.T) {
	got := BuildCorrectionPrompt("  i has a apple ")
	want := "correct the grammar and phrasing of this sentence: i has a apple"
	if got != want {
		t.Errorf("BuildCorrectionPrompt() = %q, want %q", got, want)
	}
}

func TestCleanModelOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"plain", "I have an apple.", "I have an apple."},
		{"whitespace", "\n  I have an apple. \n", "I have an apple."},
		{"double quotes", `"I have an apple."`, "I have an apple."},
		{"curly quotes", "“I have an apple.”", "I have an apple."},
		{"label", "Corrected: I have an apple.", "I have an apple."},
		{"label with quotes", `Corrected sentence: "I have an apple."`, "I have an apple."},
		{"colon in sentence", "Note the time: it is late.", "Note the time: it is late."},
		{"single quote char", `"`, `"`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelOutput(tt.output); got != tt.want {
				t.Errorf("CleanModelOutput(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}
