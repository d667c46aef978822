package grammar

import "strings"

const (
	correctionPromptPrefix = "correct the grammar and phrasing of this sentence: "

	correctionSystemInstruction = "You are a grammar correction assistant. " +
		"Reply with the corrected sentence only, in the same language as the input. " +
		"Do not add explanations, quotes or alternatives. " +
		"If the sentence is already correct, reply with it unchanged."
)

// BuildCorrectionPrompt returns the user prompt sent to text models
func BuildCorrectionPrompt(text string) string {
	return correctionPromptPrefix + strings.TrimSpace(text)
}

// CleanModelOutput trims model output and strips wrapping quotes and a
// leading "Corrected:" style label
func CleanModelOutput(output string) string {
	out := strings.TrimSpace(output)

	if idx := strings.Index(out, ":"); idx > 0 && idx < 24 {
		label := strings.ToLower(strings.TrimSpace(out[:idx]))
		switch label {
		case "corrected", "corrected sentence", "correction":
			out = strings.TrimSpace(out[idx+1:])
		}
	}

	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"`", "`"}} {
		if len(out) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(out, pair[0]) && strings.HasSuffix(out, pair[1]) {
			out = strings.TrimSpace(out[len(pair[0]) : len(out)-len(pair[1])])
		}
	}

	return out
}
