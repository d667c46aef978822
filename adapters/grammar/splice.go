package grammar

import (
	"sort"
	"unicode/utf16"

	"github.com/satriahrh/speakfix/domain/entities"
)

// ApplyEdits splices replacements into text and returns the new text with the
// edits that were actually applied. Offsets and lengths are UTF-16 code units.
// Edits are applied in ascending offset order; an edit that starts inside an
// already applied one, or that falls outside the text, is skipped.
func ApplyEdits(text string, edits []entities.Edit) (string, []entities.Edit) {
	applied := make([]entities.Edit, 0, len(edits))
	if len(edits) == 0 {
		return text, applied
	}

	units := utf16.Encode([]rune(text))

	sorted := make([]entities.Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	out := make([]uint16, 0, len(units))
	cursor := 0
	for _, e := range sorted {
		if e.Offset < cursor || e.Length < 0 || e.Offset+e.Length > len(units) {
			continue
		}
		if e.Length == 0 && e.Replacement == "" {
			continue
		}

		out = append(out, units[cursor:e.Offset]...)
		out = append(out, utf16.Encode([]rune(e.Replacement))...)

		e.Original = string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
		applied = append(applied, e)
		cursor = e.Offset + e.Length
	}
	out = append(out, units[cursor:]...)

	return string(utf16.Decode(out)), applied
}
