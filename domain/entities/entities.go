package entities

// Edit is a single grammar fix applied to a transcript.
// Offset and Length are measured in UTF-16 code units of the original text,
// which is how LanguageTool reports match positions.
type Edit struct {
	Offset      int    `json:"offset" bson:"offset"`
	Length      int    `json:"length" bson:"length"`
	Original    string `json:"original" bson:"original"`
	Replacement string `json:"replacement" bson:"replacement"`
	Message     string `json:"message,omitempty" bson:"message,omitempty"`
	RuleID      string `json:"rule_id,omitempty" bson:"rule_id,omitempty"`
}
