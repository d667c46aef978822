package api

import (
	"mime"
	"net/http"
	"strings"
	"unicode"

	"github.com/satriahrh/speakfix/usecase"
)

// Response headers of the audio mode
const (
	HeaderCorrectionID  = "X-Correction-Id"
	HeaderOriginalText  = "X-Original-Text"
	HeaderCorrectedText = "X-Corrected-Text"
	HeaderLanguage      = "X-Language"
	HeaderAudioURL      = "X-Audio-Url"
	HeaderPipelineID    = "X-Pipeline-Id"
)

// ExposedHeaders are readable by browser clients through CORS
var ExposedHeaders = []string{
	HeaderCorrectionID,
	HeaderOriginalText,
	HeaderCorrectedText,
	HeaderLanguage,
	HeaderAudioURL,
	HeaderPipelineID,
}

// HeaderText makes s safe for a header value. Line breaks and other control
// characters become spaces; text outside ASCII is RFC 2047 Q-encoded.
func HeaderText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
}

// DecodeHeaderText reverses HeaderText
func DecodeHeaderText(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

func setSpeechHeaders(h http.Header, result *usecase.SpeechResult) {
	c := result.Correction
	h.Set(HeaderCorrectionID, c.ID)
	h.Set(HeaderOriginalText, HeaderText(c.Original))
	h.Set(HeaderCorrectedText, HeaderText(c.Corrected))
	if c.Language != "" {
		h.Set(HeaderLanguage, HeaderText(c.Language))
	}
	if c.AudioURL != "" {
		h.Set(HeaderAudioURL, c.AudioURL)
	}
	if result.SagaID != "" {
		h.Set(HeaderPipelineID, string(result.SagaID))
	}
}
