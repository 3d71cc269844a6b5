package localengine

import "strings"

// sentenceBuffer accumulates streamed deltas and splits at sentence
// boundaries so replies surface chunk by chunk.
type sentenceBuffer struct {
	buf strings.Builder
}

// add appends a delta and returns any complete sentence, or "" if no
// boundary was reached yet.
func (s *sentenceBuffer) add(delta string) string {
	s.buf.WriteString(delta)
	text := s.buf.String()
	complete, remainder := splitAtSentence(text)
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)
	return complete
}

// flush returns any remaining text in the buffer.
func (s *sentenceBuffer) flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return text
}

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// splitAtSentence finds the last sentence boundary in text: an ender (.!?)
// followed by whitespace. Returns (completeSentences, remainder), or
// ("", text) when there is no boundary.
func splitAtSentence(text string) (string, string) {
	lastIdx := -1
	for i := range len(text) - 1 {
		if sentenceEnders[text[i]] && isWordBoundary(text[i+1]) {
			lastIdx = i + 1
		}
	}
	if lastIdx < 0 {
		return "", text
	}
	return strings.TrimSpace(text[:lastIdx]), text[lastIdx:]
}

func isWordBoundary(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}
