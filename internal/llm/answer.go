package llm

import (
	"strings"

	"github.com/sells-group/serialscan/internal/model"
)

// Normalize turns a raw reply into an Answer. An empty reply, or one whose
// whole text is the sentinel (any case, optionally quoted), is no answer;
// "NONE123" is a value. Values keep every character apart from surrounding
// whitespace.
func Normalize(text string) model.Answer {
	v := strings.TrimSpace(text)
	if u := unquote(v); u == "" || strings.EqualFold(u, Sentinel) {
		return model.NoAnswer()
	}
	return model.AnswerValue(v)
}

// unquote strips one pair of matching quotes or backticks. It is applied to
// the sentinel check only.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '"' || first == '\'' || first == '`') {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
