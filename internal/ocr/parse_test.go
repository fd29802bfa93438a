package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(conf float64, texts ...string) []Word {
	out := make([]Word, len(texts))
	for i, t := range texts {
		out[i] = Word{Text: t, Confidence: conf}
	}
	return out
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name  string
		words []Word
		want  string
	}{
		{"serial colon", words(0.9, "SERIAL:", "AB1234"), "AB1234"},
		{"serial no", words(0.9, "Serial", "No.", "S04878"), "S04878"},
		{"ser no", words(0.9, "SER", "NO", "X9"), "X9"},
		{"serno", words(0.9, "SERNO", "Y8"), "Y8"},
		{"s/n inline", words(0.9, "S/N:D00494"), "D00494"},
		{"esn", words(0.9, "ESN", "CRIT998"), "CRIT998"},
		{"no serie", words(0.9, "No", "Serie", "Z1"), "Z1"},
		{"model first", words(0.9, "MODEL", "X200", "S/N", "A5CF64090"), "A5CF64090"},
		{"label followed by other label", words(0.9, "SER", "MFR", "ACME", "SN", "DEF456"), "DEF456"},
		{"no label", words(0.9, "MODEL", "X200", "TYPE", "B"), ""},
		{"trailing label", words(0.9, "PNR", "123", "SERIAL"), ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.words).Serial)
		})
	}
}

func TestParseLabel_ConfidenceFromValueWord(t *testing.T) {
	ws := []Word{{Text: "S/N", Confidence: 0.99}, {Text: "AB1234", Confidence: 0.61}}
	r := ParseLabel(ws)
	assert.Equal(t, "AB1234", r.Serial)
	assert.InDelta(t, 0.61, r.Confidence, 1e-9)
}
