package ocr

import (
	"strings"
)

// Word is one recognised token with its confidence in [0,1].
type Word struct {
	Text       string
	Confidence float64
}

// serialLabels are the label spellings that precede a serial number, longest
// first so "SERIAL NO" wins over "SERIAL".
var serialLabels = [][]string{
	{"SERIAL", "NUMBER"},
	{"SERIAL", "NO"},
	{"SER", "NO"},
	{"NO", "SERIE"},
	{"SERIAL"},
	{"SERNO"},
	{"SER"},
	{"S/N"},
	{"SN"},
	{"ESN"},
}

// otherLabels introduce values that must never be taken as the serial.
var otherLabels = map[string]bool{
	"MODEL": true,
	"TYPE":  true,
	"PNR":   true,
	"P/N":   true,
	"CERT":  true,
	"DATE":  true,
	"EXP":   true,
	"MFR":   true,
}

func normLabel(s string) string {
	return strings.ToUpper(strings.TrimRight(strings.TrimSpace(s), ":.#-"))
}

func isLabelWord(s string) bool {
	n := normLabel(s)
	if otherLabels[n] {
		return true
	}
	for _, l := range serialLabels {
		if len(l) == 1 && l[0] == n {
			return true
		}
	}
	return false
}

// matchLabel reports how many words starting at i spell a serial label.
func matchLabel(words []Word, i int) int {
	for _, l := range serialLabels {
		if i+len(l) > len(words) {
			continue
		}
		ok := true
		for j, part := range l {
			if normLabel(words[i+j].Text) != part {
				ok = false
				break
			}
		}
		if ok {
			return len(l)
		}
	}
	return 0
}

// splitInline handles a label glued to its value, e.g. "S/N:AB123".
func splitInline(w Word) (string, bool) {
	label, value, found := strings.Cut(w.Text, ":")
	if !found {
		return "", false
	}
	value = cleanValue(value)
	if value == "" {
		return "", false
	}
	n := normLabel(label)
	for _, l := range serialLabels {
		if strings.Join(l, " ") == n || strings.Join(l, "") == n {
			return value, true
		}
	}
	return "", false
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), ":;,")
}

// ParseLabel picks the value following the first serial label. Values behind
// MODEL, TYPE, PNR, CERT, DATE, EXP or MFR labels are never chosen. When no
// serial label is present the reading is empty.
func ParseLabel(words []Word) Reading {
	for i := 0; i < len(words); i++ {
		if v, ok := splitInline(words[i]); ok {
			return Reading{Serial: v, Confidence: words[i].Confidence}
		}

		n := matchLabel(words, i)
		if n == 0 {
			continue
		}
		next := i + n
		if next >= len(words) || isLabelWord(words[next].Text) {
			i = next - 1
			continue
		}
		if v := cleanValue(words[next].Text); v != "" {
			return Reading{Serial: v, Confidence: words[next].Confidence}
		}
	}
	return Reading{}
}
