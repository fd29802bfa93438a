package session

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var manualSerial = regexp.MustCompile(`^[A-Za-z0-9\-_/\. ]{1,64}$`)

// ErrInvalidSerial is returned for a manual entry that fails validation.
var ErrInvalidSerial = eris.New("session: invalid serial number")

// ValidateSerial trims a manually entered serial number and checks it against
// the allowed alphabet: letters, digits, dash, underscore, slash, dot and
// space, at most 64 characters.
func ValidateSerial(text string) (string, error) {
	s := strings.TrimSpace(text)
	if !manualSerial.MatchString(s) {
		return "", eris.Wrapf(ErrInvalidSerial, "session: %q", text)
	}
	return s, nil
}
