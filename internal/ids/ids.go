// Package ids generates and validates the opaque identifiers used for every
// stored entity.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier in canonical UUID form.
func New() string {
	return uuid.NewString()
}

// Valid reports whether id is a canonical, hyphenated UUID. Braced, URN and
// unhyphenated encodings are rejected so stored ids have a single spelling.
func Valid(id string) bool {
	if len(id) != 36 || strings.ToLower(id) != id {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
