package radio

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Instance names the logical radio/subscription a command targets, for
// example "phone0". DefaultInstance defers the choice to the worker's
// configured default.
type Instance string

// DefaultInstance targets whichever instance the worker is configured with.
const DefaultInstance Instance = "default"

// Phone returns the instance name for the given phone index.
func Phone(index int) Instance {
	return Instance(fmt.Sprintf("phone%d", index))
}

// IsDefault reports whether the instance defers to the worker's default.
func (i Instance) IsDefault() bool {
	return i == "" || i == DefaultInstance
}

// Resolve returns def when i is the default instance, otherwise i.
func (i Instance) Resolve(def Instance) Instance {
	if i.IsDefault() {
		return def
	}
	return i
}

// NormalizeTag prepares a caller attribution tag for logs and the journal.
// Tags are trimmed, NFC-normalized so visually identical package names
// compare equal, and capped at maxRunes runes (0 means no cap).
func NormalizeTag(tag string, maxRunes int) string {
	tag = norm.NFC.String(strings.TrimSpace(tag))
	if maxRunes <= 0 || utf8.RuneCountInString(tag) <= maxRunes {
		return tag
	}
	runes := []rune(tag)
	return string(runes[:maxRunes])
}
