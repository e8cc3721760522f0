package anchor

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cloudIDPattern limits resolve input to the characters cloud anchor ids use.
var cloudIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// DefaultName is the name given to an anchor confirmed without text.
func DefaultName(id ID) string {
	return fmt.Sprintf("Anchor_%d", id)
}

// NormalizeName trims surrounding whitespace and NFC-normalizes the text so
// visually identical names compare equal in history lookups.
func NormalizeName(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// ResolveName returns the normalized text, or the default name when the text
// is blank.
func ResolveName(id ID, text string) string {
	if name := NormalizeName(text); name != "" {
		return name
	}
	return DefaultName(id)
}

// ParseCloudIDs splits comma-separated resolve input into ids.
// Blank entries are dropped and duplicates keep their first position.
func ParseCloudIDs(input string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for i, part := range strings.Split(input, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if !cloudIDPattern.MatchString(id) {
			return nil, fmt.Errorf("cloud id %d (%q): invalid characters", i+1, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
