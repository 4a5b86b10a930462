package subtitle

import (
	"html"
	"regexp"
	"strings"
)

var (
	reOverrideBlock = regexp.MustCompile(`\{[^}]*\}`)
	reHTMLTag       = regexp.MustCompile(`<[^>]*>`)
)

// extractPlainText strips ASS override blocks and HTML tags from raw
// formatted text, decodes HTML entities, and returns the plain translatable
// text plus the list of override blocks removed (in original order) so they
// can be reattached by Replace.
func extractPlainText(raw string) (plain string, overrides []string) {
	overrides = reOverrideBlock.FindAllString(raw, -1)
	stripped := reOverrideBlock.ReplaceAllString(raw, "")
	stripped = reHTMLTag.ReplaceAllString(stripped, "")
	stripped = html.UnescapeString(stripped)
	return stripped, overrides
}

// Replace reattaches an entry's preserved override blocks (in original
// order) as a prefix to newPlain; with no overrides it returns newPlain
// untouched.
func Replace(entry Entry, newPlain string) string {
	if len(entry.Overrides) == 0 {
		return newPlain
	}
	return strings.Join(entry.Overrides, "") + newPlain
}
