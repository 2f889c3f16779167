package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user input before it is moderated and stored.
// Policies are safe for concurrent use once built.
type Sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

func New() *Sanitizer {
	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
}

// Title strips all markup.
func (s *Sanitizer) Title(in string) string {
	return strings.TrimSpace(s.strict.Sanitize(in))
}

// Content keeps the safe subset of user HTML.
func (s *Sanitizer) Content(in string) string {
	return strings.TrimSpace(s.ugc.Sanitize(in))
}

// PlainText flattens content into one line of text for search indexing.
func (s *Sanitizer) PlainText(in string) string {
	// block tags become spaces so words do not merge
	in = strings.ReplaceAll(in, "</p>", " ")
	in = strings.ReplaceAll(in, "<br>", " ")
	in = strings.ReplaceAll(in, "</div>", " ")

	clean := html.UnescapeString(s.strict.Sanitize(in))
	return strings.Join(strings.Fields(clean), " ")
}
