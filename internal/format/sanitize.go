package format

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer is the last step before a body is written to the store.
type Sanitizer interface {
	Sanitize(html string) string
}

type policySanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns the allow-list policy for record bodies: headings,
// paragraphs, lists, emphasis, tables, blockquotes and http(s) links.
func NewSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h2", "h3", "p", "br", "ul", "ol", "li",
		"strong", "em", "blockquote",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href").Matching(regexp.MustCompile(`^https?://`)).OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https")
	return &policySanitizer{policy: p}
}

func (s *policySanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
