package format

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	SnippetLength = 160
	ellipsis      = "..."
)

// PlainText strips markup from s and collapses whitespace runs to single
// spaces.
func PlainText(s string) string {
	text := s
	if strings.Contains(s, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Snippet derives a meta description of at most SnippetLength characters.
// Truncated text ends at a word boundary followed by "...".
func Snippet(htmlOrText string) string {
	clean := []rune(PlainText(htmlOrText))
	if len(clean) <= SnippetLength {
		return string(clean)
	}

	budget := SnippetLength - len(ellipsis)
	window := clean[:budget+1]

	cut := budget
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			cut = i
			break
		}
	}

	return strings.TrimRight(string(clean[:cut]), " ") + ellipsis
}
