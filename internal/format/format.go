// Package format turns model output into the HTML stored on a record: a
// fixed sequence of markdown-remnant rewrites, a snippet extractor and the
// allow-list sanitizer every body passes through before it is written.
package format

import (
	"regexp"
	"strings"
)

// Rules run in this order; later rules assume earlier ones ran.
var (
	boldRegex    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	headingRegex = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(.+?)[ \t]*$`)
	bulletRegex  = regexp.MustCompile(`(?m)^[ \t]*[-•][ \t]+(.+?)[ \t]*$`)
	listRunRegex = regexp.MustCompile(`(?m)^(<li>.*</li>)$`)
	listGapRegex = regexp.MustCompile(`</ul>\s*<ul>`)

	dashReplacer = strings.NewReplacer("—", "-", "–", "-")
)

// blockPrefixes are line starts that already form a block and are emitted
// without a <p> wrapper.
var blockPrefixes = []string{
	"<h1", "<h2", "<h3", "<h4", "<h5", "<h6",
	"<ul", "</ul", "<ol", "</ol", "<li", "</li",
	"<p>", "<p ", "</p",
	"<table", "</table", "<thead", "</thead", "<tbody", "</tbody",
	"<tr", "</tr", "<th>", "<th ", "</th>", "<td", "</td",
	"<blockquote", "</blockquote",
	"<strong>",
}

// Format normalizes raw model text into paragraph-wrapped HTML. It is
// idempotent on its own output.
func Format(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	content := strings.ReplaceAll(raw, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	content = dashReplacer.Replace(content)

	content = boldRegex.ReplaceAllString(content, "<strong>$1</strong>")

	content = headingRegex.ReplaceAllString(content, "<h2>$1</h2>")

	content = bulletRegex.ReplaceAllString(content, "<li>$1</li>")

	if strings.Contains(content, "<li>") {
		content = listRunRegex.ReplaceAllString(content, "<ul>$1</ul>")
		content = listGapRegex.ReplaceAllString(content, "")
	}

	return paragraphs(content)
}

func isBlock(line string) bool {
	for _, prefix := range blockPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// paragraphs wraps each blank-line separated run of plain lines in one <p>
// and passes block lines through.
func paragraphs(content string) string {
	var out []string
	var pending []string

	flush := func() {
		if len(pending) > 0 {
			out = append(out, "<p>"+strings.Join(pending, " ")+"</p>")
			pending = pending[:0]
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case isBlock(line):
			flush()
			out = append(out, line)
		default:
			pending = append(pending, line)
		}
	}
	flush()

	return strings.Join(out, "\n")
}
