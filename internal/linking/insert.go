package linking

import (
	"html"
	"strings"

	"github.com/vasilisp/autopost/internal/format"
	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
)

const (
	anchorOpen  = "<a"
	anchorClose = "</a>"
)

type skipped struct {
	link   api.LinkSuggestion
	reason string
}

// InsertLinks links the first eligible occurrence of each suggestion's
// anchor text, in order, each pass working on the previous pass's output.
// Suggestions without usable anchor text or an absolute http(s) URL are
// skipped.
func InsertLinks(content string, links []api.LinkSuggestion) string {
	out, _ := insertLinks(content, links)
	return out
}

// InsertLinks is the package function with skipped suggestions logged.
func (l *Linker) InsertLinks(content string, links []api.LinkSuggestion) string {
	out, skips := insertLinks(content, links)
	for _, s := range skips {
		l.log.Warn("link suggestion skipped",
			"reason", s.reason,
			"anchor", util.Truncate(s.link.AnchorText, 80),
			"url", util.Truncate(s.link.TargetURL, 200),
		)
	}
	return out
}

func insertLinks(content string, links []api.LinkSuggestion) (string, []skipped) {
	if content == "" || len(links) == 0 {
		return content, nil
	}

	var skips []skipped
	for _, link := range links {
		anchor := format.PlainText(link.AnchorText)
		if anchor == "" {
			skips = append(skips, skipped{link, "empty anchor text"})
			continue
		}
		target, ok := util.AbsoluteURL(link.TargetURL)
		if !ok {
			skips = append(skips, skipped{link, "invalid target url"})
			continue
		}

		replacement := `<a href="` + html.EscapeString(target) + `">` + html.EscapeString(anchor) + anchorClose

		replaced := false
		for _, needle := range needles(anchor) {
			if at := firstUnlinked(content, needle); at >= 0 {
				content = content[:at] + replacement + content[at+len(needle):]
				replaced = true
				break
			}
		}
		if !replaced {
			skips = append(skips, skipped{link, "anchor text not found"})
		}
	}
	return content, skips
}

// needles are the spellings of anchor to look for: as written, then as it
// appears once entity-escaped by the sanitizer.
func needles(anchor string) []string {
	escaped := html.EscapeString(anchor)
	if escaped == anchor {
		return []string{anchor}
	}
	return []string{anchor, escaped}
}

// firstUnlinked returns the offset of the first occurrence of needle that
// is not followed by a closing anchor tag ahead of any opening one, or -1.
func firstUnlinked(content, needle string) int {
	from := 0
	for {
		i := strings.Index(content[from:], needle)
		if i < 0 {
			return -1
		}
		at := from + i
		if !insideAnchor(content[at+len(needle):]) {
			return at
		}
		from = at + len(needle)
	}
}

func insideAnchor(rest string) bool {
	closeAt := strings.Index(rest, anchorClose)
	if closeAt < 0 {
		return false
	}
	openAt := indexAnchorOpen(rest)
	return openAt < 0 || closeAt < openAt
}

func indexAnchorOpen(s string) int {
	from := 0
	for {
		i := strings.Index(s[from:], anchorOpen)
		if i < 0 {
			return -1
		}
		at := from + i
		next := at + len(anchorOpen)
		if next == len(s) || strings.ContainsRune(" \t\n>", rune(s[next])) {
			return at
		}
		from = next
	}
}
