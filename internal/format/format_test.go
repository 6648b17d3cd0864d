package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t\n", ""},
		{"plain paragraph", "Hello world", "<p>Hello world</p>"},
		{"crlf normalized", "one\r\ntwo\r\rthree", "<p>one two</p>\n<p>three</p>"},
		{"em and en dashes", "2020–2024 — a decade", "<p>2020-2024 - a decade</p>"},
		{"bold", "**x**", "<strong>x</strong>"},
		{"bold inside paragraph", "Pick **this** one", "<p>Pick <strong>this</strong> one</p>"},
		{"heading levels collapse", "# One\n### Three\n###### Six", "<h2>One</h2>\n<h2>Three</h2>\n<h2>Six</h2>"},
		{"hash without space is prose", "#1 reason to buy this laptop", "<p>#1 reason to buy this laptop</p>"},
		{"leading minus is prose", "-5 degrees is cold outside", "<p>-5 degrees is cold outside</p>"},
		{"horizontal rule is not a bullet", "---", "<p>---</p>"},
		{"multi-line table passes through", "<table>\n<thead>\n<tr><th>Model</th><th>Price</th></tr>\n</thead>\n<tbody>\n<tr><td>HP</td><td>$500</td></tr>\n<tr><td>Dell</td><td>$600</td></tr>\n</tbody>\n</table>",
			"<table>\n<thead>\n<tr><th>Model</th><th>Price</th></tr>\n</thead>\n<tbody>\n<tr><td>HP</td><td>$500</td></tr>\n<tr><td>Dell</td><td>$600</td></tr>\n</tbody>\n</table>"},
		{"dash bullets", "- a\n- b", "<ul><li>a</li><li>b</li></ul>"},
		{"dot bullets", "• a\n• b", "<ul><li>a</li><li>b</li></ul>"},
		{"en dash bullet after dash rule", "– a", "<ul><li>a</li></ul>"},
		{"list runs separated by blank line merge", "- a\n\n- b", "<ul><li>a</li><li>b</li></ul>"},
		{"list runs separated by text stay apart", "- a\ntext\n- b", "<ul><li>a</li></ul>\n<p>text</p>\n<ul><li>b</li></ul>"},
		{"blank-line blocks", "first line\nsame block\n\nsecond block", "<p>first line same block</p>\n<p>second block</p>"},
		{"html passes through", "<h2>Intro</h2>\n<p>Body</p>", "<h2>Intro</h2>\n<p>Body</p>"},
		{"strong-led line is not wrapped", "**Note:** read this", "<strong>Note:</strong> read this"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestFormatBoldLeavesNoMarkers(t *testing.T) {
	out := Format("**x**")
	assert.Contains(t, out, "<strong>x</strong>")
	assert.NotContains(t, out, "**")
}

func TestFormatIdempotent(t *testing.T) {
	inputs := []string{
		"# Best Laptops\n\n**Great** picks:\n- HP\n- Dell",
		"Intro text\n\n## Section\nBody line one\nBody line two\n\n- a\n- b\n\nOutro — done",
		"<h2>Already</h2>\n<p>clean</p>\n<ul><li>x</li></ul>",
	}
	for _, in := range inputs {
		once := Format(in)
		assert.Equal(t, once, Format(once), in)
	}
}

func TestFormatEndToEndSample(t *testing.T) {
	out := Format("# Best Laptops\n\n**Great** picks:\n- HP\n- Dell")

	assert.Contains(t, out, "<h2>Best Laptops</h2>")
	assert.Contains(t, out, "<strong>Great</strong>")
	assert.Equal(t, 1, strings.Count(out, "<ul>"))
	assert.Contains(t, out, "<ul><li>HP</li><li>Dell</li></ul>")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "- ")
}
