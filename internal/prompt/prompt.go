// Package prompt renders the instruction texts sent to the model. Every
// builder is deterministic for its inputs.
package prompt

import (
	"strings"
	"text/template"

	"github.com/vasilisp/autopost/internal/data"
	"github.com/vasilisp/autopost/internal/openai"
	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
)

// MaxCandidates bounds the link targets listed in a suggestion prompt.
const MaxCandidates = 20

type PostType string

const (
	Pillar     PostType = "pillar"
	Child      PostType = "child"
	Comparison PostType = "comparison"
	HowTo      PostType = "howto"
	FAQ        PostType = "faq"
	Money      PostType = "money"
	Hub        PostType = "hub"
)

var postTypes = []PostType{Pillar, Child, Comparison, HowTo, FAQ, Money, Hub}

// ParsePostType reports whether s names a known post type.
func ParsePostType(s string) (PostType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, pt := range postTypes {
		if string(pt) == s {
			return pt, true
		}
	}
	return "", false
}

type Intensity string

const (
	Light  Intensity = "light"
	Medium Intensity = "medium"
	Heavy  Intensity = "heavy"
)

// ParseIntensity maps s to a refresh intensity. Anything unrecognized is
// treated as Medium.
func ParseIntensity(s string) Intensity {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light
	case Heavy:
		return Heavy
	default:
		return Medium
	}
}

var (
	articleTemplate = template.Must(template.New("article").Parse(data.ArticlePrompt))
	refreshTemplate = template.Must(template.New("refresh").Parse(data.RefreshPrompt))
	linksTemplate   = template.Must(template.New("links").Parse(data.LinksPrompt))
)

func render(t *template.Template, v any) string {
	var sb strings.Builder
	err := t.Execute(&sb, v)
	util.Assert(err == nil, "prompt template "+t.Name())
	return sb.String()
}

func wordCount(pt PostType) string {
	if pt == Pillar {
		return "1500-3000 words"
	}
	return "800-2000 words"
}

// MaxTokens is the completion budget for an article of the given type.
func MaxTokens(pt PostType) int {
	if pt == Pillar {
		return openai.MaxTokensPillar
	}
	return openai.MaxTokensDefault
}

// Article builds the generation prompt for topic.
func Article(topic string, pt PostType) string {
	return render(articleTemplate, struct {
		Topic     string
		WordCount string
	}{
		Topic:     strings.Join(strings.Fields(topic), " "),
		WordCount: wordCount(pt),
	})
}

// Refresh builds the rewrite prompt for existing content.
func Refresh(content string, intensity Intensity) string {
	return render(refreshTemplate, struct {
		Content   string
		Intensity Intensity
	}{
		Content:   content,
		Intensity: ParseIntensity(string(intensity)),
	})
}

// LinkSuggestions builds the internal-link prompt. Only the first
// MaxCandidates candidates are listed.
func LinkSuggestions(content string, candidates []api.Candidate) string {
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return render(linksTemplate, struct {
		Content    string
		Candidates []api.Candidate
	}{
		Content:    content,
		Candidates: candidates,
	})
}
