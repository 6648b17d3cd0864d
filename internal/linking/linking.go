// Package linking suggests internal links for a body, renders the operator's
// selection form and applies the accepted links.
package linking

import (
	"context"
	"encoding/json"
	"html/template"
	"regexp"
	"strings"

	"github.com/vasilisp/autopost/internal/data"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/openai"
	"github.com/vasilisp/autopost/internal/prompt"
	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
)

const contextLength = 100

// CandidateSource lists published records that may be linked to, newest
// first, leaving out excludeID.
type CandidateSource interface {
	Candidates(ctx context.Context, limit int, excludeID uint) ([]api.Candidate, error)
}

type Linker struct {
	ai      openai.Completer
	records CandidateSource
	log     *logger.Logger
}

func NewLinker(ai openai.Completer, records CandidateSource, log *logger.Logger) *Linker {
	util.Assert(ai != nil, "NewLinker nil completer")
	util.Assert(records != nil, "NewLinker nil candidate source")

	return &Linker{
		ai:      ai,
		records: records,
		log:     logger.OrNop(log),
	}
}

// SuggestLinks asks the model where content could link to existing
// records. Every failure degrades to an empty result.
func (l *Linker) SuggestLinks(ctx context.Context, content string, excludeID uint) []api.LinkSuggestion {
	candidates, err := l.records.Candidates(ctx, prompt.MaxCandidates, excludeID)
	if err != nil {
		l.log.Warn("link candidates unavailable", "error", err)
		return nil
	}
	if len(candidates) == 0 {
		l.log.Debug("no link candidates", "exclude", excludeID)
		return nil
	}

	text, err := l.ai.Complete(ctx, prompt.LinkSuggestions(content, candidates), openai.MaxTokensAuxiliary)
	if err != nil {
		l.log.Warn("link suggestion request failed", "error", err)
		return nil
	}

	suggestions := ParseSuggestions(text)
	l.log.Debug("link suggestions parsed", "count", len(suggestions), "candidates", len(candidates))
	return suggestions
}

var jsonArrayRegex = regexp.MustCompile(`(?s)\[.*\]`)

// ParseSuggestions pulls the outermost bracketed span out of a model reply
// and decodes it. Anything that is not a JSON array of suggestions yields
// nil.
func ParseSuggestions(text string) []api.LinkSuggestion {
	match := jsonArrayRegex.FindString(text)
	if match == "" {
		return nil
	}

	var suggestions []api.LinkSuggestion
	if err := json.Unmarshal([]byte(match), &suggestions); err != nil {
		return nil
	}
	return suggestions
}

// Marshal encodes the full suggestion set for the all_links round trip.
func Marshal(suggestions []api.LinkSuggestion) string {
	if suggestions == nil {
		suggestions = []api.LinkSuggestion{}
	}
	b, err := json.Marshal(suggestions)
	util.Assert(err == nil, "Marshal suggestions")
	return string(b)
}

// Select rebuilds the accepted subset from the all_links payload. Indices
// outside the set and repeated indices are ignored.
func Select(allLinks string, indices []int) ([]api.LinkSuggestion, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	var all []api.LinkSuggestion
	if err := json.Unmarshal([]byte(allLinks), &all); err != nil {
		return nil, errs.Validation("all_links", "Link suggestions could not be read. Please generate them again.")
	}

	seen := make(map[int]bool, len(indices))
	var selected []api.LinkSuggestion
	for _, i := range indices {
		if i < 0 || i >= len(all) || seen[i] {
			continue
		}
		seen[i] = true
		selected = append(selected, all[i])
	}
	return selected, nil
}

var suggestionsTemplate = template.Must(template.New("suggestions").Parse(data.SuggestionsHTML))

type suggestionView struct {
	AnchorText string
	TargetURL  string
	Context    string
}

// Render produces the selection form: one checkbox per suggestion, valued
// by index, plus the hidden all_links field. Values are escaped by the
// template.
func Render(suggestions []api.LinkSuggestion) string {
	views := make([]suggestionView, 0, len(suggestions))
	for _, s := range suggestions {
		v := suggestionView{
			AnchorText: s.AnchorText,
			TargetURL:  s.TargetURL,
		}
		if v.AnchorText == "" {
			v.AnchorText = "Unknown"
		}
		if v.TargetURL == "" {
			v.TargetURL = "#"
		}
		if s.Sentence != "" {
			v.Context = util.Truncate(s.Sentence, contextLength) + "..."
		}
		views = append(views, v)
	}

	var sb strings.Builder
	err := suggestionsTemplate.Execute(&sb, struct {
		Links    []suggestionView
		AllLinks string
	}{
		Links:    views,
		AllLinks: Marshal(suggestions),
	})
	util.Assert(err == nil, "Render suggestions")
	return sb.String()
}
