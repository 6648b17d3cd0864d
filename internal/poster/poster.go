// Package poster runs the operator workflows: generating a post, accepting
// suggested internal links and refreshing an existing post.
package poster

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/format"
	"github.com/vasilisp/autopost/internal/linking"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/openai"
	"github.com/vasilisp/autopost/internal/prompt"
	"github.com/vasilisp/autopost/internal/store"
	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
)

// ContentAPIOpenRouter is the only supported content generator.
const ContentAPIOpenRouter = "openrouter"

// Records is the slice of the store the workflows use.
type Records interface {
	linking.CandidateSource
	CreateRecord(ctx context.Context, r *store.Record, meta map[string]string) error
	GetRecord(ctx context.Context, id uint) (*store.Record, error)
	UpdateRecord(ctx context.Context, id uint, u store.RecordUpdate) (*store.Record, error)
	UpdateRecordWithMeta(ctx context.Context, id uint, u store.RecordUpdate, meta map[string]string) (*store.Record, error)
	ListPublished(ctx context.Context, limit int) ([]store.Record, error)
	ListByMeta(ctx context.Context, key, value string) ([]store.Record, error)
	GetAuthor(ctx context.Context, id uint) (*store.Author, error)
	ListAuthors(ctx context.Context) ([]store.Author, error)
}

type Service struct {
	ai        openai.Completer
	records   Records
	linker    *linking.Linker
	gate      auth.Gate
	sanitizer format.Sanitizer
	log       *logger.Logger
	now       func() time.Time
}

func NewService(ai openai.Completer, records Records, gate auth.Gate, log *logger.Logger) *Service {
	util.Assert(ai != nil, "NewService nil completer")
	util.Assert(records != nil, "NewService nil records")
	util.Assert(gate != nil, "NewService nil gate")

	log = logger.OrNop(log).With("service", "Poster")
	return &Service{
		ai:        ai,
		records:   records,
		linker:    linking.NewLinker(ai, records, log),
		gate:      gate,
		sanitizer: format.NewSanitizer(),
		log:       log,
		now:       time.Now,
	}
}

// Generation is the outcome of a successful Generate.
type Generation struct {
	Record          *store.Record
	Snippet         string
	Suggestions     []api.LinkSuggestion
	SuggestionsHTML string
	AllLinks        string
}

type generationInput struct {
	topic     string
	postType  prompt.PostType
	category  string
	status    string
	subTopics []string
}

func validateGeneration(req api.GenerateRequest) (generationInput, error) {
	var in generationInput

	if strings.TrimSpace(req.PostType) == "" {
		return in, errs.Validation("post_type", "Post Type is required.")
	}
	pt, ok := prompt.ParsePostType(req.PostType)
	if !ok {
		return in, errs.Validation("post_type", "Unknown post type.")
	}
	in.postType = pt

	in.topic = strings.Join(strings.Fields(req.Topic), " ")
	if in.topic == "" {
		return in, errs.Validation("topic", "Topic is required.")
	}

	contentAPI := strings.ToLower(strings.TrimSpace(req.ContentAPI))
	if contentAPI == "" {
		return in, errs.Validation("content_api", "Content Generator API is required.")
	}
	if contentAPI != ContentAPIOpenRouter {
		return in, errs.Validation("content_api", "Unknown API specified.")
	}

	in.category = strings.TrimSpace(req.Category)
	if in.category == "" {
		return in, errs.Validation("category", "Category is required.")
	}

	switch in.status = strings.ToLower(strings.TrimSpace(req.Status)); in.status {
	case "":
		in.status = store.StatusDraft
	case store.StatusDraft, store.StatusPublished:
	default:
		return in, errs.Validation("status", "Unknown post status.")
	}

	for _, st := range req.SubTopics {
		if st = strings.TrimSpace(st); st != "" {
			in.subTopics = append(in.subTopics, st)
		}
	}
	return in, nil
}

// Generate drafts an article for the request, stores it and proposes
// internal links for it. Nothing is written unless the model produced
// usable content.
func (s *Service) Generate(ctx context.Context, req api.GenerateRequest) (*Generation, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}

	in, err := validateGeneration(req)
	if err != nil {
		return nil, err
	}

	text, err := s.ai.Complete(ctx, prompt.Article(in.topic, in.postType), prompt.MaxTokens(in.postType))
	if err != nil {
		return nil, err
	}

	snippet := format.Snippet(text)
	body := s.sanitizer.Sanitize(format.Format(text))
	if strings.TrimSpace(body) == "" {
		s.log.Warn("article empty after formatting", "topic", in.topic)
		return nil, errs.Malformed("Invalid response from API. Please try again.")
	}

	meta := map[string]string{
		store.MetaPostType:    string(in.postType),
		store.MetaDescription: snippet,
	}
	if len(in.subTopics) > 0 {
		b, err := json.Marshal(in.subTopics)
		util.Assert(err == nil, "marshal sub topics")
		meta[store.MetaSubTopics] = string(b)
	}
	if req.PillarID != 0 {
		meta[store.MetaPillarID] = strconv.FormatUint(uint64(req.PillarID), 10)
	}

	record := &store.Record{
		Title:    in.topic,
		BodyHTML: body,
		Status:   in.status,
		Category: in.category,
		AuthorID: s.ResolveAuthor(ctx, req.AuthorID, auth.UserID(ctx)),
	}
	if err := s.records.CreateRecord(ctx, record, meta); err != nil {
		return nil, err
	}
	s.log.Info("post generated", "id", record.ID, "post_type", in.postType, "author_id", record.AuthorID)

	suggestions := s.linker.SuggestLinks(ctx, body, record.ID)
	return &Generation{
		Record:          record,
		Snippet:         snippet,
		Suggestions:     suggestions,
		SuggestionsHTML: linking.Render(suggestions),
		AllLinks:        linking.Marshal(suggestions),
	}, nil
}

// AcceptLinks inserts the selected suggestions into the record's body. With
// nothing selected the record is returned untouched.
func (s *Service) AcceptLinks(ctx context.Context, recordID uint, allLinks string, selected []int) (*store.Record, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}

	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	links, err := linking.Select(allLinks, selected)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return record, nil
	}

	body := s.sanitizer.Sanitize(s.linker.InsertLinks(record.BodyHTML, links))
	if body == record.BodyHTML {
		s.log.Info("no links inserted", "id", recordID, "selected", len(links))
		return record, nil
	}

	updated, err := s.records.UpdateRecord(ctx, recordID, store.RecordUpdate{BodyHTML: &body})
	if err != nil {
		return nil, err
	}
	s.log.Info("internal links inserted", "id", recordID, "selected", len(links))
	return updated, nil
}

// PreviewRefresh asks the model to rewrite a record at the requested
// intensity and returns the sanitized result for review. It writes nothing.
func (s *Service) PreviewRefresh(ctx context.Context, req api.RefreshPreviewRequest) (*api.RefreshPreviewResponse, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}
	if req.PostID == 0 {
		return nil, errs.Validation("post_id", "Post ID missing.")
	}

	record, err := s.records.GetRecord(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	intensity := prompt.ParseIntensity(req.Intensity)
	text, err := s.ai.Complete(ctx, prompt.Refresh(record.BodyHTML, intensity), openai.MaxTokensAuxiliary)
	if err != nil {
		return nil, err
	}

	s.log.Info("refresh previewed", "id", record.ID, "intensity", intensity)
	return &api.RefreshPreviewResponse{
		PostID:   record.ID,
		Title:    record.Title,
		Content:  s.sanitizer.Sanitize(text),
		Snippet:  format.Snippet(text),
		AuthorID: req.AuthorID,
	}, nil
}

// CommitRefresh saves operator-reviewed refreshed content.
func (s *Service) CommitRefresh(ctx context.Context, req api.RefreshCommitRequest) (*store.Record, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}
	if req.PostID == 0 {
		return nil, errs.Validation("post_id", "Post ID missing.")
	}

	if _, err := s.records.GetRecord(ctx, req.PostID); err != nil {
		return nil, err
	}

	body := s.sanitizer.Sanitize(req.Content)
	if strings.TrimSpace(body) == "" {
		return nil, errs.Validation("content", "Updated content cannot be empty.")
	}
	authorID := s.ResolveAuthor(ctx, req.AuthorID, auth.UserID(ctx))

	meta := map[string]string{
		store.MetaLastUpdated: s.now().UTC().Format(time.RFC3339),
	}
	if snippet := format.PlainText(req.Snippet); snippet != "" {
		meta[store.MetaDescription] = snippet
	}

	record, err := s.records.UpdateRecordWithMeta(ctx, req.PostID, store.RecordUpdate{BodyHTML: &body, AuthorID: &authorID}, meta)
	if err != nil {
		return nil, err
	}

	s.log.Info("refresh committed", "id", req.PostID, "author_id", authorID)
	return record, nil
}
