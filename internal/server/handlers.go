package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/poster"
	"github.com/vasilisp/autopost/internal/store"
	"github.com/vasilisp/autopost/internal/updates"
	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
)

// UpdateChecker is satisfied by *updates.Checker.
type UpdateChecker interface {
	Check(ctx context.Context, installed string) (*updates.Release, bool)
}

type Handler struct {
	poster    *poster.Service
	checker   UpdateChecker
	gate      auth.Gate
	installed string
	log       *logger.Logger
}

func NewHandler(p *poster.Service, u UpdateChecker, gate auth.Gate, installed string, log *logger.Logger) *Handler {
	util.Assert(p != nil, "NewHandler nil poster")
	util.Assert(u != nil, "NewHandler nil update checker")
	util.Assert(gate != nil, "NewHandler nil gate")

	return &Handler{
		poster:    p,
		checker:   u,
		gate:      gate,
		installed: installed,
		log:       logger.OrNop(log),
	}
}

func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindContentPolicy:
		return http.StatusUnprocessableEntity
	case errs.KindTransport, errs.KindAPI, errs.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "kind", errs.KindOf(err).String(), "error", err)
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: errs.UserMessage(err)})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: msg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	gen, err := h.poster.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	suggestions := gen.Suggestions
	if suggestions == nil {
		suggestions = []api.LinkSuggestion{}
	}
	c.JSON(http.StatusCreated, api.GenerateResponse{
		Post:            poster.PostView(gen.Record),
		Snippet:         gen.Snippet,
		Suggestions:     suggestions,
		SuggestionsHTML: gen.SuggestionsHTML,
		AllLinks:        gen.AllLinks,
	})
}

func (h *Handler) acceptLinks(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, "invalid post id")
		return
	}

	var req api.AcceptLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	record, err := h.poster.AcceptLinks(c.Request.Context(), uint(id), req.AllLinks, req.Selected)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, poster.PostView(record))
}

func (h *Handler) listPosts(c *gin.Context) {
	var (
		records []store.Record
		err     error
	)
	if postType := c.Query("post_type"); postType != "" {
		records, err = h.poster.RecordsByType(c.Request.Context(), postType)
	} else {
		records, err = h.poster.PublishedRecords(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	posts := make([]api.Post, 0, len(records))
	for i := range records {
		posts = append(posts, poster.PostView(&records[i]))
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) previewRefresh(c *gin.Context) {
	var req api.RefreshPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	preview, err := h.poster.PreviewRefresh(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) commitRefresh(c *gin.Context) {
	var req api.RefreshCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	record, err := h.poster.CommitRefresh(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, poster.PostView(record))
}

func (h *Handler) authors(c *gin.Context) {
	authors, err := h.poster.Authors(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]api.Author, 0, len(authors))
	for _, a := range authors {
		out = append(out, poster.AuthorView(a))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) updates(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		h.fail(c, err)
		return
	}

	resp := api.UpdateResponse{Installed: h.installed}
	release, newer := h.checker.Check(ctx, h.installed)
	if release != nil {
		resp.Available = newer
		resp.Release = ReleaseView(release)
	}
	c.JSON(http.StatusOK, resp)
}

func ReleaseView(r *updates.Release) *api.Release {
	return &api.Release{
		Version:     r.Version,
		URL:         r.URL,
		DownloadURL: r.DownloadURL,
		PublishedAt: r.PublishedAt,
	}
}
