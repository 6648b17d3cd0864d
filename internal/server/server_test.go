package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/poster"
	"github.com/vasilisp/autopost/internal/store"
	"github.com/vasilisp/autopost/internal/updates"
	"github.com/vasilisp/autopost/pkg/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type fixedAI struct {
	text string
	err  error
}

func (a *fixedAI) Complete(context.Context, string, int) (string, error) {
	return a.text, a.err
}

type fixedChecker struct {
	release *updates.Release
	newer   bool
	seen    string
}

func (c *fixedChecker) Check(_ context.Context, installed string) (*updates.Release, bool) {
	c.seen = installed
	return c.release, c.newer
}

type fixture struct {
	router  *gin.Engine
	gate    *auth.JWTGate
	store   *store.Store
	checker *fixedChecker
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, ai *fixedAI) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(db, "https://blog.example.com", nil)
	require.NoError(t, st.Migrate(context.Background()))

	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	gate := auth.NewJWTGate(testSecret, log)
	svc := poster.NewService(ai, st, gate, log)
	checker := &fixedChecker{}
	handler := NewHandler(svc, checker, gate, "1.0.1", log)

	return &fixture{
		router:  Router(handler, gate, log),
		gate:    gate,
		store:   st,
		checker: checker,
		logs:    logs,
	}
}

func (f *fixture) token(t *testing.T, caps ...string) string {
	t.Helper()
	tok, err := f.gate.Mint(7, caps, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func generateRequest() api.GenerateRequest {
	return api.GenerateRequest{
		Topic:      "Best Laptops 2024",
		PostType:   "child",
		ContentAPI: "openrouter",
		Category:   "tech",
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &fixedAI{})

	w := f.do(t, http.MethodGet, api.HealthPath, "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, &fixedAI{})

	req := httptest.NewRequest(http.MethodGet, api.HealthPath, nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	entries := f.logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["request_id"])
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t, &fixedAI{})

	w := f.do(t, http.MethodPost, api.PostsPath, "", generateRequest())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, api.PostsPath, "not-a-jwt", generateRequest())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, &fixedAI{text: "# Best Laptops\n\n**Great** picks:\n- HP\n- Dell"})

	w := f.do(t, http.MethodPost, api.PostsPath, f.token(t, auth.ManageOptions), generateRequest())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Post.ID)
	assert.Equal(t, "best-laptops-2024", resp.Post.Slug)
	assert.Equal(t, "draft", resp.Post.Status)
	assert.EqualValues(t, 7, resp.Post.AuthorID)
	assert.Contains(t, resp.Post.Content, "<h2>Best Laptops</h2>")
	assert.Contains(t, resp.Post.Content, "<ul><li>HP</li><li>Dell</li></ul>")
	assert.NotNil(t, resp.Suggestions)
	assert.Empty(t, resp.Suggestions)
	assert.Equal(t, "[]", resp.AllLinks)
	assert.Contains(t, resp.SuggestionsHTML, "No internal link suggestions found.")

	stored, err := f.store.GetRecord(context.Background(), resp.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Post.Content, stored.BodyHTML)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		ai     *fixedAI
		caps   []string
		body   interface{}
		status int
		msg    string
	}{
		{
			name:   "missing capability",
			ai:     &fixedAI{text: "<p>x</p>"},
			body:   generateRequest(),
			status: http.StatusForbidden,
			msg:    "Sorry, you are not allowed to do that.",
		},
		{
			name:   "malformed body",
			ai:     &fixedAI{text: "<p>x</p>"},
			caps:   []string{auth.ManageOptions},
			body:   `{"topic":`,
			status: http.StatusBadRequest,
			msg:    "invalid request body",
		},
		{
			name:   "validation",
			ai:     &fixedAI{text: "<p>x</p>"},
			caps:   []string{auth.ManageOptions},
			body:   api.GenerateRequest{PostType: "child", ContentAPI: "openrouter", Category: "tech"},
			status: http.StatusBadRequest,
			msg:    "Topic is required.",
		},
		{
			name:   "transport failure",
			ai:     &fixedAI{err: errs.Transport("Failed to connect to API. Please try again later.", context.DeadlineExceeded)},
			caps:   []string{auth.ManageOptions},
			body:   generateRequest(),
			status: http.StatusBadGateway,
			msg:    "The content service is unavailable right now. Please try again.",
		},
		{
			name:   "model refusal",
			ai:     &fixedAI{err: errs.ContentPolicy("ERROR: topic violates policy")},
			caps:   []string{auth.ManageOptions},
			body:   generateRequest(),
			status: http.StatusUnprocessableEntity,
			msg:    "ERROR: topic violates policy",
		},
		{
			name:   "missing credential",
			ai:     &fixedAI{err: errs.Config("OpenRouter.ai API key not configured. Please set it in the settings.")},
			caps:   []string{auth.ManageOptions},
			body:   generateRequest(),
			status: http.StatusInternalServerError,
			msg:    "OpenRouter.ai API key not configured. Please set it in the settings.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ai)

			w := f.do(t, http.MethodPost, api.PostsPath, f.token(t, tt.caps...), tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeError(t, w))

			posts, err := f.store.ListByMeta(context.Background(), store.MetaPostType, "child")
			require.NoError(t, err)
			assert.Empty(t, posts)
		})
	}
}

func TestListPosts(t *testing.T) {
	f := newFixture(t, &fixedAI{text: "<p>Body</p>"})
	tok := f.token(t, auth.ManageOptions)

	req := generateRequest()
	req.Status = "published"
	req.PostType = "pillar"
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, api.PostsPath, tok, req).Code)

	w := f.do(t, http.MethodGet, api.PostsPath, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var posts []api.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "pillar", posts[0].PostType)

	w = f.do(t, http.MethodGet, api.PostsPath+"?post_type=howto", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAcceptLinksBadID(t *testing.T) {
	f := newFixture(t, &fixedAI{})
	tok := f.token(t, auth.ManageOptions)

	w := f.do(t, http.MethodPost, "/api/posts/abc/links", tok, api.AcceptLinksRequest{AllLinks: "[]"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid post id", decodeError(t, w))

	w = f.do(t, http.MethodPost, "/api/posts/999/links", tok, api.AcceptLinksRequest{
		AllLinks: `[{"anchor_text":"x","target_url":"https://blog.example.com/x"}]`,
		Selected: []int{0},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found.", decodeError(t, w))
}

func TestRefreshPreviewAndCommit(t *testing.T) {
	ai := &fixedAI{text: "<p>Original body.</p>"}
	f := newFixture(t, ai)
	tok := f.token(t, auth.ManageOptions)

	w := f.do(t, http.MethodPost, api.PostsPath, tok, generateRequest())
	require.Equal(t, http.StatusCreated, w.Code)
	var gen api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))

	ai.text = "<p>Fresh body.</p>"
	w = f.do(t, http.MethodPost, api.RefreshPreviewPath, tok, api.RefreshPreviewRequest{PostID: gen.Post.ID, Intensity: "light"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var preview api.RefreshPreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "<p>Fresh body.</p>", preview.Content)

	unchanged, err := f.store.GetRecord(context.Background(), gen.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>Original body.</p>", unchanged.BodyHTML)

	w = f.do(t, http.MethodPost, api.RefreshCommitPath, tok, api.RefreshCommitRequest{
		PostID:  gen.Post.ID,
		Content: preview.Content,
		Snippet: preview.Snippet,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var post api.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "<p>Fresh body.</p>", post.Content)
	assert.NotEmpty(t, post.LastUpdated)
}

func TestRefreshErrors(t *testing.T) {
	f := newFixture(t, &fixedAI{text: "<p>x</p>"})
	tok := f.token(t, auth.ManageOptions)

	w := f.do(t, http.MethodPost, api.RefreshPreviewPath, tok, api.RefreshPreviewRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Post ID missing.", decodeError(t, w))

	w = f.do(t, http.MethodPost, api.RefreshPreviewPath, tok, api.RefreshPreviewRequest{PostID: 404})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found.", decodeError(t, w))
}

func TestAuthors(t *testing.T) {
	f := newFixture(t, &fixedAI{})
	ctx := context.Background()
	require.NoError(t, f.store.CreateAuthor(ctx, &store.Author{DisplayName: "Zed", Role: "editor", CanEdit: true}))
	require.NoError(t, f.store.CreateAuthor(ctx, &store.Author{DisplayName: "Amy", Role: "author", CanEdit: true}))
	require.NoError(t, f.store.CreateAuthor(ctx, &store.Author{DisplayName: "Sub", Role: "subscriber"}))

	w := f.do(t, http.MethodGet, api.AuthorsPath, f.token(t, auth.ManageOptions), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var authors []api.Author
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &authors))
	require.Len(t, authors, 2)
	assert.Equal(t, "Amy", authors[0].DisplayName)
	assert.Equal(t, "Zed", authors[1].DisplayName)
}

func TestUpdates(t *testing.T) {
	f := newFixture(t, &fixedAI{})
	f.checker.release = &updates.Release{
		Version:     "1.2.0",
		Tag:         "v1.2.0",
		URL:         "https://github.com/o/r/releases/tag/v1.2.0",
		DownloadURL: "https://github.com/o/r/releases/download/v1.2.0/gpt-auto-poster.zip",
	}
	f.checker.newer = true

	w := f.do(t, http.MethodGet, api.UpdatesPath, f.token(t, auth.ManageOptions), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1.0.1", resp.Installed)
	assert.True(t, resp.Available)
	require.NotNil(t, resp.Release)
	assert.Equal(t, "1.2.0", resp.Release.Version)
	assert.Equal(t, "1.0.1", f.checker.seen)
}

func TestUpdatesUnavailable(t *testing.T) {
	f := newFixture(t, &fixedAI{})

	w := f.do(t, http.MethodGet, api.UpdatesPath, f.token(t, auth.ManageOptions), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"installed":"1.0.1","available":false}`, w.Body.String())

	w = f.do(t, http.MethodGet, api.UpdatesPath, f.token(t), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(fmt.Errorf("plain")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errs.Storage("The content store failed.", nil)))
	assert.Equal(t, http.StatusBadGateway, statusOf(errs.Malformed("bad")))
	assert.Equal(t, http.StatusBadGateway, statusOf(errs.API("bad", nil)))
}
