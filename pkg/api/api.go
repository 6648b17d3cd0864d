package api

const (
	PostsPath          = "/api/posts"
	PostLinksPath      = "/api/posts/:id/links"
	RefreshPreviewPath = "/api/refresh/preview"
	RefreshCommitPath  = "/api/refresh/commit"
	AuthorsPath        = "/api/authors"
	UpdatesPath        = "/api/updates"
	HealthPath         = "/healthz"
)

// LinkSuggestion is one proposed internal link. It round-trips through the
// all_links field and is never stored.
type LinkSuggestion struct {
	AnchorText string `json:"anchor_text"`
	TargetURL  string `json:"target_url"`
	Sentence   string `json:"sentence,omitempty"`
}

type GenerateRequest struct {
	Topic      string   `json:"topic"`
	PostType   string   `json:"post_type"`
	ContentAPI string   `json:"content_api"`
	Category   string   `json:"category"`
	SubTopics  []string `json:"sub_topics,omitempty"`
	PillarID   uint     `json:"pillar_id,omitempty"`
	AuthorID   uint     `json:"author_id,omitempty"`
	Status     string   `json:"status,omitempty"`
}

type Post struct {
	ID              uint     `json:"id"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Status          string   `json:"status"`
	Category        string   `json:"category"`
	AuthorID        uint     `json:"author_id"`
	Content         string   `json:"content"`
	PostType        string   `json:"post_type,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	SubTopics       []string `json:"sub_topics,omitempty"`
	PillarID        uint     `json:"pillar_id,omitempty"`
	LastUpdated     string   `json:"last_updated,omitempty"`
	Stamp           int64    `json:"stamp"`
}

type GenerateResponse struct {
	Post            Post             `json:"post"`
	Snippet         string           `json:"snippet"`
	Suggestions     []LinkSuggestion `json:"suggestions"`
	SuggestionsHTML string           `json:"suggestions_html"`
	AllLinks        string           `json:"all_links"`
}

type AcceptLinksRequest struct {
	AllLinks string `json:"all_links"`
	Selected []int  `json:"selected_links"`
}

type RefreshPreviewRequest struct {
	PostID    uint   `json:"post_id"`
	Intensity string `json:"refresh_type"`
	AuthorID  uint   `json:"author_id,omitempty"`
}

type RefreshPreviewResponse struct {
	PostID   uint   `json:"post_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Snippet  string `json:"snippet"`
	AuthorID uint   `json:"author_id"`
}

type RefreshCommitRequest struct {
	PostID   uint   `json:"post_id"`
	Content  string `json:"content"`
	Snippet  string `json:"snippet"`
	AuthorID uint   `json:"author_id,omitempty"`
}

type Author struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Release struct {
	Version     string `json:"version"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
	PublishedAt string `json:"published_at,omitempty"`
}

type UpdateResponse struct {
	Installed string   `json:"installed"`
	Available bool     `json:"available"`
	Release   *Release `json:"release,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Candidate is an existing published record offered to the model as a link
// target.
type Candidate struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
