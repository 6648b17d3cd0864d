package data

import (
	_ "embed"
)

//go:embed article.tmpl
var ArticlePrompt string

//go:embed refresh.tmpl
var RefreshPrompt string

//go:embed links.tmpl
var LinksPrompt string

//go:embed suggestions.html.tmpl
var SuggestionsHTML string
