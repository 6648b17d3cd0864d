package poster

import (
	"encoding/json"
	"strconv"

	"github.com/vasilisp/autopost/internal/store"
	"github.com/vasilisp/autopost/pkg/api"
)

// PostView converts a stored record for the wire.
func PostView(r *store.Record) api.Post {
	p := api.Post{
		ID:              r.ID,
		Title:           r.Title,
		Slug:            r.Slug,
		Status:          r.Status,
		Category:        r.Category,
		AuthorID:        r.AuthorID,
		Content:         r.BodyHTML,
		PostType:        r.MetaValue(store.MetaPostType),
		MetaDescription: r.MetaValue(store.MetaDescription),
		LastUpdated:     r.MetaValue(store.MetaLastUpdated),
		Stamp:           r.UpdatedAt.Unix(),
	}
	if raw := r.MetaValue(store.MetaSubTopics); raw != "" {
		var subTopics []string
		if err := json.Unmarshal([]byte(raw), &subTopics); err == nil {
			p.SubTopics = subTopics
		}
	}
	if raw := r.MetaValue(store.MetaPillarID); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			p.PillarID = uint(id)
		}
	}
	return p
}

func AuthorView(a store.Author) api.Author {
	return api.Author{ID: a.ID, DisplayName: a.DisplayName, Role: a.Role}
}
