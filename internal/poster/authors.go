package poster

import (
	"context"
	"slices"

	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/store"
)

var editingRoles = []string{"author", "editor", "administrator"}

func eligible(a store.Author) bool {
	return a.CanEdit && slices.Contains(editingRoles, a.Role)
}

// Authors lists the users a post can be attributed to, by display name.
func (s *Service) Authors(ctx context.Context) ([]store.Author, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}

	all, err := s.records.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}

	authors := make([]store.Author, 0, len(all))
	for _, a := range all {
		if eligible(a) {
			authors = append(authors, a)
		}
	}
	slices.SortStableFunc(authors, func(a, b store.Author) int {
		switch {
		case a.DisplayName < b.DisplayName:
			return -1
		case a.DisplayName > b.DisplayName:
			return 1
		}
		return 0
	})
	return authors, nil
}

// ResolveAuthor returns selected when that user exists and may edit posts,
// and current otherwise.
func (s *Service) ResolveAuthor(ctx context.Context, selected, current uint) uint {
	if selected == 0 {
		return current
	}

	a, err := s.records.GetAuthor(ctx, selected)
	if err != nil {
		return current
	}
	if !a.CanEdit {
		s.log.Warn("selected author cannot edit posts", "author_id", selected)
		return current
	}
	return selected
}

// PillarRecords lists posts of type pillar for the pillar dropdown.
func (s *Service) PillarRecords(ctx context.Context) ([]store.Record, error) {
	return s.RecordsByType(ctx, "pillar")
}

func (s *Service) RecordsByType(ctx context.Context, postType string) ([]store.Record, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}
	return s.records.ListByMeta(ctx, store.MetaPostType, postType)
}

// PublishedRecords lists every published post, newest first.
func (s *Service) PublishedRecords(ctx context.Context) ([]store.Record, error) {
	if err := s.gate.RequireCapability(ctx, auth.ManageOptions); err != nil {
		return nil, err
	}
	return s.records.ListPublished(ctx, 0)
}
