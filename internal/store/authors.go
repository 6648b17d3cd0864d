package store

import (
	"context"
	"errors"

	"github.com/vasilisp/autopost/internal/errs"
	"gorm.io/gorm"
)

func (s *Store) GetAuthor(ctx context.Context, id uint) (*Author, error) {
	var a Author
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.E(errs.KindNotFound, "Author not found.", ErrNotFound)
	}
	if err != nil {
		return nil, s.storageError("get author", err)
	}
	return &a, nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]Author, error) {
	var authors []Author
	if err := s.db.WithContext(ctx).Order("display_name ASC").Order("id ASC").Find(&authors).Error; err != nil {
		return nil, s.storageError("list authors", err)
	}
	return authors, nil
}

func (s *Store) CreateAuthor(ctx context.Context, a *Author) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return s.storageError("create author", err)
	}
	return nil
}
