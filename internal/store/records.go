package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vasilisp/autopost/internal/util"
	"github.com/vasilisp/autopost/pkg/api"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRecord inserts r and its metadata in one transaction. The slug is
// derived from the title when empty and made unique.
func (s *Store) CreateRecord(ctx context.Context, r *Record, meta map[string]string) error {
	util.Assert(r != nil, "CreateRecord nil record")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, r.Slug, r.Title)
		if err != nil {
			return err
		}
		r.Slug = slug
		if r.Status == "" {
			r.Status = StatusDraft
		}

		if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
			return err
		}

		if len(meta) == 0 {
			return nil
		}
		rows := metaRows(r.ID, meta)
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		r.Meta = rows
		return nil
	})
	if err != nil {
		return s.storageError("create record", err)
	}

	s.log.Info("record created", "id", r.ID, "slug", r.Slug, "status", r.Status)
	return nil
}

func metaRows(recordID uint, meta map[string]string) []RecordMeta {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]RecordMeta, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, RecordMeta{RecordID: recordID, Key: k, Value: meta[k]})
	}
	return rows
}

func uniqueSlug(tx *gorm.DB, slug, title string) (string, error) {
	base := slug
	if base == "" {
		base = util.Slugify(title)
	} else if util.ValidateSlug(base) != nil {
		base = util.Slugify(base)
	}
	if base == "" {
		base = "post"
	}

	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&Record{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// GetRecord loads a record with its metadata.
func (s *Store) GetRecord(ctx context.Context, id uint) (*Record, error) {
	var r Record
	if err := s.db.WithContext(ctx).Preload("Meta").First(&r, id).Error; err != nil {
		return nil, s.storageError("get record", err)
	}
	return &r, nil
}

func (s *Store) UpdateRecord(ctx context.Context, id uint, u RecordUpdate) (*Record, error) {
	return s.UpdateRecordWithMeta(ctx, id, u, nil)
}

// UpdateRecordWithMeta applies u and upserts meta in one transaction; either
// every change lands or none does.
func (s *Store) UpdateRecordWithMeta(ctx context.Context, id uint, u RecordUpdate, meta map[string]string) (*Record, error) {
	values := updateValues(u)
	if len(values) == 0 && len(meta) == 0 {
		return s.GetRecord(ctx, id)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(values) == 0 {
			if err := tx.Select("id").First(&Record{}, id).Error; err != nil {
				return err
			}
		} else {
			values["updated_at"] = time.Now().UTC()
			res := tx.Model(&Record{}).Where("id = ?", id).Updates(values)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		if len(meta) == 0 {
			return nil
		}
		rows := metaRows(id, meta)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}, {Name: "meta_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return nil, s.storageError("update record", err)
	}

	s.log.Debug("record updated", "id", id, "fields", len(values), "meta", len(meta))
	return s.GetRecord(ctx, id)
}

func updateValues(u RecordUpdate) map[string]any {
	values := map[string]any{}
	if u.Title != nil {
		values["title"] = *u.Title
	}
	if u.BodyHTML != nil {
		values["body_html"] = *u.BodyHTML
	}
	if u.Status != nil {
		values["status"] = *u.Status
	}
	if u.AuthorID != nil {
		values["author_id"] = *u.AuthorID
	}
	return values
}

// Candidates lists up to limit published records, newest first, as link
// targets. excludeID 0 excludes nothing.
func (s *Store) Candidates(ctx context.Context, limit int, excludeID uint) ([]api.Candidate, error) {
	q := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("id", "title", "slug").
		Where("status = ?", StatusPublished)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var records []Record
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, s.storageError("candidates", err)
	}

	candidates := make([]api.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, api.Candidate{
			ID:    r.ID,
			Title: r.Title,
			URL:   s.siteURL + "/" + r.Slug,
		})
	}
	return candidates, nil
}

// ListPublished returns published records newest first. limit <= 0 means
// no limit.
func (s *Store) ListPublished(ctx context.Context, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", StatusPublished).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, s.storageError("list published", err)
	}
	return records, nil
}

// ListByMeta returns records whose metadata key equals value, newest first.
func (s *Store) ListByMeta(ctx context.Context, key, value string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Joins("JOIN record_meta ON record_meta.record_id = records.id").
		Where("record_meta.meta_key = ? AND record_meta.meta_value = ?", key, value).
		Order("records.created_at DESC").
		Order("records.id DESC").
		Find(&records).Error
	if err != nil {
		return nil, s.storageError("list by meta", err)
	}
	return records, nil
}
