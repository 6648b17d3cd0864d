package store

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Metadata keys.
const (
	MetaPostType    = "post_type"
	MetaDescription = "meta_description"
	MetaSubTopics   = "sub_topics"
	MetaPillarID    = "pillar_id"
	MetaLastUpdated = "last_updated"
)

type Record struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"not null"`
	Slug      string    `gorm:"index;not null"`
	BodyHTML  string    `gorm:"column:body_html;type:text"`
	Status    string    `gorm:"index;not null;default:draft"`
	Category  string
	AuthorID  uint      `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Meta []RecordMeta `gorm:"foreignKey:RecordID"`
}

// MetaValue returns the loaded value for key, or "".
func (r *Record) MetaValue(key string) string {
	for _, m := range r.Meta {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}

type RecordMeta struct {
	ID       uint   `gorm:"primaryKey"`
	RecordID uint   `gorm:"not null;uniqueIndex:idx_record_meta_key"`
	Key      string `gorm:"column:meta_key;size:64;not null;uniqueIndex:idx_record_meta_key"`
	Value    string `gorm:"column:meta_value;type:text"`
}

func (RecordMeta) TableName() string {
	return "record_meta"
}

type Author struct {
	ID          uint   `gorm:"primaryKey"`
	DisplayName string `gorm:"not null"`
	Role        string `gorm:"not null"`
	CanEdit     bool
}

// RecordUpdate lists the fields to change; nil fields are left alone.
type RecordUpdate struct {
	Title    *string
	BodyHTML *string
	Status   *string
	AuthorID *uint
}
