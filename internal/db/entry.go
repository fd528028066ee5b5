package db

import "time"

// Entry 定义了博客条目模型。
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"uniqueIndex:idx_entries_slug;not null" json:"slug"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Published bool      `gorm:"index:idx_entries_published;not null" json:"published"`
	Timestamp time.Time `gorm:"index:idx_entries_timestamp;not null" json:"timestamp"`

	// Score is only populated by full-text search queries.
	Score float64 `gorm:"->" json:"score,omitempty"`
}

// TableName pins the table created by the migrations.
func (Entry) TableName() string {
	return "entries"
}

// IsNew reports whether the entry has never been persisted.
func (e *Entry) IsNew() bool {
	return e == nil || e.ID == 0
}

// SearchIndexEntry is the full-text shadow of an Entry, keyed by the entry's id.
type SearchIndexEntry struct {
	DocID   uint   `gorm:"column:docid;primaryKey;autoIncrement:false"`
	Content string `gorm:"column:content"`
}

// TableName returns the FTS4 virtual table name.
func (SearchIndexEntry) TableName() string {
	return "entry_search_index"
}
